package repository

import (
	"time"
)

// CacheRepository определяет методы для работы с кешем снимков рейтинга
type CacheRepository interface {
	// SetJSON сохраняет структуру JSON в кеше с указанным TTL
	SetJSON(key string, value interface{}, expiration time.Duration) error

	// GetJSON получает структуру JSON из кеша; отсутствие ключа - ErrNotFound
	GetJSON(key string, dest interface{}) error
}
