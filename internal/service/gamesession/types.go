package gamesession

import (
	"time"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
)

// Роли соединений. Соединение без роли - неаутентифицированный наблюдатель.
const (
	RoleSupervisor = "supervisor"
	RoleValidator  = "validator"
)

// Config содержит настройки компонентов игровой сессии
type Config struct {
	// TickInterval - интервал между тиками таймера раунда
	TickInterval time.Duration

	// RankingCacheTTL - время жизни кешированного снимка рейтинга
	RankingCacheTTL time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		TickInterval:    1 * time.Second,
		RankingCacheTTL: 12 * time.Hour,
	}
}

// EventSender определяет интерфейс рассылки событий наблюдателям.
// Реализуется websocket.Manager; рассылка никогда не блокирует переходы сессии.
type EventSender interface {
	// BroadcastEvent отправляет событие всем подключенным наблюдателям
	BroadcastEvent(eventType string, data interface{}) error

	// BroadcastEventToRole отправляет событие только соединениям с указанной ролью
	BroadcastEventToRole(role string, eventType string, data interface{}) error
}

// Dependencies содержит зависимости компонентов игровой сессии
type Dependencies struct {
	PackStore     repository.PackStore
	TeamRepo      repository.TeamRepository
	AnswerRepo    repository.AnswerRepository
	ActionLogRepo repository.ActionLogRepository
	CacheRepo     repository.CacheRepository
	Events        EventSender
	Config        *Config
}

// RoundState хранит состояние текущего раунда
type RoundState struct {
	// Ordinal - порядковый номер раунда; строго возрастает, по 1 на публикацию
	Ordinal int

	// Question - активный вопрос раунда (nil, если раунд не идет)
	Question *entity.Question

	// Remaining - оставшееся время раунда в секундах
	Remaining int

	// Scored отмечает, что проход оценки для раунда уже выполнен
	Scored bool
}

// Active проверяет, принимает ли раунд ответы
func (r *RoundState) Active() bool {
	return r.Question != nil && r.Remaining > 0
}
