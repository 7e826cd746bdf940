package repository

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// ActionLogRepository определяет методы для работы с журналом действий
type ActionLogRepository interface {
	// Append добавляет запись в журнал действий
	Append(entry *entity.ActionEntry) error

	// List возвращает все записи журнала в хронологическом порядке
	List() ([]entity.ActionEntry, error)
}
