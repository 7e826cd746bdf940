package repository

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// PackStore определяет интерфейс хранилища пака вопросов.
// Сессия читает из него вопросы и метаданные; заменой пака управляют HTTP-обработчики.
type PackStore interface {
	// GetQuestionByID возвращает вопрос по ID или ErrUnknownQuestion
	GetQuestionByID(id uint) (*entity.Question, error)

	// Meta возвращает метаданные активного пака (PIN-коды, флаг бонуса)
	Meta() entity.PackMeta

	// Current возвращает активный пак целиком
	Current() *entity.Pack

	// Replace атомарно заменяет активный пак и сохраняет его на диск
	Replace(pack *entity.Pack) error
}
