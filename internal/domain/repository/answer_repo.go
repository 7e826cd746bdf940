package repository

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// AnswerRepository определяет методы для работы с журналом ответов.
// Журнал append-only: записи добавляются при отправке ответа и никогда не удаляются.
type AnswerRepository interface {
	// Append добавляет запись в журнал ответов
	Append(answer *entity.Answer) error

	// List возвращает все записи журнала в порядке поступления
	List() ([]entity.Answer, error)
}
