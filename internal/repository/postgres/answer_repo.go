package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// AnswerRepo реализует repository.AnswerRepository
type AnswerRepo struct {
	db *gorm.DB
}

// NewAnswerRepo создает новый репозиторий журнала ответов
func NewAnswerRepo(db *gorm.DB) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// Append добавляет запись в журнал ответов
func (r *AnswerRepo) Append(answer *entity.Answer) error {
	return r.db.Create(answer).Error
}

// List возвращает все записи журнала в порядке поступления
func (r *AnswerRepo) List() ([]entity.Answer, error) {
	var answers []entity.Answer
	if err := r.db.Order("id").Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
