package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// ActionLogRepo реализует repository.ActionLogRepository
type ActionLogRepo struct {
	db *gorm.DB
}

// NewActionLogRepo создает новый репозиторий журнала действий
func NewActionLogRepo(db *gorm.DB) *ActionLogRepo {
	return &ActionLogRepo{db: db}
}

// Append добавляет запись в журнал действий
func (r *ActionLogRepo) Append(entry *entity.ActionEntry) error {
	return r.db.Create(entry).Error
}

// List возвращает все записи журнала в хронологическом порядке
func (r *ActionLogRepo) List() ([]entity.ActionEntry, error) {
	var entries []entity.ActionEntry
	if err := r.db.Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
