package entity

import (
	"time"
)

// Answer представляет отправленный командой ответ на вопрос раунда.
// Повторные отправки одной команды в одном раунде сохраняются в порядке
// поступления; авторитетной для рейтинга является последняя запись.
type Answer struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Team        string      `gorm:"size:255;not null;index" json:"team"`
	Round       int         `gorm:"not null;index" json:"round"`
	Values      StringArray `gorm:"type:jsonb;not null" json:"values"`
	SubmittedAt time.Time   `gorm:"not null" json:"timestamp"`
	Points      *int        `json:"points"` // nil - ответ еще не оценен
}

// TableName определяет имя таблицы для GORM
func (Answer) TableName() string {
	return "answers"
}

// AwardedPoints возвращает начисленные очки (0 для неоцененного ответа)
func (a *Answer) AwardedPoints() int {
	if a.Points == nil {
		return 0
	}
	return *a.Points
}

// SetPoints записывает начисленные очки
func (a *Answer) SetPoints(points int) {
	a.Points = &points
}
