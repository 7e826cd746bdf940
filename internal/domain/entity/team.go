package entity

import "time"

// Team представляет зарегистрированную команду. Идентичность - уникальное имя.
// Команды создаются при join и никогда не удаляются в течение сессии.
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Team) TableName() string {
	return "teams"
}
