package repository

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// TeamRepository определяет методы для работы с реестром команд
type TeamRepository interface {
	// Register сохраняет команду. Повторная регистрация того же имени не является ошибкой.
	Register(team *entity.Team) error

	// List возвращает все зарегистрированные команды в порядке создания
	List() ([]entity.Team, error)
}
