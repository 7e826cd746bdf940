package postgres

import (
	"errors"
	"log"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// TeamRepo реализует repository.TeamRepository
type TeamRepo struct {
	db *gorm.DB
}

// NewTeamRepo создает новый репозиторий команд
func NewTeamRepo(db *gorm.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// Register сохраняет команду. Повторная регистрация (join той же команды после
// переподключения) определяется по unique constraint на имя и не считается ошибкой.
func (r *TeamRepo) Register(team *entity.Team) error {
	err := r.db.Create(team).Error
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // 23505 - unique_violation
			log.Printf("[TeamRepo] Команда '%s' уже зарегистрирована, повторный join игнорируется", team.Name)
			return nil
		}
		return err
	}
	return nil
}

// List возвращает все зарегистрированные команды в порядке создания
func (r *TeamRepo) List() ([]entity.Team, error) {
	var teams []entity.Team
	if err := r.db.Order("id").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}
