package gamesession

import (
	"log"
	"time"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
)

// Recorder ведет append-only журнал действий и транслирует каждую запись
// наблюдателям событием logUpdate. Контракт fire-and-forget: ошибка
// персистентности логируется и никогда не доходит до вызывающего,
// переход сессии из-за нее не откатывается.
type Recorder struct {
	repo   repository.ActionLogRepository
	events EventSender
}

// NewRecorder создает новый регистратор действий
func NewRecorder(repo repository.ActionLogRepository, events EventSender) *Recorder {
	return &Recorder{
		repo:   repo,
		events: events,
	}
}

// Record фиксирует действие в журнале и рассылает logUpdate.
// Никогда не возвращает ошибку.
func (r *Recorder) Record(action string, details entity.JSONMap) {
	if details == nil {
		details = entity.JSONMap{}
	}

	entry := &entity.ActionEntry{
		Timestamp: time.Now(),
		Action:    action,
		Details:   details,
	}

	if r.repo != nil {
		if err := r.repo.Append(entry); err != nil {
			log.Printf("[Recorder] ОШИБКА при записи действия %s в журнал: %v", action, err)
			// Запись в журнал не критична для игрового состояния, продолжаем
		}
	}

	if r.events != nil {
		if err := r.events.BroadcastEvent("logUpdate", map[string]interface{}{
			"timestamp": entry.Timestamp,
			"action":    entry.Action,
			"details":   entry.Details,
		}); err != nil {
			log.Printf("[Recorder] ОШИБКА при рассылке logUpdate для действия %s: %v", action, err)
		}
	}
}
