package entity

import "time"

// Аудируемые действия сессии
const (
	ActionServerStarted        = "SERVER_STARTED"
	ActionTeamJoined           = "TEAM_JOINED"
	ActionSupervisorAuth       = "SUPERVISOR_AUTHENTICATED"
	ActionValidatorAuth        = "VALIDATOR_AUTHENTICATED"
	ActionAuthFailed           = "AUTH_ATTEMPT_FAILED"
	ActionQuestionPublished    = "QUESTION_PUBLISHED"
	ActionAnswerSubmitted      = "ANSWER_SUBMITTED"
	ActionAutoScoringCompleted = "AUTO_SCORING_COMPLETED"
	ActionScoreUpdated         = "SCORE_UPDATED"
	ActionPackUpdated          = "PACK_UPDATED"
	ActionRulesUpdated         = "RULES_UPDATED"
	ActionLogoUpdated          = "LOGO_UPDATED"
)

// ActionEntry представляет одну запись append-only журнала действий
type ActionEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Action    string    `gorm:"size:64;not null" json:"action"`
	Details   JSONMap   `gorm:"type:jsonb" json:"details"`
}

// TableName определяет имя таблицы для GORM
func (ActionEntry) TableName() string {
	return "action_log"
}
