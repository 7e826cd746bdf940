package entity

import "strings"

// Типы вопросов в паке
const (
	// QuestionTypeChoice - вопрос с выбором одного варианта
	QuestionTypeChoice = "choice"

	// QuestionTypeText - вопрос со свободным текстовым ответом (одно или несколько полей)
	QuestionTypeText = "text"
)

// ScoreItem описывает одно оцениваемое поле вопроса
type ScoreItem struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Question представляет вопрос из пака. Вопросы неизменяемы:
// они загружаются из пака и никогда не редактируются сессией.
type Question struct {
	ID          uint        `json:"id"`
	Type        string      `json:"type"`
	Text        string      `json:"text"`
	Options     StringArray `json:"options,omitempty"`
	Items       []ScoreItem `json:"items"`
	Accepted    StringArray `json:"accepted"`
	DurationSec int         `json:"duration_sec"`
}

// IsChoice проверяет, является ли вопрос вопросом с выбором варианта
func (q *Question) IsChoice() bool {
	return q.Type == QuestionTypeChoice
}

// AcceptsChoice проверяет, входит ли выбранный вариант в множество правильных
func (q *Question) AcceptsChoice(value string) bool {
	for _, accepted := range q.Accepted {
		if accepted == value {
			return true
		}
	}
	return false
}

// MatchesText сравнивает ответ на i-е поле с правильным значением.
// Сравнение нечувствительно к регистру и окружающим пробелам.
func (q *Question) MatchesText(i int, value string) bool {
	if i < 0 || i >= len(q.Accepted) {
		return false
	}
	if value == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(q.Accepted[i]))
}

// ItemValue возвращает ценность i-го поля (0, если поле не сконфигурировано)
func (q *Question) ItemValue(i int) int {
	if i < 0 || i >= len(q.Items) {
		return 0
	}
	return q.Items[i].Value
}

// MaxPoints возвращает максимально достижимую сумму очков за вопрос
func (q *Question) MaxPoints() int {
	total := 0
	for _, item := range q.Items {
		total += item.Value
	}
	return total
}
