package gamesession

import (
	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// Score выполняет проход оценки над всеми ответами раунда.
// Чистая функция: не обращается к состоянию сессии помимо аргументов.
// Начисленные очки записываются в сами ответы.
func Score(question *entity.Question, roundAnswers []*entity.Answer, bonusEnabled bool) {
	for _, answer := range roundAnswers {
		answer.SetPoints(ScoreAnswer(question, answer, bonusEnabled))
	}
}

// ScoreAnswer вычисляет очки одного ответа на вопрос.
//
// Вопрос с выбором варианта: выбранное значение приносит полную ценность
// первого оцениваемого поля, если входит в множество правильных; частичных
// очков нет. Текстовый вопрос: каждое поле сравнивается позиционно
// (без учета регистра и окружающих пробелов) и приносит свою ценность
// независимо от остальных.
//
// Бонус: +1 очко ровно один раз, если бонус включен в паке и сумма равна
// максимально достижимой для вопроса.
func ScoreAnswer(question *entity.Question, answer *entity.Answer, bonusEnabled bool) int {
	points := 0

	if question.IsChoice() {
		if len(answer.Values) > 0 && question.AcceptsChoice(answer.Values[0]) {
			points = question.ItemValue(0)
		}
	} else {
		for i, value := range answer.Values {
			if question.MatchesText(i, value) {
				points += question.ItemValue(i)
			}
		}
	}

	if bonusEnabled && points == question.MaxPoints() {
		points++
	}

	return points
}
