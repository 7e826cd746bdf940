package gamesession

import (
	"sort"

	"github.com/yourusername/quiznight-api/internal/domain/entity"
)

// Rank агрегирует очки команд по всей истории ответов.
// Чистая функция; результат детерминирован: убывание по очкам,
// при равенстве - возрастание по имени команды.
//
// Авторитетной для пары (команда, раунд) является последняя запись
// истории: повторные отправки и ручные корректировки заменяют,
// а не суммируют, результат раунда. Неоцененные ответы считаются нулем.
func Rank(allAnswers []entity.Answer) []entity.RankingEntry {
	type roundKey struct {
		team  string
		round int
	}

	// Последняя запись на (команда, раунд)
	authoritative := make(map[roundKey]entity.Answer)
	for _, answer := range allAnswers {
		authoritative[roundKey{team: answer.Team, round: answer.Round}] = answer
	}

	totals := make(map[string]int)
	for key, answer := range authoritative {
		totals[key.team] += answer.AwardedPoints()
	}

	ranking := make([]entity.RankingEntry, 0, len(totals))
	for team, points := range totals {
		ranking = append(ranking, entity.RankingEntry{Team: team, Points: points})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Points != ranking[j].Points {
			return ranking[i].Points > ranking[j].Points
		}
		return ranking[i].Team < ranking[j].Team
	})

	return ranking
}
