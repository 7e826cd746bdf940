package entity

// RankingEntry представляет позицию команды в рейтинге.
// Производное значение: пересчитывается из истории ответов, не хранится.
type RankingEntry struct {
	Team   string `json:"team"`
	Points int    `json:"points"`
}
