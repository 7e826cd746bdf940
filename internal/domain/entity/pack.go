package entity

// PackMeta содержит метаданные пака: PIN-коды ролей и флаг бонуса
type PackMeta struct {
	Title         string `json:"title"`
	SupervisorPIN string `json:"supervisor_pin"`
	ValidatorPIN  string `json:"validator_pin"`
	Bonus         bool   `json:"bonus"`
}

// Pack представляет загруженный набор вопросов с метаданными.
// Источник вопросов для сессии; сессия пак не изменяет.
type Pack struct {
	Meta      PackMeta   `json:"meta"`
	Questions []Question `json:"questions"`
}

// FindQuestion возвращает вопрос по ID или nil, если такого вопроса нет
func (p *Pack) FindQuestion(id uint) *Question {
	for i := range p.Questions {
		if p.Questions[i].ID == id {
			return &p.Questions[i]
		}
	}
	return nil
}
