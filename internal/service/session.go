package service

import (
	"crypto/subtle"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/service/gamesession"
)

// GameSession - машина состояний игровой сессии. Владеет всем изменяемым
// состоянием (раунд, команды, история ответов) и выполняет каждую команду,
// включая тики таймера, под одним мьютексом: никакие два перехода не могут
// чередоваться посреди мутации.
//
// Время жизни состояния - время жизни процесса; при рестарте состояние
// восстанавливается только из журналов, автоматической реконструкции нет.
type GameSession struct {
	deps     *gamesession.Dependencies
	config   *gamesession.Config
	recorder *gamesession.Recorder

	// cacheNonce разделяет ключи кеша рейтинга между запусками процесса:
	// счетчик версий начинается с нуля заново, а записи прошлого запуска
	// могут жить в Redis до истечения TTL
	cacheNonce string

	mu        sync.Mutex
	round     gamesession.RoundState
	published []entity.Question
	teams     map[string]struct{}
	answers   []*entity.Answer
	version   uint64 // версия множества ответов, ключ кеша рейтинга
	timer     *gamesession.RoundTimer
}

// NewGameSession создает новую игровую сессию
func NewGameSession(deps *gamesession.Dependencies) *GameSession {
	config := deps.Config
	if config == nil {
		config = gamesession.DefaultConfig()
	}

	s := &GameSession{
		deps:       deps,
		config:     config,
		recorder:   gamesession.NewRecorder(deps.ActionLogRepo, deps.Events),
		cacheNonce: uuid.New().String(),
		teams:      make(map[string]struct{}),
	}

	log.Println("[GameSession] Игровая сессия инициализирована")
	return s
}

// Recorder возвращает регистратор действий сессии (используется HTTP-обработчиками)
func (s *GameSession) Recorder() *gamesession.Recorder {
	return s.recorder
}

// ---------------------------------------------------------------------------
// Команды
// ---------------------------------------------------------------------------

// Join регистрирует команду по имени. Роль не требуется; повторный join
// идемпотентен. Пустое имя игнорируется.
func (s *GameSession) Join(teamName string) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		log.Println("[GameSession] Join с пустым именем команды игнорируется")
		return
	}

	s.mu.Lock()
	_, known := s.teams[teamName]
	s.teams[teamName] = struct{}{}
	s.mu.Unlock()

	// Реестр команд персистится fire-and-forget: ошибка БД не мешает игре
	if !known && s.deps.TeamRepo != nil {
		if err := s.deps.TeamRepo.Register(&entity.Team{Name: teamName}); err != nil {
			log.Printf("[GameSession] ОШИБКА при сохранении команды '%s': %v", teamName, err)
		}
	}

	s.recorder.Record(entity.ActionTeamJoined, entity.JSONMap{"team": teamName})
}

// Authenticate сравнивает PIN с двумя настроенными секретами пака и возвращает
// полученную роль. Соединению выдается не более одной роли. Каждая попытка,
// успешная или нет, аудируется; блокировки после неудач нет.
func (s *GameSession) Authenticate(pin string) (string, bool) {
	meta := s.deps.PackStore.Meta()

	if pinEqual(pin, meta.SupervisorPIN) {
		s.recorder.Record(entity.ActionSupervisorAuth, entity.JSONMap{})
		return gamesession.RoleSupervisor, true
	}
	if pinEqual(pin, meta.ValidatorPIN) {
		s.recorder.Record(entity.ActionValidatorAuth, entity.JSONMap{})
		return gamesession.RoleValidator, true
	}

	s.recorder.Record(entity.ActionAuthFailed, entity.JSONMap{"pin": pin})
	return "", false
}

// PublishQuestion публикует вопрос пака, открывая новый раунд. Требует роли
// супервизора; публикация всегда вытесняет идущий раунд. Неавторизованный
// вызов и неизвестный ID вопроса - тихие no-op.
func (s *GameSession) PublishQuestion(role string, questionID uint) {
	if !s.authorize("startQuestion", role, gamesession.RoleSupervisor) {
		return
	}

	question, err := s.deps.PackStore.GetQuestionByID(questionID)
	if err != nil {
		log.Printf("[GameSession] startQuestion с неизвестным ID вопроса %d игнорируется", questionID)
		return
	}

	s.mu.Lock()
	// Сигнал отмены старому таймеру до создания нового раунда:
	// устаревший тик отбрасывается проверкой номера раунда под мьютексом
	superseded := s.timer
	if superseded != nil {
		superseded.Stop()
	}

	s.round = gamesession.RoundState{
		Ordinal:   s.round.Ordinal + 1,
		Question:  question,
		Remaining: question.DurationSec,
	}
	s.published = append(s.published, *question)
	ordinal := s.round.Ordinal

	s.timer = gamesession.StartRoundTimer(
		ordinal,
		question.DurationSec,
		s.config.TickInterval,
		s.handleTick,
		s.handleExpiry,
	)
	s.mu.Unlock()

	// Дожидаемся полной остановки вытесненного таймера вне мьютекса
	if superseded != nil {
		superseded.Wait()
	}

	s.recorder.Record(entity.ActionQuestionPublished, entity.JSONMap{
		"id":    question.ID,
		"text":  question.Text,
		"round": ordinal,
	})

	if err := s.deps.Events.BroadcastEvent("question", question); err != nil {
		log.Printf("[GameSession] ОШИБКА при рассылке вопроса #%d: %v", question.ID, err)
	}

	log.Printf("[GameSession] Раунд #%d открыт: вопрос #%d на %d сек.", ordinal, question.ID, question.DurationSec)
}

// SubmitAnswer принимает ответ команды. Ответ принимается только при активном
// вопросе и оставшемся времени > 0; иначе тихо отбрасывается. Структурной
// валидации по форме вопроса на этом уровне нет - она происходит при оценке.
func (s *GameSession) SubmitAnswer(team string, values []string) {
	s.mu.Lock()
	if !s.round.Active() {
		s.mu.Unlock()
		log.Printf("[GameSession] Ответ команды '%s' вне активного раунда отброшен", team)
		return
	}

	answer := &entity.Answer{
		Team:        team,
		Round:       s.round.Ordinal,
		Values:      entity.StringArray(values),
		SubmittedAt: time.Now(),
	}
	s.answers = append(s.answers, answer)
	s.version++
	round := s.round.Ordinal
	broadcast := *answer
	s.mu.Unlock()

	// Журнал ответов: fire-and-forget, сбой не откатывает принятый ответ
	if s.deps.AnswerRepo != nil {
		if err := s.deps.AnswerRepo.Append(answer); err != nil {
			log.Printf("[GameSession] ОШИБКА при записи ответа команды '%s' в журнал: %v", team, err)
		}
	}

	s.recorder.Record(entity.ActionAnswerSubmitted, entity.JSONMap{"team": team, "round": round})

	if err := s.deps.Events.BroadcastEventToRole(gamesession.RoleSupervisor, "newAnswer", broadcast); err != nil {
		log.Printf("[GameSession] ОШИБКА при отправке newAnswer супервизорам: %v", err)
	}
}

// UpdateScore вручную заменяет очки ответа (команда, раунд). Требует роли
// супервизора или валидатора. Корректировка заменяет результат движка,
// а не смешивается с ним; несуществующая пара - тихий no-op.
func (s *GameSession) UpdateScore(role string, team string, round int, newPoints int) {
	if !s.authorize("updateScore", role, gamesession.RoleSupervisor, gamesession.RoleValidator) {
		return
	}

	s.mu.Lock()
	// Авторитетна последняя запись пары (команда, раунд)
	var target *entity.Answer
	for i := len(s.answers) - 1; i >= 0; i-- {
		if s.answers[i].Team == team && s.answers[i].Round == round {
			target = s.answers[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		log.Printf("[GameSession] updateScore для несуществующей пары ('%s', раунд %d) игнорируется", team, round)
		return
	}

	var oldPoints interface{}
	if target.Points != nil {
		oldPoints = *target.Points
	}
	target.SetPoints(newPoints)
	s.version++

	version := s.version
	answers := s.snapshotAnswersLocked()
	s.mu.Unlock()

	ranking := s.rankingFor(version, answers)

	s.recorder.Record(entity.ActionScoreUpdated, entity.JSONMap{
		"team":  team,
		"round": round,
		"old":   oldPoints,
		"new":   newPoints,
	})

	if err := s.deps.Events.BroadcastEvent("scores", map[string]interface{}{
		"answers": answers,
		"ranking": ranking,
	}); err != nil {
		log.Printf("[GameSession] ОШИБКА при рассылке scores после корректировки: %v", err)
	}
}

// SessionSnapshot - полный снимок состояния для переподключающихся
// наблюдателей: единственный примитив ресинхронизации.
type SessionSnapshot struct {
	Game               GameView              `json:"game"`
	Answers            []entity.Answer       `json:"answers"`
	Ranking            []entity.RankingEntry `json:"ranking"`
	PublishedQuestions []entity.Question     `json:"publishedQuestions"`
}

// GameView - видимое состояние текущего раунда
type GameView struct {
	Round    int              `json:"round"`
	Question *entity.Question `json:"question"`
	TimeLeft int              `json:"timeLeft"`
}

// Snapshot возвращает полный снимок состояния сессии. Роль не требуется.
func (s *GameSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	snapshot := SessionSnapshot{
		Game: GameView{
			Round:    s.round.Ordinal,
			Question: s.round.Question,
			TimeLeft: s.round.Remaining,
		},
		Answers:            s.snapshotAnswersLocked(),
		PublishedQuestions: append([]entity.Question(nil), s.published...),
	}
	version := s.version
	s.mu.Unlock()

	snapshot.Ranking = s.rankingFor(version, snapshot.Answers)
	return snapshot
}

// Ranking возвращает текущий рейтинг (для экспорта)
func (s *GameSession) Ranking() []entity.RankingEntry {
	s.mu.Lock()
	version := s.version
	answers := s.snapshotAnswersLocked()
	s.mu.Unlock()

	return s.rankingFor(version, answers)
}

// Shutdown останавливает таймер текущего раунда
func (s *GameSession) Shutdown() {
	s.mu.Lock()
	timer := s.timer
	s.timer = nil
	if timer != nil {
		timer.Stop()
	}
	s.mu.Unlock()

	if timer != nil {
		timer.Wait()
	}
	log.Println("[GameSession] Игровая сессия остановлена")
}

// ---------------------------------------------------------------------------
// Таймер раунда
// ---------------------------------------------------------------------------

// handleTick обрабатывает тик таймера. Тик вытесненного раунда отбрасывается:
// номер раунда тика сверяется с текущим под мьютексом сессии.
func (s *GameSession) handleTick(round, remaining int) {
	s.mu.Lock()
	if round != s.round.Ordinal || s.round.Question == nil {
		s.mu.Unlock()
		return
	}
	s.round.Remaining = remaining
	s.mu.Unlock()

	if err := s.deps.Events.BroadcastEvent("timerUpdate", remaining); err != nil {
		log.Printf("[GameSession] ОШИБКА при рассылке timerUpdate раунда #%d: %v", round, err)
	}
}

// handleExpiry выполняет проход оценки в момент достижения нуля.
// Ровно один проход на раунд: повторный вход и устаревший таймер отбрасываются,
// бонус никогда не начисляется дважды.
func (s *GameSession) handleExpiry(round int) {
	s.mu.Lock()
	if round != s.round.Ordinal || s.round.Question == nil || s.round.Scored {
		s.mu.Unlock()
		return
	}
	s.round.Scored = true
	s.round.Remaining = 0

	question := s.round.Question
	bonus := s.deps.PackStore.Meta().Bonus

	var roundAnswers []*entity.Answer
	for _, answer := range s.answers {
		if answer.Round == round {
			roundAnswers = append(roundAnswers, answer)
		}
	}

	gamesession.Score(question, roundAnswers, bonus)
	s.version++

	version := s.version
	answers := s.snapshotAnswersLocked()
	s.mu.Unlock()

	ranking := s.rankingFor(version, answers)

	s.recorder.Record(entity.ActionAutoScoringCompleted, entity.JSONMap{"round": round})

	if err := s.deps.Events.BroadcastEvent("scores", map[string]interface{}{
		"answers": answers,
		"ranking": ranking,
	}); err != nil {
		log.Printf("[GameSession] ОШИБКА при рассылке scores раунда #%d: %v", round, err)
	}

	log.Printf("[GameSession] Раунд #%d оценен: %d ответов", round, len(roundAnswers))
}

// ---------------------------------------------------------------------------
// Вспомогательные методы
// ---------------------------------------------------------------------------

// authorize - единственная точка принятия решения по ролям для игровых команд.
// Политика протокола: неавторизованная команда - тихий no-op; канала отказа,
// кроме результата аутентификации, у клиента нет.
func (s *GameSession) authorize(command string, role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	log.Printf("[GameSession] Команда %s отклонена: роль '%s' не дает прав", command, role)
	return false
}

// snapshotAnswersLocked возвращает копию истории ответов.
// Вызывается только под мьютексом.
func (s *GameSession) snapshotAnswersLocked() []entity.Answer {
	answers := make([]entity.Answer, len(s.answers))
	for i, answer := range s.answers {
		answers[i] = *answer
	}
	return answers
}

// rankingFor возвращает рейтинг для версии множества ответов, используя кеш.
// Кешированное значение по построению равно полному пересчету: любая мутация
// истории ответов увеличивает версию, а nonce запуска не дает перезапущенному
// процессу прочитать записи прошлой сессии под тем же номером версии.
func (s *GameSession) rankingFor(version uint64, answers []entity.Answer) []entity.RankingEntry {
	key := fmt.Sprintf("ranking:%s:v%d", s.cacheNonce, version)

	if s.deps.CacheRepo != nil {
		var cached []entity.RankingEntry
		if err := s.deps.CacheRepo.GetJSON(key, &cached); err == nil {
			return cached
		}
	}

	ranking := gamesession.Rank(answers)

	if s.deps.CacheRepo != nil {
		if err := s.deps.CacheRepo.SetJSON(key, ranking, s.config.RankingCacheTTL); err != nil {
			log.Printf("[GameSession] ОШИБКА при кешировании рейтинга v%d: %v", version, err)
		}
	}

	return ranking
}

// pinEqual сравнивает PIN с секретом за постоянное время
func pinEqual(pin, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pin), []byte(secret)) == 1
}
