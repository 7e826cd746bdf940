package service

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quiznight-api/internal/domain/entity"
	"github.com/yourusername/quiznight-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiznight-api/internal/pkg/errors"
	"github.com/yourusername/quiznight-api/internal/service/gamesession"
)

// ============================================================================
// Фейки зависимостей
// ============================================================================

// fakePackStore реализует repository.PackStore в памяти
type fakePackStore struct {
	mu   sync.RWMutex
	pack *entity.Pack
}

func (f *fakePackStore) GetQuestionByID(id uint) (*entity.Question, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if q := f.pack.FindQuestion(id); q != nil {
		return q, nil
	}
	return nil, apperrors.ErrUnknownQuestion
}

func (f *fakePackStore) Meta() entity.PackMeta {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pack.Meta
}

func (f *fakePackStore) Current() *entity.Pack {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pack
}

func (f *fakePackStore) Replace(pack *entity.Pack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pack = pack
	return nil
}

// fakeTeamRepo реализует repository.TeamRepository
type fakeTeamRepo struct {
	mu    sync.Mutex
	teams []string
	fail  bool
}

func (f *fakeTeamRepo) Register(team *entity.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("база недоступна")
	}
	f.teams = append(f.teams, team.Name)
	return nil
}

func (f *fakeTeamRepo) List() ([]entity.Team, error) {
	return nil, nil
}

// fakeAnswerRepo реализует repository.AnswerRepository
type fakeAnswerRepo struct {
	mu      sync.Mutex
	entries []entity.Answer
	fail    bool
}

func (f *fakeAnswerRepo) Append(answer *entity.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("база недоступна")
	}
	f.entries = append(f.entries, *answer)
	return nil
}

func (f *fakeAnswerRepo) List() ([]entity.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Answer(nil), f.entries...), nil
}

func (f *fakeAnswerRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// fakeActionLog реализует repository.ActionLogRepository
type fakeActionLog struct {
	mu      sync.Mutex
	entries []entity.ActionEntry
}

func (f *fakeActionLog) Append(entry *entity.ActionEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeActionLog) List() ([]entity.ActionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.ActionEntry(nil), f.entries...), nil
}

func (f *fakeActionLog) byAction(action string) []entity.ActionEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []entity.ActionEntry
	for _, e := range f.entries {
		if e.Action == action {
			matched = append(matched, e)
		}
	}
	return matched
}

// capturedEvent - зафиксированное событие рассылки
type capturedEvent struct {
	Role string
	Type string
	Data interface{}
}

// fakeEvents реализует gamesession.EventSender
type fakeEvents struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakeEvents) BroadcastEvent(eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{Type: eventType, Data: data})
	return nil
}

func (f *fakeEvents) BroadcastEventToRole(role string, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{Role: role, Type: eventType, Data: data})
	return nil
}

func (f *fakeEvents) byType(eventType string) []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []capturedEvent
	for _, e := range f.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// fakeCache реализует repository.CacheRepository в памяти.
// Один экземпляр можно разделить между сессиями, как общий Redis.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (f *fakeCache) SetJSON(key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = data
	return nil
}

func (f *fakeCache) GetJSON(key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.store[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

// ============================================================================
// Сборка тестовой сессии
// ============================================================================

type sessionFixture struct {
	session   *GameSession
	packStore *fakePackStore
	teamRepo  *fakeTeamRepo
	answers   *fakeAnswerRepo
	actionLog *fakeActionLog
	events    *fakeEvents
}

func newSessionFixture(t *testing.T) *sessionFixture {
	return newSessionFixtureWith(t, nil, 5*time.Millisecond)
}

func newSessionFixtureWith(t *testing.T, cache repository.CacheRepository, tick time.Duration) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		packStore: &fakePackStore{pack: testPack()},
		teamRepo:  &fakeTeamRepo{},
		answers:   &fakeAnswerRepo{},
		actionLog: &fakeActionLog{},
		events:    &fakeEvents{},
	}

	f.session = NewGameSession(&gamesession.Dependencies{
		PackStore:     f.packStore,
		TeamRepo:      f.teamRepo,
		AnswerRepo:    f.answers,
		ActionLogRepo: f.actionLog,
		CacheRepo:     cache,
		Events:        f.events,
		Config: &gamesession.Config{
			TickInterval:    tick,
			RankingCacheTTL: time.Minute,
		},
	})
	t.Cleanup(f.session.Shutdown)

	return f
}

func testPack() *entity.Pack {
	return &entity.Pack{
		Meta: entity.PackMeta{
			Title:         "Тестовый пак",
			SupervisorPIN: "1234",
			ValidatorPIN:  "5678",
			Bonus:         true,
		},
		Questions: []entity.Question{
			{
				ID:   1,
				Type: entity.QuestionTypeText,
				Text: "Столица Франции?",
				Items: []entity.ScoreItem{
					{Label: "Столица", Value: 5},
					{Label: "Река", Value: 5},
				},
				Accepted:    entity.StringArray{"paris", "seine"},
				DurationSec: 1000, // раунд не истекает в течение теста
			},
			{
				ID:          2,
				Type:        entity.QuestionTypeChoice,
				Text:        "2+2?",
				Options:     entity.StringArray{"3", "4"},
				Items:       []entity.ScoreItem{{Label: "Ответ", Value: 2}},
				Accepted:    entity.StringArray{"4"},
				DurationSec: 1, // истекает после первого тика
			},
		},
	}
}

// waitForExpiry дожидается прохода оценки раунда
func (f *sessionFixture) waitForExpiry(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.events.byType("scores")) > 0
	}, time.Second, 5*time.Millisecond, "Проход оценки должен завершиться рассылкой scores")
}

// ============================================================================
// Регистрация команд
// ============================================================================

func TestGameSession_JoinRegistersTeamOnce(t *testing.T) {
	f := newSessionFixture(t)

	f.session.Join("Knights")
	f.session.Join("Knights") // повторный join идемпотентен

	assert.Equal(t, []string{"Knights"}, f.teamRepo.teams, "Команда сохраняется в реестр один раз")
	assert.Len(t, f.actionLog.byAction(entity.ActionTeamJoined), 2, "Каждый join аудируется")
}

func TestGameSession_JoinIgnoresEmptyName(t *testing.T) {
	f := newSessionFixture(t)

	f.session.Join("   ")

	assert.Empty(t, f.teamRepo.teams)
	assert.Empty(t, f.actionLog.byAction(entity.ActionTeamJoined))
}

func TestGameSession_JoinSurvivesRepositoryFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.teamRepo.fail = true

	f.session.Join("Knights")
	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	// Сбой реестра не мешает команде играть
	snapshot := f.session.Snapshot()
	require.Len(t, snapshot.Answers, 1)
}

// ============================================================================
// Аутентификация по PIN
// ============================================================================

func TestGameSession_AuthenticateGrantsRoles(t *testing.T) {
	f := newSessionFixture(t)

	role, ok := f.session.Authenticate("1234")
	require.True(t, ok)
	assert.Equal(t, gamesession.RoleSupervisor, role)

	role, ok = f.session.Authenticate("5678")
	require.True(t, ok)
	assert.Equal(t, gamesession.RoleValidator, role)

	assert.Len(t, f.actionLog.byAction(entity.ActionSupervisorAuth), 1)
	assert.Len(t, f.actionLog.byAction(entity.ActionValidatorAuth), 1)
}

func TestGameSession_AuthenticateRejectsWrongPIN(t *testing.T) {
	f := newSessionFixture(t)

	role, ok := f.session.Authenticate("0000")

	assert.False(t, ok)
	assert.Empty(t, role)

	failures := f.actionLog.byAction(entity.ActionAuthFailed)
	require.Len(t, failures, 1, "Неудачная попытка аудируется")
	assert.Equal(t, "0000", failures[0].Details["pin"])
}

// ============================================================================
// Публикация вопроса
// ============================================================================

func TestGameSession_PublishQuestionOpensRound(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)

	snapshot := f.session.Snapshot()
	assert.Equal(t, 1, snapshot.Game.Round)
	require.NotNil(t, snapshot.Game.Question)
	assert.Equal(t, uint(1), snapshot.Game.Question.ID)
	require.Len(t, snapshot.PublishedQuestions, 1)

	assert.Len(t, f.events.byType("question"), 1, "Публикация рассылается полным вопросом")
	assert.Len(t, f.actionLog.byAction(entity.ActionQuestionPublished), 1)
}

func TestGameSession_PublishQuestionRequiresSupervisor(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion("", 1)
	f.session.PublishQuestion(gamesession.RoleValidator, 1)

	snapshot := f.session.Snapshot()
	assert.Equal(t, 0, snapshot.Game.Round, "Неавторизованная публикация - тихий no-op")
	assert.Empty(t, f.events.byType("question"))
}

func TestGameSession_PublishUnknownQuestionIsNoOp(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 99)

	snapshot := f.session.Snapshot()
	assert.Equal(t, 0, snapshot.Game.Round, "Номер раунда растет только при успешной публикации")
	assert.Empty(t, f.events.byType("question"))
}

func TestGameSession_RepublishSupersedesRound(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)

	snapshot := f.session.Snapshot()
	assert.Equal(t, 2, snapshot.Game.Round, "Повторная публикация открывает новый раунд")
	require.Len(t, snapshot.PublishedQuestions, 2)

	// История вытесненного раунда сохраняется
	require.Len(t, snapshot.Answers, 1)
	assert.Equal(t, 1, snapshot.Answers[0].Round)
}

func TestGameSession_SupersededRoundEmitsNothing(t *testing.T) {
	// Крупный интервал тика оставляет запас между публикацией короткого
	// вопроса и его вытеснением
	f := newSessionFixtureWith(t, nil, 50*time.Millisecond)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 2)
	f.session.SubmitAnswer("Knights", []string{"4"})

	// Вытесняем короткий раунд длинным до истечения таймера
	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)

	// Даем вытесненному таймеру время, которого хватило бы для истечения
	time.Sleep(150 * time.Millisecond)

	assert.Empty(t, f.events.byType("scores"), "Вытесненный раунд не должен доходить до прохода оценки")
	assert.Empty(t, f.actionLog.byAction(entity.ActionAutoScoringCompleted))

	snapshot := f.session.Snapshot()
	assert.Equal(t, 2, snapshot.Game.Round)
	require.Len(t, snapshot.Answers, 1)
	assert.Nil(t, snapshot.Answers[0].Points, "Ответ вытесненного раунда остается неоцененным")
}

// ============================================================================
// Прием ответов
// ============================================================================

func TestGameSession_SubmitAnswerDuringRound(t *testing.T) {
	f := newSessionFixture(t)
	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)

	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	snapshot := f.session.Snapshot()
	require.Len(t, snapshot.Answers, 1)
	assert.Equal(t, "Knights", snapshot.Answers[0].Team)
	assert.Equal(t, 1, snapshot.Answers[0].Round)
	assert.Nil(t, snapshot.Answers[0].Points, "До прохода оценки ответ не оценен")

	assert.Equal(t, 1, f.answers.count(), "Ответ попадает в журнал")
	assert.Len(t, f.actionLog.byAction(entity.ActionAnswerSubmitted), 1)

	newAnswers := f.events.byType("newAnswer")
	require.Len(t, newAnswers, 1)
	assert.Equal(t, gamesession.RoleSupervisor, newAnswers[0].Role, "Сырой ответ виден только супервизорам")
}

func TestGameSession_SubmitAnswerWithoutRoundIsDropped(t *testing.T) {
	f := newSessionFixture(t)

	f.session.SubmitAnswer("Knights", []string{"paris"})

	assert.Empty(t, f.session.Snapshot().Answers)
	assert.Zero(t, f.answers.count())
	assert.Empty(t, f.events.byType("newAnswer"))
}

func TestGameSession_SubmitAnswerSurvivesJournalFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.answers.fail = true

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	// Принятый ответ не откатывается из-за сбоя журнала
	require.Len(t, f.session.Snapshot().Answers, 1)
	assert.Len(t, f.events.byType("newAnswer"), 1)
}

func TestGameSession_ResubmissionsAreKeptInOrder(t *testing.T) {
	f := newSessionFixture(t)
	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)

	f.session.SubmitAnswer("Knights", []string{"london", ""})
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	snapshot := f.session.Snapshot()
	require.Len(t, snapshot.Answers, 2, "Повторная отправка не затирает историю")
	assert.Equal(t, entity.StringArray{"paris", "seine"}, snapshot.Answers[1].Values)
}

// ============================================================================
// Истечение раунда и проход оценки
// ============================================================================

func TestGameSession_ExpiryScoresRoundOnce(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 2)
	f.session.SubmitAnswer("Knights", []string{"4"})
	f.session.SubmitAnswer("Wizards", []string{"3"})

	f.waitForExpiry(t)

	snapshot := f.session.Snapshot()
	assert.Equal(t, 0, snapshot.Game.TimeLeft)
	require.Len(t, snapshot.Answers, 2)

	// Верный выбор с бонусом пака: 2 + 1
	assert.Equal(t, 3, snapshot.Answers[0].AwardedPoints())
	assert.Equal(t, 0, snapshot.Answers[1].AwardedPoints())

	require.Len(t, snapshot.Ranking, 2)
	assert.Equal(t, entity.RankingEntry{Team: "Knights", Points: 3}, snapshot.Ranking[0])

	assert.Len(t, f.actionLog.byAction(entity.ActionAutoScoringCompleted), 1, "Проход оценки выполняется ровно один раз")
}

func TestGameSession_AnswersRejectedAfterExpiry(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 2)
	f.waitForExpiry(t)

	f.session.SubmitAnswer("Latecomers", []string{"4"})

	assert.Empty(t, f.session.Snapshot().Answers, "После нуля ответы не принимаются")
}

func TestGameSession_ScoresEventCarriesAnswersAndRanking(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 2)
	f.session.SubmitAnswer("Knights", []string{"4"})
	f.waitForExpiry(t)

	scores := f.events.byType("scores")
	require.NotEmpty(t, scores)

	payload, ok := scores[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payload, "answers")
	assert.Contains(t, payload, "ranking")
}

// ============================================================================
// Ручная корректировка очков
// ============================================================================

func TestGameSession_UpdateScoreReplacesPoints(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"paris", "danube"})

	f.session.UpdateScore(gamesession.RoleValidator, "Knights", 1, 7)

	snapshot := f.session.Snapshot()
	require.Len(t, snapshot.Answers, 1)
	assert.Equal(t, 7, snapshot.Answers[0].AwardedPoints(), "Корректировка заменяет очки, а не суммирует")

	updates := f.actionLog.byAction(entity.ActionScoreUpdated)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].Details["old"], "До оценки старого значения нет")
	assert.Equal(t, 7, updates[0].Details["new"])

	assert.NotEmpty(t, f.events.byType("scores"), "Корректировка рассылает обновленные очки")
}

func TestGameSession_UpdateScoreTargetsLastEntry(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"london", ""})
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	f.session.UpdateScore(gamesession.RoleSupervisor, "Knights", 1, 9)

	snapshot := f.session.Snapshot()
	require.Len(t, snapshot.Answers, 2)
	assert.Nil(t, snapshot.Answers[0].Points, "Корректируется только последняя запись пары")
	assert.Equal(t, 9, snapshot.Answers[1].AwardedPoints())
}

func TestGameSession_UpdateScoreRequiresRole(t *testing.T) {
	f := newSessionFixture(t)

	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})

	f.session.UpdateScore("", "Knights", 1, 100)

	snapshot := f.session.Snapshot()
	assert.Nil(t, snapshot.Answers[0].Points, "Без роли корректировка - тихий no-op")
	assert.Empty(t, f.actionLog.byAction(entity.ActionScoreUpdated))
}

func TestGameSession_UpdateScoreUnknownPairIsNoOp(t *testing.T) {
	f := newSessionFixture(t)

	f.session.UpdateScore(gamesession.RoleSupervisor, "Ghosts", 3, 5)

	assert.Empty(t, f.actionLog.byAction(entity.ActionScoreUpdated))
	assert.Empty(t, f.events.byType("scores"))
}

// ============================================================================
// Снимок состояния и рейтинг
// ============================================================================

func TestGameSession_SnapshotOfFreshSession(t *testing.T) {
	f := newSessionFixture(t)

	snapshot := f.session.Snapshot()

	assert.Equal(t, 0, snapshot.Game.Round)
	assert.Nil(t, snapshot.Game.Question)
	assert.Empty(t, snapshot.Answers)
	assert.Empty(t, snapshot.Ranking)
	assert.Empty(t, snapshot.PublishedQuestions)
}

func TestGameSession_RankingAccumulatesAcrossRounds(t *testing.T) {
	f := newSessionFixture(t)

	// Первый раунд с коротким вопросом, истекает и оценивается
	f.session.PublishQuestion(gamesession.RoleSupervisor, 2)
	f.session.SubmitAnswer("Knights", []string{"4"})
	f.waitForExpiry(t)

	// Второй раунд: корректируем вручную, не дожидаясь истечения
	f.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	f.session.SubmitAnswer("Knights", []string{"paris", "seine"})
	f.session.UpdateScore(gamesession.RoleSupervisor, "Knights", 2, 10)

	ranking := f.session.Ranking()
	require.Len(t, ranking, 1)
	assert.Equal(t, 13, ranking[0].Points, "Очки суммируются по всем раундам")
}

func TestGameSession_RankingCacheIsScopedToProcessRun(t *testing.T) {
	// Общий кеш переживает "рестарт": записи первой сессии еще живы,
	// когда вторая достигает тех же номеров версий с другой историей
	cache := newFakeCache()

	first := newSessionFixtureWith(t, cache, 5*time.Millisecond)
	first.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	first.session.SubmitAnswer("Knights", []string{"paris", "seine"})
	first.session.UpdateScore(gamesession.RoleSupervisor, "Knights", 1, 10)

	ranking := first.session.Ranking()
	require.Len(t, ranking, 1)
	require.Equal(t, entity.RankingEntry{Team: "Knights", Points: 10}, ranking[0])

	// Вторая сессия с тем же Redis проходит столько же мутаций истории
	second := newSessionFixtureWith(t, cache, 5*time.Millisecond)
	second.session.PublishQuestion(gamesession.RoleSupervisor, 1)
	second.session.SubmitAnswer("Wizards", []string{"paris", "danube"})
	second.session.UpdateScore(gamesession.RoleSupervisor, "Wizards", 1, 3)

	ranking = second.session.Ranking()
	require.Len(t, ranking, 1)
	assert.Equal(t, "Wizards", ranking[0].Team, "Рейтинг после рестарта считается по собственной истории, а не по кешу прошлого запуска")
	assert.Equal(t, 3, ranking[0].Points)
}
