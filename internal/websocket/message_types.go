package websocket

// Серверные события, отправляемые обработчиками напрямую. Остальные события
// протокола (question, timerUpdate, newAnswer, scores, logUpdate) рассылает
// игровая сессия через EventSender.
const (
	// AUTH_RESULT сообщает результат аутентификации по PIN
	AUTH_RESULT = "authResult"

	// STATE_UPDATE доставляет полный снимок состояния сессии
	STATE_UPDATE = "stateUpdate"

	// PACK_UPDATED сообщает о замене пака вопросов
	PACK_UPDATED = "packUpdated"
)

// Клиентские команды игровой сессии
const (
	// CMD_JOIN регистрирует команду по имени
	CMD_JOIN = "join"

	// CMD_AUTH запрашивает роль по PIN
	CMD_AUTH = "authSupervisor"

	// CMD_ANSWER отправляет ответ команды
	CMD_ANSWER = "answer"

	// CMD_START_QUESTION публикует вопрос (только супервизор)
	CMD_START_QUESTION = "startQuestion"

	// CMD_UPDATE_SCORE вручную корректирует очки (супервизор или валидатор)
	CMD_UPDATE_SCORE = "updateScore"

	// CMD_REQUEST_STATE запрашивает полный снимок состояния
	CMD_REQUEST_STATE = "requestState"
)
