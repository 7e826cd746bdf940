package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/quiznight-api/internal/service"
	"github.com/yourusername/quiznight-api/internal/websocket"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsHub       *websocket.Hub
	wsManager   *websocket.Manager
	gameSession *service.GameSession
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	gameSession *service.GameSession,
) *WSHandler {
	handler := &WSHandler{
		wsHub:       wsHub,
		wsManager:   wsManager,
		gameSession: gameSession,
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Игроки и табло подключаются из локальной сети без аутентификации,
		// происхождение не ограничиваем
		return true
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Соединение анонимно: PIN ни при подключении, ни в URL не передается,
// роли выдаются позже командой аутентификации.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upgrade: %v", err)})
		return
	}

	client := websocket.NewClient(h.wsHub, conn)
	log.Printf("WebSocket: Connection upgraded, ConnID: %s", client.ConnectionID)

	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики команд игровой сессии
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.CMD_JOIN, h.handleJoin)
	h.wsManager.RegisterHandler(websocket.CMD_AUTH, h.handleAuth)
	h.wsManager.RegisterHandler(websocket.CMD_ANSWER, h.handleAnswer)
	h.wsManager.RegisterHandler(websocket.CMD_START_QUESTION, h.handleStartQuestion)
	h.wsManager.RegisterHandler(websocket.CMD_UPDATE_SCORE, h.handleUpdateScore)
	h.wsManager.RegisterHandler(websocket.CMD_REQUEST_STATE, h.handleRequestState)
}

// handleJoin регистрирует команду. Полезная нагрузка - имя команды
// строкой или объектом {"team": "..."}.
func (h *WSHandler) handleJoin(data json.RawMessage, client *websocket.Client) error {
	team, err := decodeStringPayload(data, "team")
	if err != nil {
		log.Printf("WebSocket: некорректная полезная нагрузка join от %s: %v", client.ConnectionID, err)
		return nil
	}

	h.gameSession.Join(team)
	return nil
}

// handleAuth выдает соединению роль по PIN и отвечает результатом
// только запрашивающему соединению
func (h *WSHandler) handleAuth(data json.RawMessage, client *websocket.Client) error {
	pin, err := decodeStringPayload(data, "pin")
	if err != nil {
		log.Printf("WebSocket: некорректная полезная нагрузка аутентификации от %s: %v", client.ConnectionID, err)
		return nil
	}

	role, ok := h.gameSession.Authenticate(pin)
	if ok && client.Role() == "" {
		client.AddRole(role)
	}

	return h.wsManager.SendEventToClient(client, websocket.AUTH_RESULT, map[string]interface{}{
		"success": ok,
		"role":    role,
	})
}

// handleAnswer принимает ответ команды
func (h *WSHandler) handleAnswer(data json.RawMessage, client *websocket.Client) error {
	var payload struct {
		Team   string   `json:"team"`
		Values []string `json:"values"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("WebSocket: некорректная полезная нагрузка answer от %s: %v", client.ConnectionID, err)
		return nil
	}

	h.gameSession.SubmitAnswer(payload.Team, payload.Values)
	return nil
}

// handleStartQuestion публикует вопрос. Права проверяет сессия:
// неавторизованная команда - тихий no-op.
func (h *WSHandler) handleStartQuestion(data json.RawMessage, client *websocket.Client) error {
	var questionID uint
	if err := json.Unmarshal(data, &questionID); err != nil {
		var payload struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Printf("WebSocket: некорректная полезная нагрузка startQuestion от %s: %v", client.ConnectionID, err)
			return nil
		}
		questionID = payload.ID
	}

	h.gameSession.PublishQuestion(client.Role(), questionID)
	return nil
}

// handleUpdateScore вручную корректирует очки ответа
func (h *WSHandler) handleUpdateScore(data json.RawMessage, client *websocket.Client) error {
	var payload struct {
		Team   string `json:"team"`
		Round  int    `json:"round"`
		Points int    `json:"points"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("WebSocket: некорректная полезная нагрузка updateScore от %s: %v", client.ConnectionID, err)
		return nil
	}

	h.gameSession.UpdateScore(client.Role(), payload.Team, payload.Round, payload.Points)
	return nil
}

// handleRequestState отправляет полный снимок состояния запрашивающему
// соединению. Доступно любой роли: снимок - единственный примитив
// ресинхронизации после переподключения.
func (h *WSHandler) handleRequestState(data json.RawMessage, client *websocket.Client) error {
	snapshot := h.gameSession.Snapshot()
	return h.wsManager.SendEventToClient(client, websocket.STATE_UPDATE, snapshot)
}

// decodeStringPayload принимает строку либо объект с указанным полем
func decodeStringPayload(data json.RawMessage, field string) (string, error) {
	var value string
	if err := json.Unmarshal(data, &value); err == nil {
		return value, nil
	}

	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("ожидалась строка или объект с полем %q", field)
	}
	return payload[field], nil
}
