package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager обрабатывает WebSocket сообщения
type Manager struct {
	hub            *Hub
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *Hub) *Manager {
	return &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("Failed to unmarshal message from %s: %v, Message: %s", client.ConnectionID, err, string(message))
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		log.Printf("No handler registered for message type '%s' from connection %s", event.Type, client.ConnectionID)
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil // Неизвестный тип - не закрываем соединение
	}

	rawMessage, _ := json.Marshal(event.Data)
	if err := handler(rawMessage, client); err != nil {
		log.Printf("Handler for type '%s' returned error for connection %s: %v", event.Type, client.ConnectionID, err)
		return err
	}

	return nil
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту.
// Этот метод НЕ закрывает соединение.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: "server:error",
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSONToClient(client, errorEvent); err != nil {
		log.Printf("ERROR sending error to connection %s: %v", client.ConnectionID, err)
	}
}

// BroadcastEvent отправляет событие всем клиентам
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	return m.hub.BroadcastJSON(Event{Type: eventType, Data: data})
}

// BroadcastEventToRole отправляет событие соединениям с указанной ролью
func (m *Manager) BroadcastEventToRole(role string, eventType string, data interface{}) error {
	return m.hub.BroadcastJSONToRole(role, Event{Type: eventType, Data: data})
}

// SendEventToClient отправляет событие конкретному соединению
func (m *Manager) SendEventToClient(client *Client, eventType string, data interface{}) error {
	return m.hub.SendJSONToClient(client, Event{Type: eventType, Data: data})
}

// GetMetrics возвращает текущие метрики WebSocket-системы
func (m *Manager) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"client_count": m.hub.ClientCount(),
	}
}
