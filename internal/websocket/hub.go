package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// roleMessage - широковещательное сообщение, адресованное только
// соединениям с указанной ролью
type roleMessage struct {
	role    string
	payload []byte
}

// Hub управляет множеством подключенных клиентов и рассылкой сообщений.
// Один хаб на процесс: сессия одна, кластерного pub/sub нет.
type Hub struct {
	clients sync.Map // Ключ: *Client, Значение: bool

	broadcast     chan []byte
	roleBroadcast chan roleMessage
	register      chan *Client
	unregister    chan *Client
	done          chan struct{}

	clientCount atomic.Int64
}

// NewHub создает новый хаб
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan []byte, 256),
		roleBroadcast: make(chan roleMessage, 256),
		register:      make(chan *Client, 100),
		unregister:    make(chan *Client, 100),
		done:          make(chan struct{}),
	}
}

// Run запускает цикл обработки сообщений хаба
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case message := <-h.broadcast:
			h.handleBroadcast(message, "")
		case message := <-h.roleBroadcast:
			h.handleBroadcast(message.payload, message.role)
		case <-h.done:
			log.Println("[Hub] Получен сигнал завершения работы, останавливаемся")
			h.cleanupAllClients()
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients.Store(client, true)
	h.clientCount.Add(1)
	log.Printf("[Hub] Соединение %s зарегистрировано (всего: %d)", client.ConnectionID, h.clientCount.Load())
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients.LoadAndDelete(client); ok {
		if client.conn != nil {
			client.conn.Close()
		}
		client.CloseSend()
		h.clientCount.Add(-1)
		log.Printf("[Hub] Соединение %s удалено (всего: %d)", client.ConnectionID, h.clientCount.Load())
	}
}

// handleBroadcast отправляет сообщение клиентам. Пустая роль означает
// рассылку всем; непустая - только соединениям с этой ролью.
// Клиент с переполненным буфером отключается: медленный наблюдатель
// не должен задерживать остальных.
func (h *Hub) handleBroadcast(message []byte, role string) {
	h.clients.Range(func(key, value interface{}) bool {
		client, ok := key.(*Client)
		if !ok {
			return true
		}

		if role != "" && !client.HasRole(role) {
			return true
		}

		select {
		case client.send <- message:
		default:
			log.Printf("[Hub] Буфер соединения %s переполнен, отключаем", client.ConnectionID)
			h.clients.Delete(client)
			if client.conn != nil {
				client.conn.Close()
			}
			client.CloseSend()
			h.clientCount.Add(-1)
		}
		return true
	})
}

func (h *Hub) cleanupAllClients() {
	h.clients.Range(func(key, value interface{}) bool {
		if client, ok := key.(*Client); ok {
			if client.conn != nil {
				client.conn.Close()
			}
			client.CloseSend()
			h.clients.Delete(client)
		}
		return true
	})
	h.clientCount.Store(0)
}

// Broadcast отправляет байтовое сообщение всем клиентам
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// BroadcastJSON отправляет структуру JSON всем клиентам
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.broadcast <- data
	return nil
}

// BroadcastJSONToRole отправляет структуру JSON соединениям с указанной ролью
func (h *Hub) BroadcastJSONToRole(role string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.roleBroadcast <- roleMessage{role: role, payload: data}
	return nil
}

// SendToClient отправляет байтовое сообщение конкретному соединению.
// Возвращает false, если буфер переполнен или канал закрыт.
func (h *Hub) SendToClient(client *Client, message []byte) bool {
	if client.IsSendClosed() {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		log.Printf("[Hub] Не удалось отправить сообщение соединению %s: буфер переполнен", client.ConnectionID)
		return false
	}
}

// SendJSONToClient отправляет структуру JSON конкретному соединению
func (h *Hub) SendJSONToClient(client *Client, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.SendToClient(client, data)
	return nil
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// Close останавливает цикл обработки хаба
func (h *Hub) Close() {
	close(h.done)
}
