package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 64 * 1024

	// Размер буфера канала отправки сообщений клиенту
	defaultClientBufferSize = 128
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client является посредником между WebSocket соединением и хабом.
// Соединения анонимны: идентичность наблюдателя - само соединение,
// роли выдаются результатом аутентификации по PIN.
type Client struct {
	// Уникальный ID соединения
	ConnectionID string

	hub *Hub

	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг закрытия канала send (для предотвращения panic)
	sendClosed atomic.Bool

	// Время последней активности клиента
	lastActivity time.Time

	// Роли соединения ("supervisor", "validator")
	roles   map[string]bool
	roleMux sync.RWMutex
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, defaultClientBufferSize),
		lastActivity: time.Now(),
		roles:        make(map[string]bool),
	}
}

// HasRole проверяет, есть ли у соединения указанная роль
func (c *Client) HasRole(role string) bool {
	c.roleMux.RLock()
	defer c.roleMux.RUnlock()
	return c.roles[role]
}

// AddRole добавляет соединению указанную роль
func (c *Client) AddRole(role string) {
	c.roleMux.Lock()
	defer c.roleMux.Unlock()
	c.roles[role] = true
	log.Printf("WebSocket: соединению %s добавлена роль %s", c.ConnectionID, role)
}

// Role возвращает роль соединения (пустая строка, если роли нет).
// Соединению выдается не более одной роли.
func (c *Client) Role() string {
	c.roleMux.RLock()
	defer c.roleMux.RUnlock()
	for role := range c.roles {
		return role
	}
	return ""
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		log.Printf("WebSocket Client Read Pump STOPPED for ConnID: %s", c.ConnectionID)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	log.Printf("WebSocket Client Read Pump STARTED for ConnID: %s", c.ConnectionID)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket Client Connection Closed Normally (ConnID: %s): %v", c.ConnectionID, err)
			} else {
				log.Printf("WebSocket Client Read Error (ConnID: %s): %v", c.ConnectionID, err)
			}
			break
		}

		c.lastActivity = time.Now()

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("WebSocket Client Handler Error (ConnID: %s): %v. Closing connection.", c.ConnectionID, handlerErr)
			break
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover.
// Возвращает ошибку, если обработчик вернул ошибку.
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for ConnID: %s. Panic: %v\nStack trace:\n%s",
				client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler != nil {
		err = messageHandler(message, client)
	} else {
		log.Printf("Warning: No message handler registered for connection %s", client.ConnectionID)
	}
	return err
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.Printf("WebSocket Client Write Pump STOPPED for ConnID: %s", c.ConnectionID)
	}()

	log.Printf("WebSocket Client Write Pump STARTED for ConnID: %s", c.ConnectionID)

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("WebSocket Client SetWriteDeadline Error (ConnID: %s): %v", c.ConnectionID, err)
				return
			}

			if !ok {
				// Канал send закрыт хабом
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("WebSocket Client NextWriter Error (ConnID: %s): %v", c.ConnectionID, err)
				return
			}

			if _, err := w.Write(message); err != nil {
				log.Printf("WebSocket Client Write Error (ConnID: %s): %v", c.ConnectionID, err)
			}

			if err := w.Close(); err != nil {
				log.Printf("WebSocket Client Writer Close Error (ConnID: %s): %v", c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("WebSocket Client SetWriteDeadline (Ping) Error (ConnID: %s): %v", c.ConnectionID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket Client Ping Error (ConnID: %s): %v", c.ConnectionID, err)
				return
			}
		}
	}
}

// StartPumps регистрирует клиента в хабе и запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	c.hub.register <- c

	go c.writePump()
	go c.readPump(messageHandler)
}

// CloseSend безопасно закрывает канал send (только один раз).
// Возвращает true, если канал был закрыт этим вызовом.
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// IsSendClosed проверяет, закрыт ли канал send
func (c *Client) IsSendClosed() bool {
	return c.sendClosed.Load()
}
