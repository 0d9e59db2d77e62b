package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub хранит подключения клиентов, сгруппированные по channelID.
// Рассылка чисто уведомительная: корректность списков событий от неё не
// зависит, неподписанные клиенты видят изменения при повторном запросе.
type Hub struct {
	// Для каждого канала храним множество подключений.
	clients map[string]map[*Client]bool
	// Канал для регистрации нового клиента.
	register chan *Client
	// Канал для удаления клиента.
	unregister chan *Client
	// Канал для трансляции сообщений по конкретному каналу чата.
	broadcast chan broadcastMessage
	// Mutex для защиты карты клиентов.
	mu sync.RWMutex
}

type broadcastMessage struct {
	ChannelID string
	Message   []byte
}

// ScheduleEvent — событие жизненного цикла расписания, рассылаемое
// подписчикам канала после успешной записи в БД.
type ScheduleEvent struct {
	EventType string      `json:"event_type"` // schedule_created | schedule_deleted
	ChannelID string      `json:"channel_id"`
	Data      interface{} `json:"data,omitempty"`
}

// Глобальный экземпляр хаба.
var HubInstance = NewHub()

// NewHub создает новый Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage),
	}
}

// Run запускает цикл обработки каналов хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.ChannelID] == nil {
				h.clients[client.ChannelID] = make(map[*Client]bool)
			}
			h.clients[client.ChannelID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.ChannelID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.ChannelID)
					}
				}
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[message.ChannelID]; ok {
				for client := range clients {
					select {
					case client.Send <- message.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastScheduleEvent сериализует событие и рассылает его всем
// подписчикам канала.
func (h *Hub) BroadcastScheduleEvent(event ScheduleEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("Ошибка сериализации WS-события:", err)
		return
	}
	h.broadcast <- broadcastMessage{ChannelID: event.ChannelID, Message: payload}
}

// Client представляет одно подключение через WebSocket.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	ChannelID string
}

// readPump читает сообщения из WebSocket-соединения. Входящие сообщения
// не обрабатываются, отслеживается только разрыв соединения.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump отправляет сообщения клиенту из канала Send.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Канал закрыт.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			// Ping для поддержания соединения.
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Апгрейдер для WebSocket с разрешением всех источников.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ScheduleWebSocketHandler обновляет соединение до WebSocket и
// регистрирует подписчика событий канала.
// URL-пример: /api/channels/{channelId}/schedules/ws
func ScheduleWebSocketHandler(c *gin.Context) {
	channelID := c.Param("channelId")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		http.Error(c.Writer, "Ошибка обновления до WebSocket", http.StatusInternalServerError)
		return
	}
	client := &Client{
		Hub:       HubInstance,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		ChannelID: channelID,
	}
	HubInstance.register <- client

	go client.writePump()
	client.readPump()
}
