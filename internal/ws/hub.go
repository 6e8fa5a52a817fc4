package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/goroutine"
)

// Hub раздаёт события по открытым WebSocket подключениям. Через него
// сервисы доставляют уведомления о сделках, спорах и кошельке во все
// вкладки пользователя. Хаб ничего не сохраняет: персистентность
// уведомлений лежит на сервисе уведомлений.
type Hub struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID]map[*Client]struct{}
	broadcast chan message
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[uuid.UUID]map[*Client]struct{}),
		broadcast: make(chan message, 32),
	}
}

// Run разбирает очередь исходящих событий. Запускается одной горутиной
// из main и живёт до конца процесса.
func (h *Hub) Run() {
	for msg := range h.broadcast {
		h.send(msg.userID, msg.payload)
	}
}

// Register добавляет подключение пользователя. У одного пользователя
// подключений может быть несколько.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

// Unregister снимает подключение с учёта.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

// BroadcastToUser отправляет событие во все подключения пользователя.
// Поле "type" содержит имя события, "data" — полезную нагрузку.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	h.broadcast <- message{userID: userID, payload: raw}
	return nil
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент: закрываем асинхронно, чтобы не держать хаб
			goroutine.SafeGo(client.Close)
		}
	}
}
