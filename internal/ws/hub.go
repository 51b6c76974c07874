package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignatzorin/hive-backend/internal/goroutine"
	"github.com/ignatzorin/hive-backend/internal/models"
)

// Hub управляет всеми WebSocket клиентами. Клиенты группируются по участнику ("human:<id>", "bee:<id>").
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	ctx        context.Context
}

type message struct {
	key     string
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		ctx:        ctx,
	}
}

// Run запускает главный цикл хаба до отмены контекста.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.key, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Connected число подключений участника.
func (h *Hub) Connected(actor models.Actor) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[actor.String()])
}

// BroadcastTo отправляет событие всем подключениям участника.
func (h *Hub) BroadcastTo(ctx context.Context, actor models.Actor, event string, data any) error {
	// Сообщение для клиента строго следует контракту WebSocket API:
	// поле "type" содержит имя события, "data" полезную нагрузку.
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{key: actor.String(), payload: raw}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.key]; !ok {
		h.clients[client.key] = make(map[*Client]struct{})
	}
	h.clients[client.key][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.key]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.key)
		}
	}
}

func (h *Hub) send(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[key] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент: закрываем асинхронно, Close сам вызовет Unregister.
			c := client
			goroutine.SafeGo("ws-client-close", c.Close)
		}
	}
}
