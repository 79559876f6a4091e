package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	liveWriteTimeout = 5 * time.Second
	liveBuffer       = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// LiveMessage is pushed to every /live subscriber when the ride or the
// navigation session changes.
type LiveMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans live messages out to websocket subscribers. Slow subscribers
// lose messages rather than block the publisher.
type Hub struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[*liveClient]struct{}
}

type liveClient struct {
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: map[*liveClient]struct{}{},
	}
}

func (h *Hub) register() *liveClient {
	c := &liveClient{send: make(chan []byte, liveBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish encodes msg and queues it for every subscriber.
func (h *Hub) Publish(msgType string, data any) {
	payload, err := json.Marshal(LiveMessage{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Error encoding live message", slog.String("type", msgType), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Error upgrading live connection", slog.Any("error", err))
		return
	}
	defer conn.Close()

	c := h.register()
	defer h.unregister(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	<-done
}
