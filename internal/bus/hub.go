package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Hub is a Publisher backed by live WebSocket connections: Broadcast
// fans out to every accepted connection, and ServeHTTP is the upgrade
// handler operators point a reverse proxy at.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	conn    *websocket.Conn
	handler EventHandler // nil for a raw WebSocket client; set for in-process subscribers
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Subscribe registers an in-process handler (no network hop), used by
// components within the same binary that want bus events without standing
// up a loopback WebSocket connection.
func (h *Hub) Subscribe(id string, handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = &client{handler: handler}
}

// Unsubscribe removes a subscriber, closing its connection if it has one.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok && c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}
}

// Broadcast fans out event to every subscriber: in-process handlers are
// called synchronously, WebSocket clients are written to over a background
// goroutine each so one slow reader can't stall the others.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if c.handler != nil {
			c.handler(event)
			continue
		}
		go func(id string, c *client) {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			if err := wsjson(ctx, c.conn, event); err != nil {
				slog.Warn("bus: dropping client after write failure", "client_id", id, "error", err)
				h.Unsubscribe(id)
			}
		}(id, c)
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers it as a
// subscriber until the connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("bus: websocket upgrade failed", "error", err)
		return
	}

	id := r.RemoteAddr + ":" + r.URL.Path
	h.mu.Lock()
	h.clients[id] = &client{conn: conn}
	h.mu.Unlock()
	defer h.Unsubscribe(id)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func wsjson(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
