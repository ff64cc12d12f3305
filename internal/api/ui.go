package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hexentour/pkg/event"
	"hexentour/pkg/metrics"
	"hexentour/pkg/tour"
)

// pageMessage is sent by the visitor page over /ws/ui.
type pageMessage struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

const pageRoute = "ROUTE"

// UIBroadcaster fans tour pushes out to every connected visitor page.
type UIBroadcaster struct {
	tour     *tour.Tour
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	unsub   event.Unsubscribe
}

// NewUIBroadcaster creates a broadcaster subscribed to t's pushes.
func NewUIBroadcaster(t *tour.Tour, m *metrics.Metrics) *UIBroadcaster {
	b := &UIBroadcaster{
		tour:    t,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
		clients: make(map[*wsClient]struct{}),
	}
	b.unsub = t.OnPush(b.Broadcast)
	return b
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Broadcast sends p to every client.
func (b *UIBroadcaster) Broadcast(p tour.Push) {
	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("UI: Failed to marshal push", "type", p.Type, "error", err)
		return
	}

	b.mu.RLock()
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if err := c.Post(data); err != nil {
			slog.Warn("UI: Failed to send push", "id", c.id, "type", p.Type, "error", err)
		}
	}
}

// ClientCount returns the number of connected pages.
func (b *UIBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close stops receiving pushes and disconnects every page.
func (b *UIBroadcaster) Close() {
	b.unsub()
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[*wsClient]struct{})
	b.mu.Unlock()
	for c := range clients {
		_ = c.Close()
	}
}

// ServeHTTP handles GET /ws/ui
func (b *UIBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("UI: Upgrade failed", "error", err)
		return
	}
	client := newWSClient(conn)

	// The full status goes out before any push.
	data, err := json.Marshal(tour.Push{Type: tour.PushStatus, Payload: b.tour.Status()})
	if err == nil {
		err = client.Post(data)
	}
	if err != nil {
		slog.Warn("UI: Failed to send status", "id", client.id, "error", err)
		_ = client.Close()
		return
	}

	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	b.metrics.ClientConnected("ui", 1)
	slog.Debug("UI: Connected", "id", client.id)

	defer func() {
		b.mu.Lock()
		delete(b.clients, client)
		b.mu.Unlock()
		b.metrics.ClientConnected("ui", -1)
		_ = client.Close()
		slog.Debug("UI: Disconnected", "id", client.id)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				slog.Warn("UI: Read failed", "id", client.id, "error", err)
			}
			return
		}
		var msg pageMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Debug("UI: Ignoring malformed message", "id", client.id)
			continue
		}
		if msg.Type == pageRoute {
			if err := b.tour.Visit(msg.Path); err != nil {
				slog.Debug("UI: Route rejected", "path", msg.Path, "error", err)
			}
		}
	}
}
