package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"hexentour/pkg/bridge"
	"hexentour/pkg/metrics"
)

// FrameHandler is the websocket the embedded AR experience connects to.
// Commands go out through the registered bridge.Message transport, inbound
// messages are checked against the page origin by the bridge.
type FrameHandler struct {
	bridge    *bridge.Bridge
	transport *bridge.Message
	origin    string
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
}

// NewFrameHandler creates a FrameHandler. An empty origin derives the page
// origin from each request's host.
func NewFrameHandler(b *bridge.Bridge, tr *bridge.Message, origin string, m *metrics.Metrics) *FrameHandler {
	return &FrameHandler{
		bridge:    b,
		transport: tr,
		origin:    origin,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are filtered per message so foreign frames get logged.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *FrameHandler) pageOrigin(r *http.Request) string {
	if h.origin != "" {
		return h.origin
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// ServeHTTP handles GET /ws/frame
func (h *FrameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Frame: Upgrade failed", "error", err)
		return
	}
	client := newWSClient(conn)
	origin := r.Header.Get("Origin")
	page := h.pageOrigin(r)

	// A new frame has to announce readiness again.
	h.bridge.ResetState()
	h.transport.Register(client)
	h.metrics.ClientConnected("frame", 1)
	slog.Info("Frame: Connected", "id", client.id, "origin", origin)

	defer func() {
		h.transport.Unregister(client)
		h.metrics.ClientConnected("frame", -1)
		_ = client.Close()
		slog.Info("Frame: Disconnected", "id", client.id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				slog.Warn("Frame: Read failed", "id", client.id, "error", err)
			}
			return
		}
		if err := h.bridge.HandleMessage(origin, page, data); err != nil {
			slog.Debug("Frame: Message rejected", "id", client.id, "error", err)
		}
	}
}
