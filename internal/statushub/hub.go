// Package statushub relays pipeline status messages to connected WebSocket
// clients. The gateway broadcasts a short status string whenever a session
// advances; clients render it as progress. Delivery is best effort: a slow
// or dead client is dropped, never waited on.
package statushub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// StatusMessage is the wire shape pushed to clients.
type StatusMessage struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks active WebSocket connections and fans status messages out to
// all of them.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	logger   *slog.Logger
	upgrader websocket.Upgrader
	closed   bool
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			// The gateway fronts a first-party UI; origin policy is
			// enforced upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and holds the connection open until the
// client disconnects or the hub shuts down. Inbound frames are read and
// discarded; the relay is one-way.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client connected", "active", count)
	defer h.drop(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast pushes a status message to every connected client. Failed writes
// drop the client.
func (h *Hub) Broadcast(sessionID, message string) {
	payload, err := json.Marshal(StatusMessage{
		Type:      "status",
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to marshal status message", "error", err)
		return
	}

	// gorilla permits at most one concurrent writer per connection, so the
	// lock stays held across the write loop to serialize broadcasts.
	h.mu.Lock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("dropping websocket client", "error", err)
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range failed {
		conn.Close()
	}
}

// ClientCount reports the number of active connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every connection and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if present {
		conn.Close()
	}
}
