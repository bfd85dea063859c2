// Package ws implements the WebSocket adapter for real-time client communication.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/foodshare/internal/middleware"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	userID string
}

// Hub manages all active WebSocket connections and fans out messages.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*conn]struct{}
	origin string
}

// NewHub creates a new WebSocket hub. A non-empty origin restricts the
// accepted Origin header; empty accepts any origin.
func NewHub(origin string) *Hub {
	return &Hub{
		conns:  make(map[*conn]struct{}),
		origin: origin,
	}
}

// HandleWS upgrades the request to a WebSocket bound to the caller identity
// forwarded by the gateway. Anonymous upgrades are rejected with 401.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		http.Error(w, "missing X-User-ID", http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{InsecureSkipVerify: h.origin == ""}
	if h.origin != "" {
		opts.OriginPatterns = []string{h.origin}
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The request context ends when the handler returns.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel, userID: id.UserID}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr, "user_id", c.userID)

	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.send(ctx, msg, func(*conn) bool { return true })
}

// SendToUser sends a message to every connection opened by userID.
func (h *Hub) SendToUser(ctx context.Context, userID string, msg Message) {
	h.send(ctx, msg, func(c *conn) bool { return c.userID == userID })
}

func (h *Hub) send(ctx context.Context, msg Message, match func(*conn) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("websocket write failed", "user_id", c.userID, "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "user_id", c.userID)
	}
}
