package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/config"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/router"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/metrics"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is deployment policy; the reverse proxy owns it.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler authenticates handshakes and runs the per-connection read pump.
// Identity arrives as verified query parameters; a handshake without a
// user ID or username is refused before the upgrade, so unauthenticated
// sockets never exist.
type Handler struct {
	router *router.Router
	cfg    *config.WebSocketConfig
}

// NewHandler creates a WebSocket handler dispatching into the router.
func NewHandler(r *router.Router, cfg *config.WebSocketConfig) *Handler {
	return &Handler{router: r, cfg: cfg}
}

// HandleWebSocket validates the handshake, upgrades, and serves the
// connection until it closes. Validation happens before the upgrade so
// rejected clients get proper HTTP status codes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	username := r.URL.Query().Get("username")
	role := r.URL.Query().Get("role")

	if userID == "" || username == "" {
		http.Error(w, "Authentication error: user_id and username are required", http.StatusUnauthorized)
		return
	}
	if !types.IsValidUserID(userID) {
		http.Error(w, "Invalid user_id format", http.StatusBadRequest)
		return
	}
	if !types.IsValidRole(role) {
		http.Error(w, "Invalid role: must be 'student' or 'instructor'", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := NewConnection(conn, userID, username, role, h.cfg.BufferSize, h.cfg.WriteTimeout)
	log.Printf("Connected: user=%s role=%s conn=%s", userID, role, c.ID())
	metrics.OpenConnections.Inc()

	go h.serve(c)
}

// serve owns the connection lifecycle: heartbeat, read pump, and the
// exactly-once teardown that forces the registry leave and departure
// broadcast.
func (h *Handler) serve(c *Connection) {
	defer func() {
		h.router.HandleDisconnect(c)
		_ = c.Close()
		metrics.OpenConnections.Dec()
		log.Printf("Disconnected: user=%s conn=%s", c.UserID(), c.ID())
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", c.UserID(), err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.router.Dispatch(context.Background(), c, data)
		}
	}
}
