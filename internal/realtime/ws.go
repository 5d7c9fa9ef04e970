package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tripplanner/internal/domain"
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// SessionLookup verifies chat session ownership.
type SessionLookup interface {
	GetSession(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error)
}

// Handler upgrades requests to WebSocket subscriptions.
//
// Query parameters: table=trips for the caller's trip changes, or
// table=chat_messages&session_id=<id> for a session's new messages.
type Handler struct {
	hub      *Hub
	sessions SessionLookup
	identify func(*http.Request) string
	logger   observability.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. identify returns the authenticated user id
// of a request, or "" when there is none. allowOrigin decides cross-origin
// upgrades; nil allows same-origin only.
func NewHandler(hub *Hub, sessions SessionLookup, identify func(*http.Request) string, allowOrigin func(*http.Request) bool, logger observability.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Handler{
		hub:      hub,
		sessions: sessions,
		identify: identify,
		logger:   logger.WithComponent("realtime"),
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := h.identify(r)
	if ownerID == "" {
		httpError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	q := r.URL.Query()
	f := Filter{Table: q.Get("table"), OwnerID: ownerID, SessionID: q.Get("session_id")}
	switch f.Table {
	case TableTrips:
		f.SessionID = ""
	case TableChatMessages:
		if f.SessionID == "" {
			httpError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		if _, err := h.sessions.GetSession(r.Context(), ownerID, f.SessionID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "session not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "lookup session")
			return
		}
	default:
		httpError(w, http.StatusBadRequest, "table must be trips or chat_messages")
		return
	}

	// Subscribe first so nothing published after the handshake is missed.
	sub := h.hub.Subscribe(f)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		// Upgrade has already written the response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	h.metrics.AddLiveSubscribers(1)
	defer h.metrics.AddLiveSubscribers(-1)
	h.logger.InfoContext(r.Context(), "subscriber connected", "table", f.Table, "session_id", f.SessionID)

	done := make(chan struct{})
	go h.readLoop(conn, sub, done)
	h.writeLoop(conn, sub, done)
}

// readLoop discards client frames and keeps the read deadline fresh. It
// closes the subscription when the client goes away.
func (h *Handler) readLoop(conn *websocket.Conn, sub *Subscription, done chan<- struct{}) {
	defer close(done)
	defer sub.Close()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
	}()
	for {
		select {
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
