package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wu-shaobing/quant-platform-sub002/internal/connection"
	"github.com/wu-shaobing/quant-platform-sub002/internal/stream"
)

// Config configures the dashboard hub.
type Config struct {
	// AllowedOrigins lists Origin headers accepted on upgrade. Empty
	// allows same-host requests only.
	AllowedOrigins []string

	// SendBufferSize is the per-session outbound queue; a session that
	// cannot drain it is dropped.
	SendBufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{SendBufferSize: 256}
}

// Hub fans streaming data out to dashboard browser sessions.
type Hub struct {
	cfg     Config
	streams *stream.Client
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// New creates a hub backed by the given streaming client.
func New(cfg Config, streams *stream.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}

	h := &Hub{
		cfg:      cfg,
		streams:  streams,
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeWS upgrades an HTTP request to a dashboard session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := newSession(h, conn)
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("dashboard session opened", "remote", r.RemoteAddr)

	go s.writePump()
	go s.readPump()
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends a message to every session.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		s.enqueue(message)
	}
}

// WatchConnection forwards streaming-client lifecycle events to all
// sessions until ctx is done. The dashboard uses these to show the
// "reconnecting" and "connection lost" indicators.
func (h *Hub) WatchConnection(ctx context.Context, events <-chan connection.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg, err := json.Marshal(map[string]any{
				"type":  "connection",
				"event": ev.Type.String(),
				"state": ev.State.String(),
				"at":    ev.At.UTC().Format(time.RFC3339),
			})
			if err != nil {
				continue
			}
			h.Broadcast(msg)
		}
	}
}

// Close disconnects all sessions.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// drop removes a session and releases its subscriptions.
func (h *Hub) drop(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()

	if ok {
		s.releaseSubscriptions()
		h.logger.Debug("dashboard session closed")
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	if len(h.cfg.AllowedOrigins) == 0 {
		// Same-host requests only, matching gorilla's default policy.
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return false
}
