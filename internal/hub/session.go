package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
	"github.com/wu-shaobing/quant-platform-sub002/internal/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4096
)

// command is what a dashboard session sends to the hub.
type command struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channel  string   `json:"channel"`
	Symbols  []string `json:"symbols,omitempty"`
	Interval string   `json:"interval,omitempty"`
	Strategy string   `json:"strategy_id,omitempty"`
}

// session is one connected dashboard browser.
type session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	subs   map[string]stream.Unsubscribe // subscription key -> handle
	closed bool
}

func newSession(h *Hub, conn *websocket.Conn) *session {
	return &session{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBufferSize),
		subs: make(map[string]stream.Unsubscribe),
	}
}

// readPump consumes commands until the session disconnects.
func (s *session) readPump() {
	defer func() {
		s.hub.drop(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMsgSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.hub.logger.Debug("bad session command", "error", err)
			continue
		}
		s.handle(cmd)
	}
}

// writePump pushes queued messages and keepalive pings to the browser.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle applies one subscribe/unsubscribe command.
func (s *session) handle(cmd command) {
	params := model.SubscribeParams{Symbols: cmd.Symbols}
	extra := make(map[string]string)
	if cmd.Interval != "" {
		extra["interval"] = cmd.Interval
	}
	if cmd.Strategy != "" {
		extra["strategy_id"] = cmd.Strategy
	}
	if len(extra) > 0 {
		params.Extra = extra
	}
	key := params.Key(cmd.Channel)

	switch cmd.Action {
	case "subscribe":
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if _, exists := s.subs[key]; exists {
			s.mu.Unlock()
			return
		}
		channel := cmd.Channel
		unsub := s.hub.streams.Subscribe(channel, params, func(data json.RawMessage) {
			s.forward(channel, data)
		})
		s.subs[key] = unsub
		s.mu.Unlock()

	case "unsubscribe":
		s.mu.Lock()
		unsub, exists := s.subs[key]
		if exists {
			delete(s.subs, key)
		}
		s.mu.Unlock()
		if exists {
			unsub()
		}

	default:
		s.hub.logger.Debug("unknown session action", "action", cmd.Action)
	}
}

// forward relays one payload to the browser.
func (s *session) forward(channel string, data json.RawMessage) {
	msg, err := json.Marshal(map[string]any{
		"type":    "data",
		"channel": channel,
		"data":    data,
	})
	if err != nil {
		return
	}
	s.enqueue(msg)
}

// enqueue queues a message; a session that cannot keep up is dropped.
// The send happens under s.mu so it cannot race with close.
func (s *session) enqueue(message []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.send <- message:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.hub.logger.Warn("session send buffer full, dropping session")
		s.close()
	}
}

// releaseSubscriptions returns all handles to the registry.
func (s *session) releaseSubscriptions() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]stream.Unsubscribe)
	s.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

// close tears the session down once. Closing the transport unblocks the
// read pump, whose deferred drop releases the subscriptions; doing the
// drop here instead could deadlock against a broadcast in flight.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()

	s.conn.Close()
}
