package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wu-shaobing/quant-platform-sub002/internal/auth"
	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
)

// Manager owns the single gateway connection and its lifecycle.
type Manager interface {
	// Connect starts the state machine: dial, authenticate, then replay
	// subscriptions. Only valid from Disconnected. A failed dial schedules
	// a reconnect attempt before returning the error.
	Connect(ctx context.Context) error

	// Disconnect is terminal: it cancels all pending timers, closes the
	// transport and moves to Closed. No reconnection is attempted.
	Disconnect() error

	// Send serializes and writes a frame if the state is Connected;
	// otherwise the frame is dropped with ErrNotConnected and the caller
	// re-issues once ready fires.
	Send(f model.Frame) error

	// State returns the current lifecycle state.
	State() State

	// Epoch returns the connect generation, incremented on every
	// successful (re)connect.
	Epoch() int64

	// Messages returns the channel of raw inbound frames for the router.
	Messages() <-chan RawMessage

	// Events returns lifecycle notifications for collaborators.
	Events() <-chan Event

	// SetReplayer wires the subscription registry for resubscription
	// replay. Must be called before Connect.
	SetReplayer(r Replayer)

	// HandlePong is called by the router when a pong frame arrives.
	HandlePong(timestamp string)

	// HandleAuthResult is called by the router when an auth_response
	// frame arrives.
	HandleAuthResult(ok bool, reason string)

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// Replayer restores subscription intent across reconnects. Implemented by
// the subscription registry.
type Replayer interface {
	// Invalidate marks every subscription upstream-inactive; called when
	// the connection is lost.
	Invalidate()

	// Replay re-sends a subscribe frame for every live subscription;
	// called after authentication succeeds.
	Replay()
}

// noopReplayer keeps the manager usable before wiring.
type noopReplayer struct{}

func (noopReplayer) Invalidate() {}
func (noopReplayer) Replay()     {}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	tokens auth.TokenProvider
	logger *slog.Logger

	messages chan RawMessage
	events   chan Event

	mu       sync.Mutex
	state    State
	closed   bool
	gen      int64 // session generation; stale timers and pumps no-op
	epoch    int64
	client   Client
	ctx      context.Context
	policy   *reconnectPolicy
	replayer Replayer
	hb       *heartbeatMonitor

	backoffTimer *time.Timer
	authTimer    *time.Timer

	received int64
	dropped  int64
}

// NewManager creates a new connection manager.
func NewManager(cfg ManagerConfig, tokens auth.TokenProvider, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:      cfg,
		tokens:   tokens,
		logger:   logger,
		messages: make(chan RawMessage, cfg.MessageBufferSize),
		events:   make(chan Event, cfg.EventBufferSize),
		state:    StateDisconnected,
		policy:   newReconnectPolicy(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay, cfg.ReconnectMaxAttempts),
		replayer: noopReplayer{},
	}
}

// SetReplayer wires the subscription registry.
func (m *manager) SetReplayer(r Replayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replayer = r
}

// Connect starts the state machine.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.ctx = ctx
	m.policy.reset()
	m.mu.Unlock()

	return m.dial()
}

// Disconnect is the terminal teardown.
func (m *manager) Disconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.gen++

	if m.backoffTimer != nil {
		m.backoffTimer.Stop()
		m.backoffTimer = nil
	}
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	if m.hb != nil {
		m.hb.stop()
		m.hb = nil
	}

	c := m.client
	m.client = nil
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}

	m.logger.Info("connection manager closed")
	return nil
}

// Send writes a frame when Connected.
func (m *manager) Send(f model.Frame) error {
	m.mu.Lock()
	if m.state != StateConnected || m.client == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	c := m.client
	m.mu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.Send(data)
}

// State returns the current lifecycle state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Epoch returns the connect generation.
func (m *manager) Epoch() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Messages returns the raw inbound frame channel.
func (m *manager) Messages() <-chan RawMessage {
	return m.messages
}

// Events returns the lifecycle event channel.
func (m *manager) Events() <-chan Event {
	return m.events
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:             m.state,
		Epoch:             m.epoch,
		ReconnectAttempts: m.policy.attempt,
		MessagesReceived:  m.received,
		MessagesDropped:   m.dropped,
	}
}

// HandlePong forwards a pong to the active heartbeat monitor.
func (m *manager) HandlePong(timestamp string) {
	m.mu.Lock()
	hb := m.hb
	m.mu.Unlock()

	if hb != nil {
		hb.pongReceived()
	}
}

// HandleAuthResult completes or fails the authentication handshake.
func (m *manager) HandleAuthResult(ok bool, reason string) {
	m.mu.Lock()
	if m.closed || m.state != StateAuthenticating {
		m.mu.Unlock()
		return
	}
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}

	if !ok {
		gen := m.gen
		m.mu.Unlock()

		m.logger.Warn("authentication rejected", "reason", reason)
		m.emit(Event{Type: EventAuthWarning, State: m.State(), Err: fmt.Errorf("%w: %s", ErrAuthRejected, reason), At: time.Now()})
		m.transportFailed(gen, ErrAuthRejected)
		return
	}

	m.policy.reset()
	m.epoch++
	epoch := m.epoch
	gen := m.gen
	m.setStateLocked(StateConnected)

	hb := newHeartbeatMonitor(
		m.cfg.HeartbeatInterval,
		m.cfg.HeartbeatTimeout,
		func() error { return m.Send(model.NewPingFrame(time.Now())) },
		func(err error) { m.transportFailed(gen, err) },
		m.logger,
	)
	m.hb = hb
	m.mu.Unlock()

	m.logger.Info("authenticated", "epoch", epoch)

	// Replay before the ready event is observable, so collaborators never
	// see Connected with missing upstream subscriptions.
	m.replayer.Replay()
	hb.start()

	m.emit(Event{Type: EventReady, State: StateConnected, Epoch: epoch, At: time.Now()})
}

// dial opens the transport and starts the auth handshake.
func (m *manager) dial() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.gen++
	gen := m.gen
	m.setStateLocked(StateConnecting)

	c := NewClient(ClientConfig{
		URL:              m.cfg.URL,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.MessageBufferSize,
	}, m.logger)
	m.client = c
	ctx := m.ctx
	m.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		m.logger.Warn("dial failed", "url", m.cfg.URL, "error", err)
		m.mu.Lock()
		if m.gen == gen && !m.closed {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		return err
	}

	token, err := m.tokens.Token(ctx)
	if err != nil {
		m.logger.Warn("credential unavailable", "error", err)
		m.emit(Event{Type: EventAuthWarning, State: StateConnecting, Err: err, At: time.Now()})
		m.transportFailed(gen, err)
		return err
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		c.Close()
		return ErrAlreadyClosed
	}
	m.setStateLocked(StateAuthenticating)
	m.authTimer = time.AfterFunc(m.cfg.AuthTimeout, func() {
		m.transportFailed(gen, ErrAuthTimeout)
	})
	m.mu.Unlock()

	go m.pump(c, gen)

	data, err := json.Marshal(model.NewAuthFrame(token))
	if err != nil {
		return fmt.Errorf("marshal auth frame: %w", err)
	}
	if err := c.Send(data); err != nil {
		m.transportFailed(gen, err)
		return err
	}

	return nil
}

// pump forwards transport messages and errors for one session.
func (m *manager) pump(c Client, gen int64) {
	for {
		select {
		case <-c.Done():
			return

		case err := <-c.Errors():
			m.logger.Warn("transport error", "error", err)
			m.transportFailed(gen, err)
			return

		case msg, ok := <-c.Messages():
			if !ok {
				return
			}

			m.mu.Lock()
			if m.gen != gen || m.closed {
				m.mu.Unlock()
				return
			}
			m.received++
			epoch := m.epoch
			m.mu.Unlock()

			select {
			case m.messages <- RawMessage{Data: msg.Data, ReceivedAt: msg.ReceivedAt, Epoch: epoch}:
			default:
				m.mu.Lock()
				m.dropped++
				m.mu.Unlock()
				m.logger.Warn("message buffer full, dropping")
			}
		}
	}
}

// transportFailed tears down the current session and schedules a
// reconnect, unless Disconnect already happened or the session is stale.
func (m *manager) transportFailed(gen int64, err error) {
	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++

	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	if m.hb != nil {
		m.hb.stop()
		m.hb = nil
	}
	c := m.client
	m.client = nil
	replayer := m.replayer
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}
	replayer.Invalidate()

	m.logger.Warn("connection lost", "error", err)

	m.mu.Lock()
	if !m.closed {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
}

// scheduleReconnectLocked arms the backoff timer for the next attempt, or
// gives up when the attempt budget is spent. Caller holds m.mu.
func (m *manager) scheduleReconnectLocked() {
	if m.policy.exhausted() {
		m.setStateLocked(StateDisconnected)
		m.logger.Error("reconnect attempts exhausted", "attempts", m.policy.attempt)
		m.emitLocked(Event{Type: EventGiveUp, State: StateDisconnected, Err: fmt.Errorf("gave up after %d attempts", m.policy.attempt), At: time.Now()})
		return
	}

	delay := m.policy.nextDelay()
	attempt := m.policy.attempt
	gen := m.gen
	m.setStateLocked(StateReconnecting)

	m.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)

	m.backoffTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.closed || m.gen != gen || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.backoffTimer = nil
		m.mu.Unlock()

		if err := m.dial(); err != nil {
			m.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)
		}
	})
}

// setStateLocked transitions the state machine. Caller holds m.mu.
func (m *manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	old := m.state
	m.state = s
	m.logger.Debug("state transition", "from", old, "to", s)
	m.emitLocked(Event{Type: EventStateChanged, State: s, Epoch: m.epoch, At: time.Now()})
}

// emit delivers an event without blocking.
func (m *manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Debug("event buffer full, dropping event", "type", ev.Type)
	}
}

// emitLocked is emit for call sites holding m.mu; the send is
// non-blocking so holding the lock is safe.
func (m *manager) emitLocked(ev Event) {
	m.emit(ev)
}
