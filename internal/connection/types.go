package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrAlreadyStarted   = errors.New("connect already in progress")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout (no pong)")
	ErrAuthRejected     = errors.New("authentication rejected")
	ErrAuthTimeout      = errors.New("authentication timed out")
)

// State is the connection lifecycle state. Transitions are the only way
// state changes; exactly one state is active at a time.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw transport bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// RawMessage is a message from the connection manager to the message
// router. Epoch increments on every successful (re)connect, so consumers
// can detect a reconnect boundary and re-request snapshots rather than
// assume stream continuity.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
	Epoch      int64
}

// EventType classifies manager events.
type EventType int

const (
	// EventStateChanged fires on every state transition.
	EventStateChanged EventType = iota
	// EventReady fires after authentication succeeds and the subscription
	// replay has run.
	EventReady
	// EventAuthWarning fires when the gateway rejects the credential.
	// Retrying continues, since the credential may be refreshed externally.
	EventAuthWarning
	// EventGiveUp fires when retry attempts are exhausted. No further
	// reconnects are scheduled until an explicit Connect call.
	EventGiveUp
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state_changed"
	case EventReady:
		return "ready"
	case EventAuthWarning:
		return "auth_warning"
	case EventGiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification surfaced to collaborators. Errors are
// never thrown into caller code; they arrive here instead.
type Event struct {
	Type  EventType
	State State
	Epoch int64
	Err   error
	At    time.Time
}

// ClientConfig configures a single WebSocket transport.
type ClientConfig struct {
	URL              string        // Gateway WebSocket URL
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	URL                  string        // Gateway WebSocket URL
	HandshakeTimeout     time.Duration // Transport dial deadline
	WriteTimeout         time.Duration // Transport write deadline
	AuthTimeout          time.Duration // Max wait for auth_response
	HeartbeatInterval    time.Duration // Ping cadence while connected
	HeartbeatTimeout     time.Duration // Max wait for a pong after a ping
	ReconnectBaseDelay   time.Duration // First backoff delay
	ReconnectMaxDelay    time.Duration // Backoff cap
	ReconnectMaxAttempts int           // Give up after this many consecutive failures (0 = never)
	MessageBufferSize    int           // Outbound channel to the router
	EventBufferSize      int           // Event channel buffer
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		AuthTimeout:          10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatTimeout:     30 * time.Second, // one interval
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		ReconnectMaxAttempts: 10,
		MessageBufferSize:    10000,
		EventBufferSize:      64,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State             State
	Epoch             int64
	ReconnectAttempts int
	MessagesReceived  int64
	MessagesDropped   int64
}
