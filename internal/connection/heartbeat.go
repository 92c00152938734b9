package connection

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeatMonitor probes liveness with application-level ping frames.
// Each ping arms a timeout; a pong disarms it and schedules the next
// ping. A missed pong declares the connection dead via onDead, which
// takes the same path as a transport error.
//
// A monitor belongs to exactly one connected session: the manager creates
// a fresh one on every successful connect and stops it whenever the state
// leaves Connected, so no timer can fire against a stale connection.
type heartbeatMonitor struct {
	interval time.Duration
	timeout  time.Duration
	sendPing func() error
	onDead   func(error)
	logger   *slog.Logger

	mu           sync.Mutex
	running      bool
	pingTimer    *time.Timer
	timeoutTimer *time.Timer
}

func newHeartbeatMonitor(interval, timeout time.Duration, sendPing func() error, onDead func(error), logger *slog.Logger) *heartbeatMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeatMonitor{
		interval: interval,
		timeout:  timeout,
		sendPing: sendPing,
		onDead:   onDead,
		logger:   logger,
	}
}

// start schedules the first ping.
func (h *heartbeatMonitor) start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}
	h.running = true
	h.pingTimer = time.AfterFunc(h.interval, h.fire)
}

// stop cancels all pending timers. Safe to call more than once.
func (h *heartbeatMonitor) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.running = false
	if h.pingTimer != nil {
		h.pingTimer.Stop()
		h.pingTimer = nil
	}
	if h.timeoutTimer != nil {
		h.timeoutTimer.Stop()
		h.timeoutTimer = nil
	}
}

// pongReceived disarms the pending timeout and schedules the next ping.
// A pong with no timeout armed is a duplicate or unsolicited one; the
// next ping is already scheduled, so re-arming here would leak a second
// ping timer.
func (h *heartbeatMonitor) pongReceived() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	if h.timeoutTimer == nil {
		return
	}
	h.timeoutTimer.Stop()
	h.timeoutTimer = nil
	if h.pingTimer != nil {
		h.pingTimer.Stop()
	}
	h.pingTimer = time.AfterFunc(h.interval, h.fire)
}

// pendingTimers returns the number of armed timers, for teardown checks.
func (h *heartbeatMonitor) pendingTimers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	if h.pingTimer != nil {
		n++
	}
	if h.timeoutTimer != nil {
		n++
	}
	return n
}

// fire sends a ping and arms the pong timeout.
func (h *heartbeatMonitor) fire() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.pingTimer = nil
	h.mu.Unlock()

	if err := h.sendPing(); err != nil {
		// State already left Connected; the manager stops us shortly.
		h.logger.Debug("heartbeat ping not sent", "error", err)
	}

	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	if h.timeoutTimer != nil {
		h.timeoutTimer.Stop()
	}
	h.timeoutTimer = time.AfterFunc(h.timeout, h.expire)
	h.mu.Unlock()
}

// expire declares the connection dead after a missed pong.
func (h *heartbeatMonitor) expire() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.timeoutTimer = nil
	h.mu.Unlock()

	h.logger.Warn("no pong received, connection stale", "timeout", h.timeout)
	h.onDead(ErrHeartbeatTimeout)
}
