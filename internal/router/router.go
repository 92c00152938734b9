package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/wu-shaobing/quant-platform-sub002/internal/connection"
	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
)

// ControlSink receives protocol control frames. Implemented by the
// connection manager.
type ControlSink interface {
	HandlePong(timestamp string)
	HandleAuthResult(ok bool, reason string)
}

// Dispatcher fans data frames out to subscribers. Implemented by the
// subscription registry.
type Dispatcher interface {
	Dispatch(channel string, data json.RawMessage) int
}

// Router parses raw frames and routes them to control and data sinks.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() Stats
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ControlFrames    int64
	ParseErrors      int64
	UnknownMessages  int64
	Unrouted         int64 // data frames with no matching subscriber
}

// router is the internal implementation.
type router struct {
	logger *slog.Logger

	input      <-chan connection.RawMessage
	control    ControlSink
	dispatcher Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// NewRouter creates a new message router.
func NewRouter(input <-chan connection.RawMessage, control ControlSink, dispatcher Dispatcher, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		logger:     logger,
		input:      input,
		control:    control,
		dispatcher: dispatcher,
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started")
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	return nil
}

// Stats returns current statistics.
func (r *router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// routeLoop is the single routing goroutine. One consumer preserves
// transport delivery order, and callbacks run synchronously here.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route parses and dispatches a single frame.
func (r *router) route(raw connection.RawMessage) {
	r.bump(func(s *Stats) { s.MessagesReceived++ })

	var frame model.Frame
	if err := json.Unmarshal(raw.Data, &frame); err != nil {
		r.logger.Warn("failed to parse frame", "error", err)
		r.bump(func(s *Stats) { s.ParseErrors++ })
		return
	}

	switch frame.Type {
	case model.TypePong:
		r.control.HandlePong(frame.Timestamp)
		r.bump(func(s *Stats) { s.ControlFrames++ })

	case model.TypeAuthResponse:
		var result model.AuthResult
		if err := json.Unmarshal(frame.Data, &result); err != nil {
			r.logger.Warn("failed to parse auth_response", "error", err)
			r.bump(func(s *Stats) { s.ParseErrors++ })
			return
		}
		r.control.HandleAuthResult(result.OK(), result.Reason)
		r.bump(func(s *Stats) { s.ControlFrames++ })

	case model.TypeMarketData, model.TypeOrderUpdate, model.TypeTradeUpdate,
		model.TypePositionUpdate, model.TypeStrategyStatus:
		if frame.Channel == "" {
			r.logger.Debug("data frame without channel", "type", frame.Type)
			r.bump(func(s *Stats) { s.Unrouted++ })
			return
		}
		n := r.dispatcher.Dispatch(frame.Channel, frame.Data)
		if n == 0 {
			r.bump(func(s *Stats) { s.Unrouted++ })
			return
		}
		r.bump(func(s *Stats) { s.MessagesRouted++ })

	default:
		// Forward compatible: server-added types are ignored.
		r.logger.Debug("skipping unknown message type", "type", frame.Type)
		r.bump(func(s *Stats) { s.UnknownMessages++ })
	}
}

func (r *router) bump(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}
