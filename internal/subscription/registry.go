package subscription

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
)

// Callback receives the data payload of every matching inbound frame.
// Callbacks run synchronously on the router goroutine, in transport
// delivery order.
type Callback func(data json.RawMessage)

// UnsubscribeFunc removes exactly one callback from its entry. Calling it
// more than once is a no-op.
type UnsubscribeFunc func()

// Sender writes frames upstream. Implemented by the connection manager;
// returns connection.ErrNotConnected when the frame cannot be sent, in
// which case the subscription stays pending until the next replay.
type Sender interface {
	Send(f model.Frame) error
}

// entry is one deduplicated upstream subscription and its local fan-out
// set. Owned exclusively by the registry; consumers only ever hold
// unsubscribe handles.
type entry struct {
	key            string
	channel        string
	params         model.SubscribeParams
	callbacks      map[uuid.UUID]Callback
	upstreamActive bool
}

// Registry tracks desired subscriptions and routes data to callbacks.
type Registry struct {
	sender Sender
	logger *slog.Logger

	mu        sync.Mutex
	entries   map[string]*entry   // key -> entry
	byChannel map[string][]*entry // channel -> entries, dispatch index
}

// RegistryStats provides statistics about the registry.
type RegistryStats struct {
	Entries        int
	Callbacks      int
	UpstreamActive int
}

// NewRegistry creates a new subscription registry.
func NewRegistry(sender Sender, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sender:    sender,
		logger:    logger,
		entries:   make(map[string]*entry),
		byChannel: make(map[string][]*entry),
	}
}

// Subscribe registers a callback for a (channel, params) pair and returns
// its unsubscribe handle. The first subscriber for a key triggers an
// upstream subscribe frame when connected; otherwise the entry stays
// pending and is flushed by the replay on the next ready.
func (r *Registry) Subscribe(channel string, params model.SubscribeParams, cb Callback) UnsubscribeFunc {
	key := params.Key(channel)
	id := uuid.New()

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{
			key:       key,
			channel:   channel,
			params:    params,
			callbacks: make(map[uuid.UUID]Callback),
		}
		r.entries[key] = e
		r.byChannel[channel] = append(r.byChannel[channel], e)
	}
	e.callbacks[id] = cb

	needsUpstream := !e.upstreamActive
	if needsUpstream {
		if err := r.sender.Send(model.NewSubscribeFrame(channel, params)); err == nil {
			e.upstreamActive = true
		} else {
			r.logger.Debug("subscribe pending until connected", "channel", channel, "key", key)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("subscribed", "channel", channel, "key", key, "callbacks", r.callbackCount(key))

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(key, id) })
	}
}

// remove drops one callback; the last one deletes the entry and sends a
// best-effort unsubscribe frame.
func (r *Registry) remove(key string, id uuid.UUID) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(e.callbacks, id)

	if len(e.callbacks) > 0 {
		r.mu.Unlock()
		return
	}

	delete(r.entries, key)
	r.removeFromChannelLocked(e)
	wasActive := e.upstreamActive
	channel := e.channel
	symbols := e.params.Symbols
	r.mu.Unlock()

	if wasActive {
		// Fire and forget: upstream resources are reclaimed server-side on
		// socket close regardless.
		if err := r.sender.Send(model.NewUnsubscribeFrame(channel, symbols)); err != nil {
			r.logger.Debug("unsubscribe frame not delivered", "channel", channel, "error", err)
		}
	}

	r.logger.Debug("unsubscribed", "channel", channel, "key", key)
}

// removeFromChannelLocked drops an entry from the dispatch index.
func (r *Registry) removeFromChannelLocked(e *entry) {
	list := r.byChannel[e.channel]
	for i, it := range list {
		if it == e {
			r.byChannel[e.channel] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.byChannel[e.channel]) == 0 {
		delete(r.byChannel, e.channel)
	}
}

// Dispatch invokes every callback registered for the channel whose symbol
// filter matches the payload. Returns the number of callbacks invoked.
func (r *Registry) Dispatch(channel string, data json.RawMessage) int {
	symbol := extractSymbol(data)

	r.mu.Lock()
	var cbs []Callback
	for _, e := range r.byChannel[channel] {
		if e.params.Matches(symbol) {
			for _, cb := range e.callbacks {
				cbs = append(cbs, cb)
			}
		}
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(data)
	}
	return len(cbs)
}

// Invalidate marks every entry upstream-inactive. Called by the manager
// when the connection is lost, so the next replay re-subscribes all of
// them without tripping the duplicate-subscribe guard.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.upstreamActive = false
	}
}

// Replay re-sends a subscribe frame for every entry with live callbacks.
// Called by the manager after authentication succeeds; afterwards the set
// of upstream-active channels equals exactly the set of entries with a
// non-empty callback set.
func (r *Registry) Replay() {
	r.mu.Lock()
	defer r.mu.Unlock()

	replayed := 0
	for _, e := range r.entries {
		if len(e.callbacks) == 0 || e.upstreamActive {
			continue
		}
		if err := r.sender.Send(model.NewSubscribeFrame(e.channel, e.params)); err != nil {
			r.logger.Warn("replay subscribe failed", "channel", e.channel, "error", err)
			continue
		}
		e.upstreamActive = true
		replayed++
	}

	if replayed > 0 {
		r.logger.Info("subscriptions replayed", "count", replayed)
	}
}

// Stats returns current registry statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := RegistryStats{Entries: len(r.entries)}
	for _, e := range r.entries {
		s.Callbacks += len(e.callbacks)
		if e.upstreamActive {
			s.UpstreamActive++
		}
	}
	return s
}

// ActiveKeys returns the keys of upstream-active entries, for tests and
// the health endpoint.
func (r *Registry) ActiveKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.entries))
	for key, e := range r.entries {
		if e.upstreamActive {
			keys = append(keys, key)
		}
	}
	return keys
}

func (r *Registry) callbackCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return len(e.callbacks)
	}
	return 0
}

// symbolEnvelope is used for fast symbol extraction from payloads.
type symbolEnvelope struct {
	Symbol string `json:"symbol"`
}

func extractSymbol(data json.RawMessage) string {
	var env symbolEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Symbol
}
