package subscription

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/wu-shaobing/quant-platform-sub002/internal/connection"
	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
)

// fakeSender records frames and can simulate a down connection.
type fakeSender struct {
	mu     sync.Mutex
	frames []model.Frame
	down   bool
}

func (s *fakeSender) Send(f model.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return connection.ErrNotConnected
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSender) sent(typ string) []model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Frame
	for _, f := range s.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeSender) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func tickParams(symbols ...string) model.SubscribeParams {
	return model.SubscribeParams{Symbols: symbols}
}

func TestRegistry_DeduplicatesUpstream(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})
	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})

	if subs := sender.sent(model.TypeSubscribe); len(subs) != 1 {
		t.Errorf("expected 1 upstream subscribe for identical params, got %d", len(subs))
	}

	stats := r.Stats()
	if stats.Entries != 1 || stats.Callbacks != 2 {
		t.Errorf("expected 1 entry with 2 callbacks, got %+v", stats)
	}
}

func TestRegistry_KeyNormalization(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	// Same symbols in different order collapse to one entry.
	r.Subscribe(model.ChannelTick, tickParams("AAPL", "TSLA"), func(json.RawMessage) {})
	r.Subscribe(model.ChannelTick, tickParams("TSLA", "AAPL"), func(json.RawMessage) {})

	if stats := r.Stats(); stats.Entries != 1 {
		t.Errorf("symbol order created a second entry: %+v", stats)
	}

	// Different symbols are a distinct subscription.
	r.Subscribe(model.ChannelTick, tickParams("MSFT"), func(json.RawMessage) {})
	if stats := r.Stats(); stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %+v", stats)
	}
}

func TestRegistry_LastUnsubscribeReleasesUpstream(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	un1 := r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})
	un2 := r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})

	un1()
	if unsubs := sender.sent(model.TypeUnsubscribe); len(unsubs) != 0 {
		t.Errorf("unsubscribe sent while a callback remains: %d", len(unsubs))
	}

	un2()
	if unsubs := sender.sent(model.TypeUnsubscribe); len(unsubs) != 1 {
		t.Errorf("expected 1 unsubscribe after last callback left, got %d", len(unsubs))
	}

	if stats := r.Stats(); stats.Entries != 0 {
		t.Errorf("entry not removed: %+v", stats)
	}
}

func TestRegistry_UnsubscribeIdempotent(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	un := r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})
	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})

	un()
	un()
	un()

	// The double-call must not have removed the other subscriber's entry.
	if stats := r.Stats(); stats.Entries != 1 || stats.Callbacks != 1 {
		t.Errorf("idempotent unsubscribe violated: %+v", stats)
	}
}

func TestRegistry_PendingFlushedByReplay(t *testing.T) {
	sender := &fakeSender{down: true}
	r := NewRegistry(sender, nil)

	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})
	r.Subscribe(model.ChannelDepth, tickParams("TSLA"), func(json.RawMessage) {})

	if subs := sender.sent(model.TypeSubscribe); len(subs) != 0 {
		t.Fatalf("frames sent while down: %d", len(subs))
	}
	if stats := r.Stats(); stats.UpstreamActive != 0 {
		t.Fatalf("entries marked active while down: %+v", stats)
	}

	sender.setDown(false)
	r.Replay()

	if subs := sender.sent(model.TypeSubscribe); len(subs) != 2 {
		t.Errorf("expected 2 subscribes on replay, got %d", len(subs))
	}
	if stats := r.Stats(); stats.UpstreamActive != 2 {
		t.Errorf("expected 2 active entries after replay, got %+v", stats)
	}
}

func TestRegistry_InvalidateThenReplayResubscribesAll(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})
	un := r.Subscribe(model.ChannelDepth, tickParams("TSLA"), func(json.RawMessage) {})

	// Connection lost; one subscriber also leaves while offline.
	sender.setDown(true)
	r.Invalidate()
	un()
	sender.setDown(false)

	r.Replay()

	subs := sender.sent(model.TypeSubscribe)
	// Initial 2 plus exactly 1 replayed: the abandoned depth entry is gone.
	if len(subs) != 3 {
		t.Fatalf("expected 3 total subscribes, got %d", len(subs))
	}
	if last := subs[len(subs)-1]; last.Channel != model.ChannelTick {
		t.Errorf("replayed wrong channel: %s", last.Channel)
	}
}

func TestRegistry_ReplayIsIdempotent(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})

	r.Replay()
	r.Replay()

	// Already upstream-active entries are not re-sent.
	if subs := sender.sent(model.TypeSubscribe); len(subs) != 1 {
		t.Errorf("replay re-sent active subscriptions: %d frames", len(subs))
	}
}

func TestRegistry_DispatchSymbolFilter(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	var mu sync.Mutex
	var aapl, all int

	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {
		mu.Lock()
		aapl++
		mu.Unlock()
	})
	r.Subscribe(model.ChannelTick, model.SubscribeParams{}, func(json.RawMessage) {
		mu.Lock()
		all++
		mu.Unlock()
	})

	n := r.Dispatch(model.ChannelTick, json.RawMessage(`{"symbol":"AAPL","price":1.0}`))
	if n != 2 {
		t.Errorf("expected 2 callbacks for AAPL, got %d", n)
	}

	n = r.Dispatch(model.ChannelTick, json.RawMessage(`{"symbol":"TSLA","price":2.0}`))
	if n != 1 {
		t.Errorf("expected 1 callback for TSLA (wildcard only), got %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if aapl != 1 || all != 2 {
		t.Errorf("filter miscounted: aapl=%d all=%d", aapl, all)
	}
}

func TestRegistry_DispatchAfterUnsubscribe(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	called := false
	un := r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {
		called = true
	})
	un()

	if n := r.Dispatch(model.ChannelTick, json.RawMessage(`{"symbol":"AAPL"}`)); n != 0 {
		t.Errorf("expected 0 callbacks after unsubscribe, got %d", n)
	}
	if called {
		t.Error("callback ran after unsubscribe")
	}
}

func TestRegistry_DispatchUnknownChannel(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	if n := r.Dispatch("nonexistent", json.RawMessage(`{}`)); n != 0 {
		t.Errorf("expected 0 callbacks, got %d", n)
	}
}

func TestRegistry_ResubscribeAfterFullTeardown(t *testing.T) {
	sender := &fakeSender{}
	r := NewRegistry(sender, nil)

	un := r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})
	un()

	r.Subscribe(model.ChannelTick, tickParams("AAPL"), func(json.RawMessage) {})

	// subscribe, then a fresh subscribe after the entry was torn down
	if subs := sender.sent(model.TypeSubscribe); len(subs) != 2 {
		t.Errorf("expected 2 subscribes, got %d", len(subs))
	}
}
