package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/wu-shaobing/quant-platform-sub002/internal/auth"
	"github.com/wu-shaobing/quant-platform-sub002/internal/connection"
	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
	"github.com/wu-shaobing/quant-platform-sub002/internal/router"
	"github.com/wu-shaobing/quant-platform-sub002/internal/subscription"
)

// Unsubscribe removes one previously registered callback.
type Unsubscribe = subscription.UnsubscribeFunc

// Client is the streaming data client: one multiplexed gateway
// connection fanned out to many independent consumers.
type Client struct {
	logger   *slog.Logger
	manager  connection.Manager
	registry *subscription.Registry
	router   router.Router
}

// Stats aggregates component statistics for the health endpoint.
type Stats struct {
	Connection connection.ManagerStats
	Registry   subscription.RegistryStats
	Router     router.Stats
}

// New wires the connection manager, subscription registry and message
// router into a client.
func New(cfg connection.ManagerConfig, tokens auth.TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	m := connection.NewManager(cfg, tokens, logger.With("component", "connection"))
	reg := subscription.NewRegistry(m, logger.With("component", "subscription"))
	m.SetReplayer(reg)
	rt := router.NewRouter(m.Messages(), m, reg, logger.With("component", "router"))

	return &Client{
		logger:   logger,
		manager:  m,
		registry: reg,
		router:   rt,
	}
}

// Connect starts the router and opens the gateway connection. Subscribe
// calls made before Connect are pending and flushed once ready fires.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.router.Start(ctx); err != nil {
		return err
	}
	return c.manager.Connect(ctx)
}

// Disconnect tears the client down. Terminal: a new Client is needed to
// reconnect afterwards.
func (c *Client) Disconnect() error {
	err := c.manager.Disconnect()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.router.Stop(stopCtx)

	return err
}

// ConnectionState returns the current lifecycle state.
func (c *Client) ConnectionState() connection.State {
	return c.manager.State()
}

// Events returns lifecycle notifications (state changes, ready,
// auth warnings, give-up).
func (c *Client) Events() <-chan connection.Event {
	return c.manager.Events()
}

// Stats returns aggregated component statistics.
func (c *Client) Stats() Stats {
	return Stats{
		Connection: c.manager.Stats(),
		Registry:   c.registry.Stats(),
		Router:     c.router.Stats(),
	}
}

// Subscribe registers a raw callback for a channel. Most callers want
// one of the typed helpers below instead.
func (c *Client) Subscribe(channel string, params model.SubscribeParams, cb subscription.Callback) Unsubscribe {
	return c.registry.Subscribe(channel, params, cb)
}

// SubscribeTicks delivers price ticks for the given symbols.
func (c *Client) SubscribeTicks(symbols []string, fn func(model.Tick)) Unsubscribe {
	return c.Subscribe(model.ChannelTick, model.SubscribeParams{Symbols: symbols}, func(data json.RawMessage) {
		var tick model.Tick
		if err := json.Unmarshal(data, &tick); err != nil {
			c.logger.Warn("undecodable tick payload", "error", err)
			return
		}
		fn(tick)
	})
}

// SubscribeDepth delivers order book updates for one symbol.
func (c *Client) SubscribeDepth(symbol string, fn func(model.DepthUpdate)) Unsubscribe {
	return c.Subscribe(model.ChannelDepth, model.SubscribeParams{Symbols: []string{symbol}}, func(data json.RawMessage) {
		var depth model.DepthUpdate
		if err := json.Unmarshal(data, &depth); err != nil {
			c.logger.Warn("undecodable depth payload", "error", err)
			return
		}
		fn(depth)
	})
}

// SubscribeKlines delivers candles for one symbol and interval.
func (c *Client) SubscribeKlines(symbol, interval string, fn func(model.Kline)) Unsubscribe {
	params := model.SubscribeParams{
		Symbols: []string{symbol},
		Extra:   map[string]string{"interval": interval},
	}
	return c.Subscribe(model.ChannelKline, params, func(data json.RawMessage) {
		var k model.Kline
		if err := json.Unmarshal(data, &k); err != nil {
			c.logger.Warn("undecodable kline payload", "error", err)
			return
		}
		if k.Interval != "" && k.Interval != interval {
			return
		}
		fn(k)
	})
}

// SubscribeOrders delivers order status updates for the account.
func (c *Client) SubscribeOrders(fn func(model.OrderUpdate)) Unsubscribe {
	return c.Subscribe(model.ChannelOrders, model.SubscribeParams{}, func(data json.RawMessage) {
		var o model.OrderUpdate
		if err := json.Unmarshal(data, &o); err != nil {
			c.logger.Warn("undecodable order payload", "error", err)
			return
		}
		fn(o)
	})
}

// SubscribeTrades delivers trade fills for the account.
func (c *Client) SubscribeTrades(fn func(model.TradeFill)) Unsubscribe {
	return c.Subscribe(model.ChannelTrades, model.SubscribeParams{}, func(data json.RawMessage) {
		var t model.TradeFill
		if err := json.Unmarshal(data, &t); err != nil {
			c.logger.Warn("undecodable trade payload", "error", err)
			return
		}
		fn(t)
	})
}

// SubscribePositions delivers position updates for the account.
func (c *Client) SubscribePositions(fn func(model.PositionUpdate)) Unsubscribe {
	return c.Subscribe(model.ChannelPosition, model.SubscribeParams{}, func(data json.RawMessage) {
		var p model.PositionUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			c.logger.Warn("undecodable position payload", "error", err)
			return
		}
		fn(p)
	})
}

// SubscribeStrategyStatus delivers status updates for one strategy, or
// for all strategies when id is empty.
func (c *Client) SubscribeStrategyStatus(id string, fn func(model.StrategyStatus)) Unsubscribe {
	params := model.SubscribeParams{}
	if id != "" {
		params.Extra = map[string]string{"strategy_id": id}
	}
	return c.Subscribe(model.ChannelStrategy, params, func(data json.RawMessage) {
		var s model.StrategyStatus
		if err := json.Unmarshal(data, &s); err != nil {
			c.logger.Warn("undecodable strategy payload", "error", err)
			return
		}
		if id != "" && s.StrategyID != id {
			return
		}
		fn(s)
	})
}
