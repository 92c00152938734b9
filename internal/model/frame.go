package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Frame types exchanged with the gateway.
const (
	TypeAuth         = "auth"
	TypeAuthResponse = "auth_response"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"

	TypeMarketData     = "market_data"
	TypeOrderUpdate    = "order_update"
	TypeTradeUpdate    = "trade_update"
	TypePositionUpdate = "position_update"
	TypeStrategyStatus = "strategy_status"
)

// Channel names carried by data frames.
const (
	ChannelTick     = "tick"
	ChannelDepth    = "depth"
	ChannelKline    = "kline"
	ChannelOrders   = "orders"
	ChannelTrades   = "trades"
	ChannelPosition = "positions"
	ChannelStrategy = "strategy"
)

// Frame is the bidirectional wire envelope.
//
// Client to server frames use Type plus Channel/Symbols/Fields/Params
// (subscribe, unsubscribe), Data (auth) or Timestamp (ping). Server to
// client frames carry Type, Channel, Data, Timestamp and an optional ID.
type Frame struct {
	Type      string            `json:"type"`
	Channel   string            `json:"channel,omitempty"`
	Symbols   []string          `json:"symbols,omitempty"`
	Fields    []string          `json:"fields,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	ID        string            `json:"id,omitempty"`
}

// SubscribeParams describes what a subscriber wants from a channel.
// The zero value means "everything on the channel".
type SubscribeParams struct {
	Symbols []string          `json:"symbols,omitempty"`
	Fields  []string          `json:"fields,omitempty"`
	Extra   map[string]string `json:"params,omitempty"`
}

// Key returns the normalized identity of a (channel, params) pair.
// Symbols and fields are sorted and extra params serialized with sorted
// keys, so two logically identical subscriptions always collapse to the
// same key.
func (p SubscribeParams) Key(channel string) string {
	var b strings.Builder
	b.WriteString(channel)
	b.WriteByte('|')

	symbols := append([]string(nil), p.Symbols...)
	sort.Strings(symbols)
	b.WriteString(strings.Join(symbols, ","))
	b.WriteByte('|')

	fields := append([]string(nil), p.Fields...)
	sort.Strings(fields)
	b.WriteString(strings.Join(fields, ","))
	b.WriteByte('|')

	// encoding/json marshals map keys in sorted order.
	if len(p.Extra) > 0 {
		extra, _ := json.Marshal(p.Extra)
		b.Write(extra)
	}

	return b.String()
}

// Matches reports whether a data payload for the given symbol should be
// delivered to a subscriber with these params. An empty symbol filter
// matches everything.
func (p SubscribeParams) Matches(symbol string) bool {
	if len(p.Symbols) == 0 {
		return true
	}
	for _, s := range p.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// NewAuthFrame builds the credential frame sent immediately after the
// transport opens.
func NewAuthFrame(token string) Frame {
	data, _ := json.Marshal(map[string]string{"token": token})
	return Frame{Type: TypeAuth, Data: data}
}

// NewSubscribeFrame builds an upstream subscribe frame for a channel.
func NewSubscribeFrame(channel string, params SubscribeParams) Frame {
	return Frame{
		Type:    TypeSubscribe,
		Channel: channel,
		Symbols: params.Symbols,
		Fields:  params.Fields,
		Params:  params.Extra,
		ID:      uuid.NewString(),
	}
}

// NewUnsubscribeFrame builds an upstream unsubscribe frame.
func NewUnsubscribeFrame(channel string, symbols []string) Frame {
	return Frame{
		Type:    TypeUnsubscribe,
		Channel: channel,
		Symbols: symbols,
		ID:      uuid.NewString(),
	}
}

// NewPingFrame builds a liveness probe frame.
func NewPingFrame(now time.Time) Frame {
	return Frame{Type: TypePing, Timestamp: now.UTC().Format(time.RFC3339)}
}

// AuthResult is the payload of an auth_response frame.
type AuthResult struct {
	Status string `json:"status"` // "ok" or "error"
	Reason string `json:"reason,omitempty"`
}

// OK reports whether authentication succeeded.
func (r AuthResult) OK() bool { return r.Status == "ok" }
