package model

// Tick is the payload of a market_data frame on the tick channel.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume,omitempty"`
	Bid       float64 `json:"bid,omitempty"`
	Ask       float64 `json:"ask,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// DepthUpdate is the payload of a market_data frame on the depth channel.
type DepthUpdate struct {
	Symbol    string       `json:"symbol"`
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// Kline is the payload of a market_data frame on the kline channel.
type Kline struct {
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	OpenTime string  `json:"open_time,omitempty"`
}

// OrderUpdate is the payload of an order_update frame.
type OrderUpdate struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`   // "buy" or "sell"
	Status    string  `json:"status"` // "new", "partial", "filled", "cancelled", "rejected"
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Filled    float64 `json:"filled"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// TradeFill is the payload of a trade_update frame.
type TradeFill struct {
	TradeID   string  `json:"trade_id"`
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Fee       float64 `json:"fee,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// PositionUpdate is the payload of a position_update frame.
type PositionUpdate struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"` // signed: negative = short
	AvgPrice      float64 `json:"avg_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

// StrategyStatus is the payload of a strategy_status frame.
type StrategyStatus struct {
	StrategyID string  `json:"strategy_id"`
	Name       string  `json:"name,omitempty"`
	State      string  `json:"state"` // "running", "paused", "stopped", "error"
	PnL        float64 `json:"pnl,omitempty"`
	Message    string  `json:"message,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
}
