package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultAuthTimeout          = 10 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultHeartbeatTimeout     = DefaultHeartbeatInterval // one interval
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultReconnectMaxAttempts = 10
	DefaultMessageBufferSize    = 1024
	DefaultEventBufferSize      = 64
	DefaultServerAddr           = ":8080"
	DefaultSendBufferSize       = 256
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultFeedQueue            = "Dashboard_Account_Events"
)

func (c *DashboardConfig) applyDefaults() {
	// Gateway defaults
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.AuthTimeout == 0 {
		c.Gateway.AuthTimeout = DefaultAuthTimeout
	}
	if c.Gateway.HeartbeatInterval == 0 {
		c.Gateway.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Gateway.HeartbeatTimeout == 0 {
		c.Gateway.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.Gateway.ReconnectBaseDelay == 0 {
		c.Gateway.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Gateway.ReconnectMaxDelay == 0 {
		c.Gateway.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Gateway.ReconnectMaxAttempts == 0 {
		c.Gateway.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}
	if c.Gateway.MessageBufferSize == 0 {
		c.Gateway.MessageBufferSize = DefaultMessageBufferSize
	}
	if c.Gateway.EventBufferSize == 0 {
		c.Gateway.EventBufferSize = DefaultEventBufferSize
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.SendBufferSize == 0 {
		c.Server.SendBufferSize = DefaultSendBufferSize
	}

	// Journal defaults
	if c.Journal.Enabled {
		applyDBDefaults(&c.Journal.DB)
	}

	// Feed defaults
	if c.Feed.Enabled && c.Feed.Queue == "" {
		c.Feed.Queue = DefaultFeedQueue
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
