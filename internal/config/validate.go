package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *DashboardConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	if !strings.HasPrefix(c.Gateway.URL, "ws://") && !strings.HasPrefix(c.Gateway.URL, "wss://") {
		return fmt.Errorf("gateway.url must be a ws:// or wss:// URL, got %q", c.Gateway.URL)
	}
	if c.Gateway.Token == "" && c.Gateway.TokenEnv == "" && c.Gateway.TokenFile == "" {
		return errors.New("one of gateway.token, gateway.token_env, gateway.token_file is required")
	}
	if c.Gateway.HeartbeatTimeout > c.Gateway.HeartbeatInterval {
		return fmt.Errorf("gateway.heartbeat_timeout (%s) cannot exceed gateway.heartbeat_interval (%s)",
			c.Gateway.HeartbeatTimeout, c.Gateway.HeartbeatInterval)
	}
	if c.Gateway.ReconnectBaseDelay > c.Gateway.ReconnectMaxDelay {
		return fmt.Errorf("gateway.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Gateway.ReconnectBaseDelay, c.Gateway.ReconnectMaxDelay)
	}
	if c.Gateway.ReconnectMaxAttempts < -1 {
		return errors.New("gateway.reconnect_max_attempts must be >= -1 (-1 retries forever)")
	}

	if c.Journal.Enabled {
		if err := c.Journal.DB.validate("journal.db"); err != nil {
			return err
		}
	}

	if c.Feed.Enabled && c.Feed.URI == "" {
		return errors.New("feed.uri is required when feed.enabled is true")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
