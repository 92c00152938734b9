package config

import "time"

// DashboardConfig is the root configuration for a dashboard backend
// instance.
type DashboardConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Server   ServerConfig   `yaml:"server"`
	Journal  JournalConfig  `yaml:"journal"`
	Feed     FeedConfig     `yaml:"feed"`
}

// InstanceConfig identifies this backend.
type InstanceConfig struct {
	ID  string `yaml:"id"`
	Env string `yaml:"env"`
}

// GatewayConfig holds the upstream streaming gateway settings.
type GatewayConfig struct {
	URL string `yaml:"url"`

	// Exactly one token source should be set. Token wins over TokenEnv,
	// which wins over TokenFile.
	Token     string `yaml:"token"`
	TokenEnv  string `yaml:"token_env"`
	TokenFile string `yaml:"token_file"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	AuthTimeout      time.Duration `yaml:"auth_timeout"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`

	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`

	// ReconnectMaxAttempts bounds consecutive failed reconnect cycles.
	// -1 retries forever; 0 (or absent) uses the default.
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`

	MessageBufferSize int `yaml:"message_buffer_size"`
	EventBufferSize   int `yaml:"event_buffer_size"`
}

// ServerConfig holds the dashboard-facing HTTP server settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SendBufferSize int      `yaml:"send_buffer_size"`
}

// JournalConfig holds the connection-event journal settings. The
// journal is optional; when disabled no database connection is made.
type JournalConfig struct {
	Enabled bool     `yaml:"enabled"`
	DB      DBConfig `yaml:"db"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// FeedConfig holds the optional AMQP relay for account events.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	URI     string `yaml:"uri"`
	Queue   string `yaml:"queue"`
}
