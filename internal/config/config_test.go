package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-dashboard
  env: test
gateway:
  url: wss://gateway.test/stream
  token: abc123
server:
  addr: ":9090"
  allowed_origins:
    - http://localhost:5173
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-dashboard" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-dashboard")
	}
	if cfg.Gateway.URL != "wss://gateway.test/stream" {
		t.Errorf("Gateway.URL = %q, want %q", cfg.Gateway.URL, "wss://gateway.test/stream")
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9090")
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_GATEWAY_TOKEN", "secret123")

	yaml := `
instance:
  id: test-dashboard
gateway:
  url: wss://gateway.test/stream
  token: ${TEST_GATEWAY_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Token != "secret123" {
		t.Errorf("Gateway.Token = %q, want %q", cfg.Gateway.Token, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-dashboard
gateway:
  url: wss://gateway.test/stream
  token: abc
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Gateway.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 30s", cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.HeartbeatTimeout != cfg.Gateway.HeartbeatInterval {
		t.Errorf("HeartbeatTimeout = %s, want one interval (%s)", cfg.Gateway.HeartbeatTimeout, cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.ReconnectBaseDelay != time.Second {
		t.Errorf("ReconnectBaseDelay = %s, want 1s", cfg.Gateway.ReconnectBaseDelay)
	}
	if cfg.Gateway.ReconnectMaxDelay != 60*time.Second {
		t.Errorf("ReconnectMaxDelay = %s, want 60s", cfg.Gateway.ReconnectMaxDelay)
	}
	if cfg.Gateway.ReconnectMaxAttempts != 10 {
		t.Errorf("ReconnectMaxAttempts = %d, want 10", cfg.Gateway.ReconnectMaxAttempts)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
}

func TestLoadWithDefaults_ExplicitValuesKept(t *testing.T) {
	yaml := `
instance:
  id: test-dashboard
gateway:
  url: wss://gateway.test/stream
  token: abc
  heartbeat_interval: 15s
  reconnect_max_attempts: 3
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Gateway.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 15s", cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.ReconnectMaxAttempts != 3 {
		t.Errorf("ReconnectMaxAttempts = %d, want 3", cfg.Gateway.ReconnectMaxAttempts)
	}
}

func TestLoadWithDefaults_RetryForeverSentinel(t *testing.T) {
	yaml := `
instance:
  id: test-dashboard
gateway:
  url: wss://gateway.test/stream
  token: abc
  reconnect_max_attempts: -1
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	// -1 means retry forever and must survive defaulting untouched.
	if cfg.Gateway.ReconnectMaxAttempts != -1 {
		t.Errorf("ReconnectMaxAttempts = %d, want -1", cfg.Gateway.ReconnectMaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
  token: abc
`,
			wantErr: false,
		},
		{
			name: "missing instance id",
			yaml: `
gateway:
  url: wss://gateway.test/stream
  token: abc
`,
			wantErr: true,
		},
		{
			name: "missing gateway url",
			yaml: `
instance:
  id: test
gateway:
  token: abc
`,
			wantErr: true,
		},
		{
			name: "non-websocket url",
			yaml: `
instance:
  id: test
gateway:
  url: https://gateway.test/stream
  token: abc
`,
			wantErr: true,
		},
		{
			name: "no token source",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
`,
			wantErr: true,
		},
		{
			name: "heartbeat timeout equal to interval",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
  token: abc
  heartbeat_interval: 30s
  heartbeat_timeout: 30s
`,
			wantErr: false,
		},
		{
			name: "reconnect_max_attempts below sentinel",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
  token: abc
  reconnect_max_attempts: -2
`,
			wantErr: true,
		},
		{
			name: "heartbeat timeout exceeds interval",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
  token: abc
  heartbeat_interval: 5s
  heartbeat_timeout: 10s
`,
			wantErr: true,
		},
		{
			name: "journal enabled without db host",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
  token: abc
journal:
  enabled: true
  db:
    name: dash
    user: dash
    password: x
`,
			wantErr: true,
		},
		{
			name: "feed enabled without uri",
			yaml: `
instance:
  id: test
gateway:
  url: wss://gateway.test/stream
  token: abc
feed:
  enabled: true
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.yaml)
			_, err := LoadAndValidate(path)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
