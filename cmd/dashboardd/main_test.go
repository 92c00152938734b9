package main

import (
	"testing"
	"time"

	"github.com/wu-shaobing/quant-platform-sub002/internal/auth"
	"github.com/wu-shaobing/quant-platform-sub002/internal/config"
)

func TestManagerConfigMapping(t *testing.T) {
	gw := config.GatewayConfig{
		URL:                  "wss://gateway.test/stream",
		HandshakeTimeout:     3 * time.Second,
		HeartbeatInterval:    20 * time.Second,
		HeartbeatTimeout:     20 * time.Second,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		ReconnectMaxAttempts: 5,
	}

	cfg := managerConfig(gw)
	if cfg.URL != gw.URL {
		t.Errorf("URL = %q, want %q", cfg.URL, gw.URL)
	}
	if cfg.HeartbeatInterval != 20*time.Second || cfg.HeartbeatTimeout != 20*time.Second {
		t.Errorf("heartbeat mapping wrong: %s/%s", cfg.HeartbeatInterval, cfg.HeartbeatTimeout)
	}
	if cfg.ReconnectMaxAttempts != 5 {
		t.Errorf("ReconnectMaxAttempts = %d, want 5", cfg.ReconnectMaxAttempts)
	}
}

func TestManagerConfigRetryForever(t *testing.T) {
	gw := config.GatewayConfig{
		URL:                  "wss://gateway.test/stream",
		ReconnectMaxAttempts: -1,
	}

	// The YAML sentinel -1 becomes the manager's 0 (never give up).
	if cfg := managerConfig(gw); cfg.ReconnectMaxAttempts != 0 {
		t.Errorf("ReconnectMaxAttempts = %d, want 0", cfg.ReconnectMaxAttempts)
	}
}

func TestTokenProviderSelection(t *testing.T) {
	if _, ok := tokenProvider(config.GatewayConfig{Token: "abc"}).(auth.Static); !ok {
		t.Error("inline token should select the static provider")
	}
	if _, ok := tokenProvider(config.GatewayConfig{TokenEnv: "VAR"}).(auth.EnvToken); !ok {
		t.Error("token_env should select the env provider")
	}
	if _, ok := tokenProvider(config.GatewayConfig{TokenFile: "/tmp/token"}).(auth.FileToken); !ok {
		t.Error("token_file should select the file provider")
	}

	// Inline token wins when several sources are set.
	if _, ok := tokenProvider(config.GatewayConfig{Token: "abc", TokenEnv: "VAR"}).(auth.Static); !ok {
		t.Error("inline token should take precedence")
	}
}
