package config

import (
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default configuration should validate, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero database timeout", func(c *Config) { c.Database.Timeout = 0 }},
		{"port too low", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"poll idle below wait", func(c *Config) { c.Polling.IdleTimeout = c.Polling.WaitTimeout }},
		{"zero chat timeout", func(c *Config) { c.Chat.ResponseTimeout = 0 }},
		{"token required without secret", func(c *Config) { c.Auth.RequireToken = true }},
		{"missing dispatch section", func(c *Config) { c.Dispatch = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation failure for %s", tt.name)
			}
		})
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("CAMPUSHUB_HTTP_PORT", "9090")
	t.Setenv("CAMPUSHUB_HTTP_HOST", "127.0.0.1")
	t.Setenv("CAMPUSHUB_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("CAMPUSHUB_WEBSOCKET_PING_INTERVAL", "45s")
	t.Setenv("CAMPUSHUB_WEBSOCKET_BUFFER_SIZE", "250")
	t.Setenv("CAMPUSHUB_POLLING_ENABLED", "false")
	t.Setenv("CAMPUSHUB_CHAT_RESPONSE_TIMEOUT", "3s")
	t.Setenv("CAMPUSHUB_JWT_SECRET", "s3cret")
	t.Setenv("CAMPUSHUB_AUTH_REQUIRE_TOKEN", "true")
	t.Setenv("CAMPUSHUB_DISPATCH_INCLUDE_ATTENDANCE_ORIGIN", "true")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.HTTP.Host)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Expected database path override, got %s", cfg.Database.Path)
	}
	if cfg.WebSocket.PingInterval != 45*time.Second {
		t.Errorf("Expected ping interval 45s, got %v", cfg.WebSocket.PingInterval)
	}
	if cfg.WebSocket.BufferSize != 250 {
		t.Errorf("Expected buffer size 250, got %d", cfg.WebSocket.BufferSize)
	}
	if cfg.Polling.Enabled {
		t.Error("Expected polling disabled")
	}
	if cfg.Chat.ResponseTimeout != 3*time.Second {
		t.Errorf("Expected chat timeout 3s, got %v", cfg.Chat.ResponseTimeout)
	}
	if cfg.Auth.JWTSecret != "s3cret" || !cfg.Auth.RequireToken {
		t.Error("Expected auth overrides to apply")
	}
	if !cfg.Dispatch.IncludeAttendanceOrigin {
		t.Error("Expected attendance origin override to apply")
	}
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CAMPUSHUB_HTTP_PORT", "not-a-port")
	t.Setenv("CAMPUSHUB_WEBSOCKET_PING_INTERVAL", "soon")

	cfg := LoadFromEnv()
	defaults := DefaultConfig()

	if cfg.HTTP.Port != defaults.HTTP.Port {
		t.Errorf("Invalid port should keep default %d, got %d", defaults.HTTP.Port, cfg.HTTP.Port)
	}
	if cfg.WebSocket.PingInterval != defaults.WebSocket.PingInterval {
		t.Errorf("Invalid duration should keep default %v, got %v", defaults.WebSocket.PingInterval, cfg.WebSocket.PingInterval)
	}
}
