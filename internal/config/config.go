package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the system-wide settings tree. Every subsystem reads its own
// section; nothing reads the environment directly.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Polling   *PollingConfig   `json:"polling"`
	Chat      *ChatConfig      `json:"chat"`
	Auth      *AuthConfig      `json:"auth"`
	Dispatch  *DispatchConfig  `json:"dispatch"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// PollingConfig controls the long-poll fallback transport.
type PollingConfig struct {
	Enabled     bool          `json:"enabled"`
	WaitTimeout time.Duration `json:"wait_timeout"`
	IdleTimeout time.Duration `json:"idle_timeout"`
}

// ChatConfig controls the assistant responder.
type ChatConfig struct {
	ResponseTimeout time.Duration `json:"response_timeout"`
	DefaultLanguage string        `json:"default_language"`
}

// AuthConfig controls optional JWT identity verification on dashboard joins.
// With an empty secret, declared identities are accepted as-is.
type AuthConfig struct {
	JWTSecret     string        `json:"jwt_secret"`
	JWTIssuer     string        `json:"jwt_issuer"`
	JWTExpiration time.Duration `json:"jwt_expiration"`
	RequireToken  bool          `json:"require_token"`
}

// DispatchConfig tunes fan-out behavior.
type DispatchConfig struct {
	IncludeAttendanceOrigin bool `json:"include_attendance_origin"`
}

// DefaultConfig returns settings sized for a single-campus deployment.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./campushub.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Polling: &PollingConfig{
			Enabled:     true,
			WaitTimeout: 25 * time.Second,
			IdleTimeout: 90 * time.Second,
		},
		Chat: &ChatConfig{
			ResponseTimeout: 10 * time.Second,
			DefaultLanguage: "en",
		},
		Auth: &AuthConfig{
			JWTSecret:     "",
			JWTIssuer:     "campushub",
			JWTExpiration: 24 * time.Hour,
			RequireToken:  false,
		},
		Dispatch: &DispatchConfig{
			IncludeAttendanceOrigin: false,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Polling == nil {
		return fmt.Errorf("polling configuration is required")
	}
	if c.Polling.Enabled {
		if c.Polling.WaitTimeout <= 0 {
			return fmt.Errorf("polling wait timeout must be positive")
		}
		if c.Polling.IdleTimeout <= c.Polling.WaitTimeout {
			return fmt.Errorf("polling idle timeout must exceed wait timeout")
		}
	}

	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.ResponseTimeout <= 0 {
		return fmt.Errorf("chat response timeout must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.RequireToken && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth requires a JWT secret when tokens are mandatory")
	}

	if c.Dispatch == nil {
		return fmt.Errorf("dispatch configuration is required")
	}

	return nil
}

// LoadFromEnv starts from defaults and applies CAMPUSHUB_* overrides.
// Invalid values fall back to the default rather than failing startup.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("CAMPUSHUB_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("CAMPUSHUB_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if readTimeout := os.Getenv("CAMPUSHUB_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("CAMPUSHUB_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	if dbPath := os.Getenv("CAMPUSHUB_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if dbTimeout := os.Getenv("CAMPUSHUB_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}

	if pingInterval := os.Getenv("CAMPUSHUB_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if wsReadTimeout := os.Getenv("CAMPUSHUB_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}
	if wsWriteTimeout := os.Getenv("CAMPUSHUB_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}
	if bufferSize := os.Getenv("CAMPUSHUB_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}

	if enabled := os.Getenv("CAMPUSHUB_POLLING_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Polling.Enabled = b
		}
	}
	if wait := os.Getenv("CAMPUSHUB_POLLING_WAIT_TIMEOUT"); wait != "" {
		if timeout, err := time.ParseDuration(wait); err == nil {
			config.Polling.WaitTimeout = timeout
		}
	}
	if idle := os.Getenv("CAMPUSHUB_POLLING_IDLE_TIMEOUT"); idle != "" {
		if timeout, err := time.ParseDuration(idle); err == nil {
			config.Polling.IdleTimeout = timeout
		}
	}

	if chatTimeout := os.Getenv("CAMPUSHUB_CHAT_RESPONSE_TIMEOUT"); chatTimeout != "" {
		if timeout, err := time.ParseDuration(chatTimeout); err == nil {
			config.Chat.ResponseTimeout = timeout
		}
	}
	if lang := os.Getenv("CAMPUSHUB_CHAT_DEFAULT_LANGUAGE"); lang != "" {
		config.Chat.DefaultLanguage = lang
	}

	if secret := os.Getenv("CAMPUSHUB_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if issuer := os.Getenv("CAMPUSHUB_JWT_ISSUER"); issuer != "" {
		config.Auth.JWTIssuer = issuer
	}
	if expiration := os.Getenv("CAMPUSHUB_JWT_EXPIRATION"); expiration != "" {
		if d, err := time.ParseDuration(expiration); err == nil {
			config.Auth.JWTExpiration = d
		}
	}
	if require := os.Getenv("CAMPUSHUB_AUTH_REQUIRE_TOKEN"); require != "" {
		if b, err := strconv.ParseBool(require); err == nil {
			config.Auth.RequireToken = b
		}
	}

	if include := os.Getenv("CAMPUSHUB_DISPATCH_INCLUDE_ATTENDANCE_ORIGIN"); include != "" {
		if b, err := strconv.ParseBool(include); err == nil {
			config.Dispatch.IncludeAttendanceOrigin = b
		}
	}

	return config
}
