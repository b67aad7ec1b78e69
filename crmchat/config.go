package crmchat

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls how the SDK connects.
type Config struct {
	URL              string        `env:"CRMCHAT_WS_URL"` // room endpoint base, e.g. ws://host/ws/chat
	Token            string        `env:"CRMCHAT_TOKEN"`  // bearer token sent as ?token=
	RESTBaseURL      string        `env:"CRMCHAT_REST_URL"`
	HandshakeTimeout time.Duration `env:"CRMCHAT_HANDSHAKE_TIMEOUT"`
	ReadTimeout      time.Duration `env:"CRMCHAT_READ_TIMEOUT"`
	WriteTimeout     time.Duration `env:"CRMCHAT_WRITE_TIMEOUT"`

	AutoReconnect     bool          `env:"CRMCHAT_AUTO_RECONNECT"`
	ReconnectInterval time.Duration `env:"CRMCHAT_RECONNECT_INTERVAL"` // delay before the first retry
	MaxReconnectDelay time.Duration `env:"CRMCHAT_MAX_RECONNECT_DELAY"`
	MaxReconnectTries int           `env:"CRMCHAT_MAX_RECONNECT_TRIES"`
}

// DefaultConfig returns sensible defaults.
// ReadTimeout is disabled: rooms can be idle for long periods and the server
// handles liveness with ping/pong.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		AutoReconnect:     true,
		ReconnectInterval: time.Second,
		MaxReconnectDelay: 30 * time.Second,
		MaxReconnectTries: 5,
	}
}

// LoadConfigFromEnv starts from DefaultConfig and overrides fields from
// CRMCHAT_* environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// EndpointURL builds the room-scoped socket URL: <base>/<roomID>?token=<token>.
func EndpointURL(base string, roomID int64, token string) (string, error) {
	if base == "" {
		return "", NewError(ErrorInvalidConfig, "empty URL")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", WrapError(ErrorInvalidConfig, "invalid URL", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return "", NewError(ErrorInvalidConfig, fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
	}
	u = u.JoinPath(strconv.FormatInt(roomID, 10))
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
