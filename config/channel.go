package config

import "time"

// ChannelConfig contains the worker gateway channel configuration.
type ChannelConfig struct {
	// URL is the websocket endpoint of the worker gateway.
	URL string `env:"URL" envDefault:"ws://localhost:8855/channel"`

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
	// ReconnectMin is the initial backoff between reconnect attempts.
	ReconnectMin time.Duration `env:"RECONNECT_MIN" envDefault:"1s"`
	// ReconnectMax caps the reconnect backoff.
	ReconnectMax time.Duration `env:"RECONNECT_MAX" envDefault:"30s"`

	// OAuth2 client-credentials auth for the gateway. Disabled when
	// TokenURL is empty.
	TokenURL     string `env:"TOKEN_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Sanitize applies guardrails to the channel configuration.
func (c *ChannelConfig) Sanitize() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
	}
}

// AuthEnabled returns true when gateway auth is configured.
func (c *ChannelConfig) AuthEnabled() bool {
	return c.TokenURL != ""
}
