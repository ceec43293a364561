// Package config defines the application configuration, loaded from
// environment variables with github.com/caarlos0/env. See the individual
// domain config files for the available variables:
//   - channel.go: worker gateway channel configuration
//   - database.go: Postgres archive and Redis cache configuration
//   - http.go: HTTP API server configuration
//   - observability.go: metrics configuration
package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
type AppConfig struct {
	// IsDev controls development mode behavior. Set DEV=true for
	// development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Channel configuration for the worker gateway connection.
	Channel ChannelConfig `envPrefix:"CHANNEL_"`

	// Archive configuration for the Postgres log archive.
	Archive ArchiveConfig `envPrefix:"ARCHIVE_"`

	// Cache configuration for the Redis snapshot cache.
	Cache CacheConfig `envPrefix:"CACHE_"`

	// HTTP API server configuration.
	HTTP HTTPConfig `envPrefix:"HTTP_"`

	// Observability configuration.
	Observability ObservabilityConfig `envPrefix:"METRICS_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment
// variables.
func (c *AppConfig) Sanitize() {
	c.Channel.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks the DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}
