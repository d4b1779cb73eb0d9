// Package config handles gateway configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all gateway configuration. Every field has a working
// default, so an empty environment yields a usable gateway pointed at the
// public StatHub API.
type Config struct {
	// Upstream client.
	BaseURL    string        `env:"STATHUB_BASE_URL" envDefault:"https://api.stathub.io/v3"`
	UserAgent  string        `env:"STATHUB_USER_AGENT" envDefault:"stathub-mcp/0.1.0"`
	RateLimit  int           `env:"STATHUB_RATE_LIMIT" envDefault:"5"`
	Timeout    time.Duration `env:"STATHUB_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"STATHUB_MAX_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"STATHUB_RETRY_DELAY" envDefault:"1s"`

	// Batching and caching.
	MaxBatchSize    int           `env:"STATHUB_MAX_BATCH" envDefault:"25"`
	CatalogTTL      time.Duration `env:"STATHUB_CATALOG_TTL" envDefault:"24h"`
	ObservationTTL  time.Duration `env:"STATHUB_OBSERVATION_TTL" envDefault:"1h"`
	JanitorInterval time.Duration `env:"STATHUB_JANITOR_INTERVAL" envDefault:"1h"`

	// Admin HTTP endpoint (health, Prometheus metrics, cache stats).
	AdminAddr string `env:"STATHUB_ADMIN_ADDR" envDefault:":9090"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STATHUB_BASE_URL %q is not an absolute URL", c.BaseURL)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("STATHUB_RATE_LIMIT must be at least 1, got %d", c.RateLimit)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("STATHUB_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("STATHUB_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("STATHUB_MAX_BATCH must be at least 1, got %d", c.MaxBatchSize)
	}
	if c.CatalogTTL <= 0 || c.ObservationTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive (catalog %s, observation %s)", c.CatalogTTL, c.ObservationTTL)
	}
	return nil
}
