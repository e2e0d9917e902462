// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables; secrets (signing key,
// bureau API keys) are never compiled into the binary.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Session tokens
	SessionSigningKey string        `env:"SESSION_SIGNING_KEY,required"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"1h"`

	// Password hashing cost (Argon2id)
	HashMemoryKiB uint32 `env:"HASH_MEMORY_KIB" envDefault:"65536"`
	HashTime      uint32 `env:"HASH_TIME" envDefault:"3"`
	HashThreads   uint8  `env:"HASH_THREADS" envDefault:"4"`

	// Bureau fan-out. Endpoints and API keys are ordered comma-separated
	// name=value lists; the endpoint list order is the configured source
	// order of every bundle (e.g.
	// "transunion=https://api.tu.example,xds=https://api.xds.example").
	BureauEndpoints     string        `env:"BUREAU_ENDPOINTS" envDefault:""`
	BureauAPIKeys       string        `env:"BUREAU_API_KEYS" envDefault:""`
	BureauFetchTimeout  time.Duration `env:"BUREAU_FETCH_TIMEOUT" envDefault:"10s"`
	AggregationDeadline time.Duration `env:"AGGREGATION_DEADLINE" envDefault:"30s"`

	// Ledger append retries on same-user contention
	LedgerMaxRetries int `env:"LEDGER_MAX_RETRIES" envDefault:"3"`

	// Freshness window for reusing a bureau payload without a network pull.
	// Zero disables the cache.
	ReportCacheTTL time.Duration `env:"REPORT_CACHE_TTL" envDefault:"0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"45s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled   bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitLoginEnabled bool `env:"RATE_LIMIT_LOGIN_ENABLED" envDefault:"true"`
	RateLimitAPIRPM       int  `env:"RATE_LIMIT_API_RPM" envDefault:"60"`
	RateLimitAPIBurst     int  `env:"RATE_LIMIT_API_BURST" envDefault:"10"`
	RateLimitLoginRPM     int  `env:"RATE_LIMIT_LOGIN_RPM" envDefault:"10"`
	RateLimitLoginBurst   int  `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"5"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// BureauSource is one configured external data source.
type BureauSource struct {
	Name     string
	Endpoint string
	APIKey   string
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetBureauSources parses the endpoint and API key lists into ordered
// sources. The endpoint list defines the order; a source without an API key
// entry gets an empty key.
func (c *Config) GetBureauSources() ([]BureauSource, error) {
	endpoints, order, err := parseNamedList(c.BureauEndpoints)
	if err != nil {
		return nil, fmt.Errorf("BUREAU_ENDPOINTS: %w", err)
	}

	keys, _, err := parseNamedList(c.BureauAPIKeys)
	if err != nil {
		return nil, fmt.Errorf("BUREAU_API_KEYS: %w", err)
	}
	for name := range keys {
		if _, ok := endpoints[name]; !ok {
			return nil, fmt.Errorf("BUREAU_API_KEYS: no endpoint configured for %q", name)
		}
	}

	sources := make([]BureauSource, 0, len(order))
	for _, name := range order {
		sources = append(sources, BureauSource{
			Name:     name,
			Endpoint: endpoints[name],
			APIKey:   keys[name],
		})
	}

	return sources, nil
}

// parseNamedList parses "name=value,name=value" preserving entry order.
func parseNamedList(raw string) (map[string]string, []string, error) {
	values := make(map[string]string)
	var order []string

	if strings.TrimSpace(raw) == "" {
		return values, order, nil
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || value == "" {
			return nil, nil, fmt.Errorf("malformed entry %q, want name=value", part)
		}
		if _, exists := values[name]; exists {
			return nil, nil, fmt.Errorf("duplicate entry %q", name)
		}

		values[name] = value
		order = append(order, name)
	}

	return values, order, nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
