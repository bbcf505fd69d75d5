// Package config loads bridge configuration from the environment with the
// BRIDGE_ prefix.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Addr is the HTTP listen address.
	Addr string `default:":8080"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBSchema    string `envconfig:"DB_SCHEMA" default:"bridge"`

	// RedisURL enables the plan cache and the shared rate limiter when
	// set; otherwise the in-memory limiter runs and plans read through.
	RedisURL string `envconfig:"REDIS_URL"`

	// Session-token verification (web tier is the issuer).
	SessionIssuer    string        `envconfig:"SESSION_ISSUER"`
	SessionAudience  string        `envconfig:"SESSION_AUDIENCE" default:"ora-bridge"`
	SessionJWKSURL   string        `envconfig:"SESSION_JWKS_URL"`
	SessionPinnedPEM string        `envconfig:"SESSION_PINNED_PEM"`
	SessionSkew      time.Duration `envconfig:"SESSION_SKEW" default:"30s"`

	// Stale-activation sweep.
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"0 4 * * *"`
	SweepIdleDays int    `envconfig:"SWEEP_IDLE_DAYS" default:"30"`

	// UsageWorkers bounds the river queue draining usage increments.
	UsageWorkers int `envconfig:"USAGE_WORKERS" default:"2"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads BRIDGE_-prefixed environment variables.
func Load() (Config, error) {
	var cfg Config
	err := envconfig.Process("bridge", &cfg)
	return cfg, err
}
