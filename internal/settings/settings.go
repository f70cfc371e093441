// Package settings holds the ambient, environment-sourced configuration
// that sits alongside the CLI-flag-owned named arguments (policy config
// path, stream RPC endpoint, auth token): log level, dispatch concurrency,
// polling cadence, and the optional Redis decimals cache. It is loaded with
// kelseyhightower/envconfig, the teacher's declared-but-previously-unused
// configuration dependency, the same declarative-tag way
// internal/pkg/validator already validates structs elsewhere in this repo.
package settings

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/tierwatch/tierwatch/internal/pkg/validator"
)

// Settings is the full set of environment-sourced knobs. Every TIERWATCH_*
// variable is optional except where validate:"required" says otherwise.
type Settings struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DispatchConcurrency int           `envconfig:"DISPATCH_CONCURRENCY" default:"16"`
	PollInterval         time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`

	BackoffInitial time.Duration `envconfig:"BACKOFF_INITIAL" default:"1s"`
	BackoffMax     time.Duration `envconfig:"BACKOFF_MAX" default:"30s"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
}

// Load reads Settings from the environment under the TIERWATCH_ prefix
// (e.g. TIERWATCH_LOG_LEVEL) and validates the result.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("tierwatch", &s); err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}

	if err := validator.Validate(s); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// UsesRedis reports whether a Redis-backed decimals cache should be wired
// up, i.e. whether RedisAddr was configured.
func (s Settings) UsesRedis() bool {
	return s.RedisAddr != ""
}
