// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults come from New; Load layers a YAML file and the environment on top.
// - A missing API key is not a load failure; requests report it instead.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIKey is the upstream statistics API credential.
	APIKey string `koanf:"api_key"`

	// APIBaseURL is the upstream API root, without the shard segment.
	APIBaseURL string `koanf:"api_base_url"`

	// Shard selects the upstream platform shard, e.g. "steam".
	Shard string `koanf:"shard"`

	// RateLimitRequests is the number of upstream calls allowed per window.
	RateLimitRequests int `koanf:"rate_limit_requests"`

	// RateLimitWindow is the length of the sliding quota window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// RequestTimeout bounds a single upstream HTTP exchange. Zero disables it.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// DisplayTimeZone is the IANA zone match start times are rendered in.
	DisplayTimeZone string `koanf:"display_time_zone"`

	// MatchLimit caps how many recent matches are examined. Zero means all.
	MatchLimit int `koanf:"match_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		APIBaseURL:        "https://api.pubg.com",
		Shard:             "steam",
		RateLimitRequests: 10,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    0,
		DisplayTimeZone:   "UTC",
		MatchLimit:        0,
	}
}

// Location resolves DisplayTimeZone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DisplayTimeZone)
}

// RequireCredential returns ErrMissingCredential when no API key is set.
func (c *Config) RequireCredential() error {
	if c.APIKey == "" {
		return ErrMissingCredential
	}
	return nil
}
