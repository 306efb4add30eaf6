package service

import (
	"time"

	"github.com/okian/crossfire/pkg/logger"
)

// Option applies a configuration option to the Correlator.
type Option func(*Correlator)

// WithLogger sets a custom logger for the correlator.
func WithLogger(l logger.Logger) Option {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLocation sets the zone match start times are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(c *Correlator) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithMatchLimit caps how many recent matches a run examines. Zero means all.
func WithMatchLimit(n int) Option {
	return func(c *Correlator) {
		if n >= 0 {
			c.matchLimit = n
		}
	}
}

// WithCredentialCheck installs the check that decides whether the upstream
// is usable. A failing check rejects every run before it streams.
func WithCredentialCheck(check func() error) Option {
	return func(c *Correlator) {
		c.credentialCheck = check
	}
}

// WithClock replaces time.Now for run duration accounting.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) {
		if now != nil {
			c.now = now
		}
	}
}
