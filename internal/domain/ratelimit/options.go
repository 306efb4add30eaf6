package ratelimit

import "time"

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithQuota sets how many calls are admitted per window.
func WithQuota(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.quota = n
		}
	}
}

// WithWindow sets the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock replaces time.Now, typically with a logical clock in tests.
func WithClock(c Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.now = c
		}
	}
}

// WithSleeper replaces the timer-based pause used by Acquire.
func WithSleeper(s Sleeper) Option {
	return func(g *Gate) {
		if s != nil {
			g.sleep = s
		}
	}
}
