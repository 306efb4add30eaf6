// Package ratelimit implements the sliding-window quota gate shared by every
// upstream call the service makes.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/okian/crossfire/pkg/metrics"
)

// Default quota matching the upstream's per-key allowance.
const (
	defaultQuota  = 10
	defaultWindow = time.Minute
)

// Clock returns the current instant.
type Clock func() time.Time

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Gate tracks recent call timestamps and computes how long the next call
// has to wait. It never drops or reorders calls, it only delays them.
//
// A Gate is meant to be shared by all concurrent runs: the quota belongs to
// the credential, not to a single caller.
type Gate struct {
	mu     sync.Mutex
	calls  []time.Time // oldest first
	quota  int
	window time.Duration
	now    Clock
	sleep  Sleeper
}

// New creates a gate with the default quota of 10 calls per minute.
func New(opts ...Option) *Gate {
	g := &Gate{
		quota:  defaultQuota,
		window: defaultWindow,
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.calls = make([]time.Time, 0, g.quota)
	return g
}

// Admit evicts timestamps that left the window and either records the
// current instant and returns zero, or returns the remaining wait without
// recording anything.
func (g *Gate) Admit() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)
	if len(g.calls) < g.quota {
		g.calls = append(g.calls, now)
		metrics.UpdateGateWindow(len(g.calls))
		return 0
	}
	return g.window - now.Sub(g.calls[0])
}

// Record stores the current instant unconditionally. It is used once a
// caller has served the wait returned by Admit.
func (g *Gate) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)
	g.calls = append(g.calls, now)
	metrics.UpdateGateWindow(len(g.calls))
}

// Acquire admits one call, pausing at most once. When a wait is needed,
// notify (if non-nil) is told about it before the pause; after the pause the
// call is recorded and proceeds without a second check. An error from notify
// cancels the call: Acquire returns it without pausing or recording.
func (g *Gate) Acquire(ctx context.Context, notify func(time.Duration) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wait := g.Admit()
	if wait <= 0 {
		return nil
	}
	if notify != nil {
		if err := notify(wait); err != nil {
			return err
		}
	}
	metrics.RecordGateWait(wait.Seconds())
	if err := g.sleep(ctx, wait); err != nil {
		return err
	}
	g.Record()
	return nil
}

// Len returns how many calls are currently inside the window.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(g.now())
	return len(g.calls)
}

// Quota returns the configured call allowance and window.
func (g *Gate) Quota() (int, time.Duration) {
	return g.quota, g.window
}

// evict drops timestamps at least one window old. Callers hold mu.
func (g *Gate) evict(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.calls) && !g.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.calls = append(g.calls[:0], g.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
