package upstream

import (
	"context"
	"time"
)

// WaitNotifier is told about each rate gate pause before it starts. A non-nil
// error abandons the call before the pause and is returned to the caller.
type WaitNotifier func(op string, wait time.Duration) error

type notifierKey struct{}

// WithWaitNotifier attaches n to ctx so calls made with it report their
// rate gate pauses to the caller of that run.
func WithWaitNotifier(ctx context.Context, n WaitNotifier) context.Context {
	return context.WithValue(ctx, notifierKey{}, n)
}

func waitNotifierFrom(ctx context.Context) WaitNotifier {
	n, _ := ctx.Value(notifierKey{}).(WaitNotifier)
	return n
}
