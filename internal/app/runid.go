package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/okian/crossfire/pkg/logger"
)

type runIDKey struct{}

// NewRunID returns a fresh correlation run id.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID attaches a run id to ctx. Run uses it instead of minting one,
// and every record logged with the returned context carries run_id.
func WithRunID(ctx context.Context, id string) context.Context {
	ctx = logger.ContextWith(ctx, logger.String("run_id", id))
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id carried by ctx, if any.
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
