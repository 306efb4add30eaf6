package stream

import "context"

// Sink is the producer side of a stream. Emit appends in order; Close ends
// the stream. Emit after Close fails with ErrClosed, and once the consumer
// is gone it fails with ErrConsumerGone so the producer can stop early.
type Sink interface {
	Emit(ctx context.Context, m Message) error
	Close() error
}
