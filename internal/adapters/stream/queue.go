package stream

import (
	"context"
	"sync"

	"github.com/okian/crossfire/pkg/metrics"
)

const defaultInitialCapacity = 16

// Queue is an unbounded, ordered, single-producer single-consumer Sink.
// Emit never blocks on a slow consumer; records are buffered until read.
type Queue struct {
	mu     sync.Mutex
	buf    []Message
	closed bool
	gone   bool
	ready  chan struct{} // capacity 1, signals new state
}

// NewQueue creates an empty open queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		buf:   make([]Message, 0, defaultInitialCapacity),
		ready: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Emit appends m to the queue.
func (q *Queue) Emit(_ context.Context, m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.gone:
		return ErrConsumerGone
	case q.closed:
		return ErrClosed
	}
	q.buf = append(q.buf, m)
	metrics.AddStreamBacklog(1)
	q.signal()
	return nil
}

// Close ends the stream. Buffered records are still delivered. Closing
// twice is a no-op.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.signal()
	return nil
}

// Abandon is called by the consumer when it stops reading. Pending records
// are discarded and further Emit calls fail with ErrConsumerGone.
func (q *Queue) Abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gone {
		return
	}
	q.gone = true
	metrics.AddStreamBacklog(-len(q.buf))
	q.buf = nil
	q.signal()
}

// Messages returns a channel delivering records in emission order. The
// channel is closed after the stream is closed and drained, after Abandon,
// or when ctx is done. Only one consumer may read a Queue.
func (q *Queue) Messages(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			m, ok, finished := q.pop()
			if finished {
				return
			}
			if !ok {
				select {
				case <-q.ready:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of undelivered records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// pop takes the oldest record. finished is true once nothing more can arrive.
func (q *Queue) pop() (m Message, ok, finished bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gone {
		return Message{}, false, true
	}
	if len(q.buf) > 0 {
		m = q.buf[0]
		q.buf[0] = Message{}
		q.buf = q.buf[1:]
		metrics.AddStreamBacklog(-1)
		return m, true, false
	}
	return Message{}, false, q.closed
}

// signal wakes the consumer without blocking. Callers hold mu.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Forward copies records from q to dst in order until q is drained, then
// closes dst. If dst rejects a record or ctx ends, q is abandoned so its
// producer stops at the next Emit.
func Forward(ctx context.Context, q *Queue, dst Sink) error {
	for m := range q.Messages(ctx) {
		if err := dst.Emit(ctx, m); err != nil {
			q.Abandon()
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		q.Abandon()
		return err
	}
	return dst.Close()
}
