package stream

import "github.com/okian/crossfire/pkg/logger"

// QueueOption applies a configuration option to the Queue.
type QueueOption func(*Queue)

// WithInitialCapacity preallocates room for n records.
func WithInitialCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.buf = make([]Message, 0, n)
		}
	}
}

// DecoderOption applies a configuration option to the Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger used to report dropped records.
func WithDecoderLogger(l logger.Logger) DecoderOption {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMaxRecordSize bounds the length of a single record line.
func WithMaxRecordSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxRecord = n
		}
	}
}
