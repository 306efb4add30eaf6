package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	// ErrClosed is returned when emitting after the stream was closed.
	ErrClosed = errors.New("stream closed")
	// ErrConsumerGone is returned once the consumer stopped reading.
	ErrConsumerGone = errors.New("stream consumer gone")
	// ErrParse marks a record that does not follow the protocol.
	ErrParse = errors.New("malformed stream record")
)
