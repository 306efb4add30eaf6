package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/okian/crossfire/pkg/logger"
	"github.com/okian/crossfire/pkg/metrics"
)

// ContentType is the media type of an encoded stream.
const ContentType = "application/x-ndjson"

const defaultMaxRecordSize = 16 << 20

// flusher matches http.Flusher without importing net/http.
type flusher interface {
	Flush()
}

// Encoder is a Sink writing one JSON record per line. If the writer can be
// flushed, every record is flushed as soon as it is written.
type Encoder struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
	failed bool
}

// NewEncoder creates an Encoder on w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Emit writes m as a single line. A write failure means the reader went
// away, so it is reported as ErrConsumerGone.
func (e *Encoder) Emit(_ context.Context, m Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.failed:
		return ErrConsumerGone
	case e.closed:
		return ErrClosed
	}

	line, err := json.Marshal(m)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		e.failed = true
		return fmt.Errorf("%w: %w", ErrConsumerGone, err)
	}
	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
	metrics.RecordStreamMessage(m.Kind.String())
	return nil
}

// Close marks the stream finished. It does not close the underlying writer.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Decoder reads records from an encoded stream. Malformed lines are logged
// and skipped; they never end the stream.
type Decoder struct {
	sc        *bufio.Scanner
	logger    logger.Logger
	maxRecord int
	line      int
}

// NewDecoder creates a Decoder on r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		maxRecord: defaultMaxRecordSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Named("stream")
	}
	d.sc = bufio.NewScanner(r)
	d.sc.Buffer(make([]byte, 0, 64*1024), d.maxRecord)
	return d
}

// Next returns the next well-formed record, or io.EOF at the end of input.
func (d *Decoder) Next(ctx context.Context) (Message, error) {
	for d.sc.Scan() {
		d.line++
		raw := d.sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			metrics.RecordParseError()
			d.logger.Warn(ctx, "dropping malformed stream record",
				logger.Int("line", d.line),
				logger.Error(err),
			)
			continue
		}
		return m, nil
	}
	if err := d.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Message{}, fmt.Errorf("%w: record on line %d exceeds %d bytes", ErrParse, d.line+1, d.maxRecord)
		}
		return Message{}, err
	}
	return Message{}, io.EOF
}
