// Package service runs correlation: it finds the matches two players shared
// and streams their direct interactions to a sink as each match completes.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/okian/crossfire/internal/adapters/stream"
	"github.com/okian/crossfire/internal/adapters/upstream"
	"github.com/okian/crossfire/internal/domain/interaction"
	"github.com/okian/crossfire/internal/domain/model"
	"github.com/okian/crossfire/internal/domain/telemetry"
	"github.com/okian/crossfire/pkg/logger"
	"github.com/okian/crossfire/pkg/metrics"
)

// Upstream is what a run needs from the statistics API.
type Upstream interface {
	ResolvePlayers(ctx context.Context, primary, opponent string) (upstream.Players, error)
	FetchMatch(ctx context.Context, matchID string) (upstream.Match, error)
	FetchTelemetry(ctx context.Context, location string) ([]telemetry.Event, error)
}

// Run results recorded in metrics.
const (
	resultCompleted = "completed"
	resultFailed    = "failed"
	resultRejected  = "rejected"
	resultAbandoned = "abandoned"
)

// Match outcomes recorded in metrics.
const (
	outcomeShared      = "shared"
	outcomeNoOpponent  = "skipped_no_opponent"
	outcomeNoTelemetry = "skipped_no_telemetry"
)

// Correlator is safe for concurrent runs. Runs share only the upstream and
// therefore its rate gate.
type Correlator struct {
	upstream        Upstream
	location        *time.Location
	matchLimit      int
	credentialCheck func() error
	now             func() time.Time
	logger          logger.Logger
}

// New constructs a Correlator over up.
func New(up Upstream, opts ...Option) *Correlator {
	c := &Correlator{
		upstream: up,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("correlator")
	}
	return c
}

// Validate rejects a run before anything is streamed. It returns an error
// wrapping ErrConfiguration or ErrInvalidInput.
func (c *Correlator) Validate(player, opponent string) error {
	if c.credentialCheck != nil {
		if err := c.credentialCheck(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	var missing []string
	if strings.TrimSpace(player) == "" {
		missing = append(missing, "player")
	}
	if strings.TrimSpace(opponent) == "" {
		missing = append(missing, "opponent")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, " and "))
	}
	if strings.TrimSpace(player) == strings.TrimSpace(opponent) {
		return fmt.Errorf("%w: player and opponent must differ", ErrInvalidInput)
	}
	return nil
}

// Run correlates player with opponent and writes the records to sink, which
// it closes exactly once before returning. The stream always ends with a
// completion marker or a single error record, unless the consumer went away
// or ctx was cancelled, in which case Run stops without writing more.
//
// The returned error is the one reported in the error record, or nil.
func (c *Correlator) Run(ctx context.Context, player, opponent string, sink stream.Sink) error {
	if RunIDFrom(ctx) == "" {
		ctx = WithRunID(ctx, NewRunID())
	}
	player, opponent = strings.TrimSpace(player), strings.TrimSpace(opponent)

	r := &run{
		Correlator: c,
		sink:       sink,
		started:    c.now(),
	}

	metrics.AddActiveRuns(1)
	defer metrics.AddActiveRuns(-1)

	c.logger.Info(ctx, "correlation started",
		logger.String("player", player),
		logger.String("opponent", opponent),
	)

	if err := c.Validate(player, opponent); err != nil {
		return r.finish(ctx, err, resultRejected)
	}
	return r.finish(ctx, r.execute(ctx, player, opponent), resultFailed)
}

// run is the state of one invocation.
type run struct {
	*Correlator
	sink     stream.Sink
	started  time.Time
	examined int
	shared   int
}

func (r *run) execute(ctx context.Context, player, opponent string) error {
	players, err := r.upstream.ResolvePlayers(ctx, player, opponent)
	if err != nil {
		return err
	}
	if players.Primary.ID == players.Opponent.ID {
		return fmt.Errorf("%w: %s and %s are the same account", ErrInvalidInput, player, opponent)
	}
	if err := r.emit(ctx, stream.Progress("Found players %s and %s", players.Primary.Name, players.Opponent.Name)); err != nil {
		return err
	}

	matchIDs := players.RecentMatches
	if r.matchLimit > 0 && len(matchIDs) > r.matchLimit {
		matchIDs = matchIDs[:r.matchLimit]
	}
	if err := r.emit(ctx, stream.Progress("Found %s for %s",
		english.Plural(len(matchIDs), "recent match", "recent matches"), players.Primary.Name)); err != nil {
		return err
	}

	// Rate gate pauses from here on are narrated to the caller. A refused
	// narration means nobody is reading, so the pending call is dropped.
	ctx = upstream.WithWaitNotifier(ctx, func(op string, wait time.Duration) error {
		secs := int(math.Ceil(wait.Seconds()))
		return r.emit(ctx, stream.Progress("Rate limit reached, waiting %ds", secs))
	})

	for i, id := range matchIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.correlateMatch(ctx, i+1, len(matchIDs), id, players); err != nil {
			return err
		}
	}

	return r.emit(ctx, stream.Progress("Complete: %s shared out of %s examined",
		english.Plural(r.shared, "match", "matches"),
		english.Plural(r.examined, "match", "matches")))
}

// correlateMatch handles one candidate match. Telemetry is only fetched once
// the match is known to contain both players.
func (r *run) correlateMatch(ctx context.Context, pos, total int, matchID string, players upstream.Players) error {
	m, err := r.upstream.FetchMatch(ctx, matchID)
	if err != nil {
		return err
	}
	r.examined++

	if !m.HasParticipant(players.Opponent.ID) {
		metrics.RecordMatch(outcomeNoOpponent)
		return r.emit(ctx, stream.Progress("Skipping match %s (%d/%d): %s did not play",
			matchID, pos, total, players.Opponent.Name))
	}
	if m.TelemetryURL == "" {
		metrics.RecordMatch(outcomeNoTelemetry)
		return r.emit(ctx, stream.Progress("Skipping match %s (%d/%d): no telemetry available",
			matchID, pos, total))
	}

	if err := r.emit(ctx, stream.Progress("Processing match %s (%d/%d) on %s",
		matchID, pos, total, m.Map)); err != nil {
		return err
	}

	events, err := r.upstream.FetchTelemetry(ctx, m.TelemetryURL)
	if err != nil {
		return err
	}
	found := interaction.Extract(events, players.Primary, players.Opponent)
	for _, it := range found {
		metrics.RecordInteraction(string(it.Type))
	}

	r.shared++
	metrics.RecordMatch(outcomeShared)
	r.logger.Debug(ctx, "match correlated",
		logger.String("match_id", matchID),
		logger.Int("events", len(events)),
		logger.Int("interactions", len(found)),
	)
	return r.emit(ctx, stream.Match(model.NewMatchSummary(m.ID, m.Map, m.CreatedAt, r.location, found)))
}

func (r *run) emit(ctx context.Context, m stream.Message) error {
	return r.sink.Emit(ctx, m)
}

// finish writes the terminal record, closes the sink and accounts the run.
func (r *run) finish(ctx context.Context, err error, failure string) error {
	result := resultCompleted
	switch {
	case err == nil:
		err = r.emit(ctx, stream.Done())
		if err != nil {
			result = resultAbandoned
		}
	case r.abandoned(ctx, err):
		result = resultAbandoned
	default:
		result = failure
		if emitErr := r.emit(ctx, stream.Failure(err.Error())); emitErr != nil {
			r.logger.Debug(ctx, "error record dropped", logger.Error(emitErr))
		}
	}

	if closeErr := r.sink.Close(); closeErr != nil && !errors.Is(closeErr, stream.ErrClosed) {
		r.logger.Warn(ctx, "closing stream failed", logger.Error(closeErr))
	}
	metrics.RecordRun(result)

	fields := []logger.Field{
		logger.String("result", result),
		logger.Int("examined", r.examined),
		logger.Int("shared", r.shared),
		logger.Duration("elapsed", r.now().Sub(r.started)),
	}
	switch result {
	case resultCompleted:
		r.logger.Info(ctx, "correlation completed", fields...)
	case resultAbandoned:
		r.logger.Info(ctx, "correlation abandoned by consumer", append(fields, logger.Error(err))...)
	default:
		r.logger.Warn(ctx, "correlation failed", append(fields, logger.Error(err))...)
	}
	return err
}

// abandoned reports whether err means nobody is listening any more.
func (r *run) abandoned(ctx context.Context, err error) bool {
	return errors.Is(err, stream.ErrConsumerGone) ||
		errors.Is(err, stream.ErrClosed) ||
		(ctx.Err() != nil && errors.Is(err, ctx.Err()))
}
