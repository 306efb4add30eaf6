package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/crossfire/internal/adapters/stream"
	"github.com/okian/crossfire/internal/adapters/upstream"
	"github.com/okian/crossfire/internal/adapters/upstream/upstreamtest"
	service "github.com/okian/crossfire/internal/app"
	"github.com/okian/crossfire/internal/domain/model"
	"github.com/okian/crossfire/internal/domain/ratelimit"
	"github.com/okian/crossfire/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// recordingSink keeps everything emitted and can refuse after a number of
// records to simulate a departed consumer.
type recordingSink struct {
	mu       sync.Mutex
	messages []stream.Message
	closes   int
	limit    int
}

func (s *recordingSink) Emit(_ context.Context, m stream.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return stream.ErrClosed
	}
	if s.limit > 0 && len(s.messages) >= s.limit {
		return stream.ErrConsumerGone
	}
	s.messages = append(s.messages, m)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordingSink) kinds() []stream.Kind {
	out := make([]stream.Kind, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Kind)
	}
	return out
}

var (
	alpha   = upstreamtest.Player{ID: "account.a", Name: "alpha", Matches: []string{"m1", "m2", "m3"}}
	bravo   = upstreamtest.Player{ID: "account.b", Name: "bravo"}
	charlie = upstreamtest.Player{ID: "account.c", Name: "charlie"}
	started = time.Date(2024, 3, 9, 22, 30, 0, 0, time.UTC)
)

// newScenario serves three candidate matches of which only m2 contains
// both players, with one qualifying damage event.
func newScenario() *upstreamtest.Server {
	srv := upstreamtest.NewServer()
	srv.APIKey = "secret"
	srv.AddPlayer(alpha)
	srv.AddPlayer(bravo)
	srv.AddMatch(upstreamtest.Match{ID: "m1", Map: "Baltic_Main", CreatedAt: started, Participants: []upstreamtest.Player{alpha, charlie}})
	srv.AddMatch(upstreamtest.Match{
		ID:           "m2",
		Map:          "Desert_Main",
		CreatedAt:    started,
		Participants: []upstreamtest.Player{alpha, bravo, charlie},
		Telemetry: upstreamtest.Telemetry(
			upstreamtest.DamageEvent(started.Add(time.Minute), alpha, charlie, 10, "WeapM416_C"),
			upstreamtest.DamageEvent(started.Add(2*time.Minute), alpha, bravo, 22.5, "WeapAKM_C"),
		),
	})
	srv.AddMatch(upstreamtest.Match{ID: "m3", Map: "Savage_Main", CreatedAt: started, Participants: []upstreamtest.Player{alpha}})
	return srv
}

func newCorrelator(srv *upstreamtest.Server, opts ...service.Option) *service.Correlator {
	client := upstream.NewClient(upstream.WithAPIKey("secret"), upstream.WithBaseURL(srv.URL))
	return service.New(client, opts...)
}

func TestCorrelator_Validate(t *testing.T) {
	Convey("Given a correlator", t, func() {
		c := service.New(nil)

		Convey("When a name is blank", func() {
			err := c.Validate("alpha", "  ")

			Convey("Then it is an input error naming the field", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "opponent")
			})
		})

		Convey("When both names are blank", func() {
			err := c.Validate("", "")
			So(err.Error(), ShouldContainSubstring, "player and opponent required")
		})

		Convey("When both names are the same player", func() {
			err := c.Validate("alpha", " alpha ")

			Convey("Then it is an input error", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "must differ")
			})
		})

		Convey("When the credential check fails", func() {
			c := service.New(nil, service.WithCredentialCheck(func() error {
				return errors.New("api key is not configured")
			}))
			err := c.Validate("alpha", "bravo")

			Convey("Then it is a configuration error even for valid names", func() {
				So(errors.Is(err, service.ErrConfiguration), ShouldBeTrue)
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeFalse)
			})
		})
	})
}

func TestCorrelator_Run(t *testing.T) {
	Convey("Given three candidate matches where only the second is shared", t, func() {
		srv := newScenario()
		defer srv.Close()
		berlin, err := time.LoadLocation("Europe/Berlin")
		So(err, ShouldBeNil)
		c := newCorrelator(srv, service.WithLocation(berlin))
		sink := &recordingSink{}

		Convey("When the run completes", func() {
			err := c.Run(context.Background(), "alpha", "bravo", sink)
			So(err, ShouldBeNil)

			Convey("Then the stream has exactly the expected shape and order", func() {
				So(sink.kinds(), ShouldResemble, []stream.Kind{
					stream.KindProgress,
					stream.KindProgress,
					stream.KindProgress,
					stream.KindProgress,
					stream.KindMatch,
					stream.KindProgress,
					stream.KindProgress,
					stream.KindDone,
				})
				texts := sink.messages
				So(texts[0].Text, ShouldEqual, "Found players alpha and bravo")
				So(texts[1].Text, ShouldEqual, "Found 3 recent matches for alpha")
				So(texts[2].Text, ShouldStartWith, "Skipping match m1 (1/3)")
				So(texts[3].Text, ShouldStartWith, "Processing match m2 (2/3)")
				So(texts[5].Text, ShouldStartWith, "Skipping match m3 (3/3)")
				So(texts[6].Text, ShouldEqual, "Complete: 1 match shared out of 3 matches examined")
				So(sink.closes, ShouldEqual, 1)
			})

			Convey("Then the summary carries the one qualifying interaction", func() {
				summary := sink.messages[4].Match
				So(summary.ID, ShouldEqual, "m2")
				So(summary.Map, ShouldEqual, "Desert_Main")
				So(summary.StartedAt, ShouldEqual, "2024-03-09 23:30:00 CET")
				So(len(summary.Interactions), ShouldEqual, 1)
				it := summary.Interactions[0]
				So(it.Type, ShouldEqual, model.KindDamage)
				So(it.Details.Attacker, ShouldEqual, "alpha")
				So(it.Details.Victim, ShouldEqual, "bravo")
				So(*it.Details.Damage, ShouldEqual, 22.5)
				So(it.Details.Cause, ShouldEqual, "WeapAKM_C")
			})

			Convey("Then telemetry was fetched only for the shared match", func() {
				So(srv.CallsWithPrefix("/telemetry/"), ShouldEqual, 1)
				So(srv.CallsWithPrefix("/telemetry/m1"), ShouldEqual, 0)
				So(srv.CallsWithPrefix("/telemetry/m3"), ShouldEqual, 0)
			})
		})

		Convey("When the opponent cannot be resolved", func() {
			err := c.Run(context.Background(), "alpha", "ghost", sink)

			Convey("Then exactly one error record is streamed", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				So(sink.kinds(), ShouldResemble, []stream.Kind{stream.KindFailure})
				So(sink.messages[0].Text, ShouldContainSubstring, "ghost")
				So(sink.closes, ShouldEqual, 1)
				So(srv.CallsWithPrefix("/shards/steam/matches"), ShouldEqual, 0)
			})
		})

		Convey("When a later match fails upstream", func() {
			srv.Fail("/shards/steam/matches/m3", http.StatusServiceUnavailable, "")
			err := c.Run(context.Background(), "alpha", "bravo", sink)

			Convey("Then the emitted match stays and a single error ends the stream", func() {
				So(errors.Is(err, service.ErrUpstream), ShouldBeTrue)
				kinds := sink.kinds()
				So(kinds[4], ShouldEqual, stream.KindMatch)
				So(kinds[len(kinds)-1], ShouldEqual, stream.KindFailure)
				So(kinds, ShouldNotContain, stream.KindDone)
				So(sink.messages[len(kinds)-1].Text, ShouldContainSubstring, "503")
				So(sink.closes, ShouldEqual, 1)
			})
		})

		Convey("When the shared match has no telemetry", func() {
			srv.AddMatch(upstreamtest.Match{ID: "m2", Map: "Desert_Main", CreatedAt: started,
				Participants: []upstreamtest.Player{alpha, bravo}, NoTelemetry: true})
			err := c.Run(context.Background(), "alpha", "bravo", sink)

			Convey("Then it is skipped with a message and the run completes", func() {
				So(err, ShouldBeNil)
				So(sink.messages[3].Text, ShouldEqual, "Skipping match m2 (2/3): no telemetry available")
				So(sink.kinds(), ShouldNotContain, stream.KindMatch)
				So(sink.messages[len(sink.messages)-1].Kind, ShouldEqual, stream.KindDone)
				So(srv.CallsWithPrefix("/telemetry/"), ShouldEqual, 0)
			})
		})

		Convey("When the consumer leaves after the first records", func() {
			sink.limit = 2
			err := c.Run(context.Background(), "alpha", "bravo", sink)

			Convey("Then the run halts without issuing further calls", func() {
				So(errors.Is(err, stream.ErrConsumerGone), ShouldBeTrue)
				So(len(sink.messages), ShouldEqual, 2)
				So(sink.closes, ShouldEqual, 1)
				So(srv.CallsWithPrefix("/shards/steam/matches/m1"), ShouldEqual, 1)
				So(srv.CallsWithPrefix("/shards/steam/matches/m2"), ShouldEqual, 0)
				So(srv.CallsWithPrefix("/telemetry/"), ShouldEqual, 0)
			})
		})

		Convey("When the run is cancelled up front", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := c.Run(ctx, "alpha", "bravo", sink)

			Convey("Then nothing is streamed and the sink is closed", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(sink.messages, ShouldBeEmpty)
				So(sink.closes, ShouldEqual, 1)
			})
		})

		Convey("When the match limit is one", func() {
			c := newCorrelator(srv, service.WithMatchLimit(1))
			err := c.Run(context.Background(), "alpha", "bravo", sink)

			Convey("Then only the most recent match is examined", func() {
				So(err, ShouldBeNil)
				So(sink.messages[1].Text, ShouldEqual, "Found 1 recent match for alpha")
				So(srv.CallsWithPrefix("/shards/steam/matches/"), ShouldEqual, 1)
			})
		})

		Convey("When the input is invalid", func() {
			err := c.Run(context.Background(), "alpha", "", sink)

			Convey("Then a single error record is streamed without upstream calls", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(sink.kinds(), ShouldResemble, []stream.Kind{stream.KindFailure})
				So(srv.Calls(), ShouldBeEmpty)
			})
		})
	})
}

func TestCorrelator_RateNarration(t *testing.T) {
	Convey("Given a gate allowing two calls per minute on a logical clock", t, func() {
		srv := newScenario()
		defer srv.Close()

		var (
			mu    sync.Mutex
			slept []time.Duration
		)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		gate := ratelimit.New(
			ratelimit.WithQuota(2),
			ratelimit.WithWindow(time.Minute),
			ratelimit.WithClock(func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			}),
			ratelimit.WithSleeper(func(_ context.Context, d time.Duration) error {
				mu.Lock()
				defer mu.Unlock()
				slept = append(slept, d)
				now = now.Add(d)
				return nil
			}),
		)
		client := upstream.NewClient(upstream.WithAPIKey("secret"), upstream.WithBaseURL(srv.URL), upstream.WithGate(gate))
		c := service.New(client)
		sink := &recordingSink{}

		Convey("When a run needs more calls than the window allows", func() {
			err := c.Run(context.Background(), "alpha", "bravo", sink)
			So(err, ShouldBeNil)

			Convey("Then each pause is announced before the call it delays", func() {
				var waits []int
				for i, m := range sink.messages {
					if strings.HasPrefix(m.Text, "Rate limit reached") {
						waits = append(waits, i)
					}
				}
				So(len(waits), ShouldBeGreaterThan, 0)
				So(sink.messages[waits[0]].Text, ShouldEqual, "Rate limit reached, waiting 60s")
				// resolve and m1 fit in the first window; m2 waits.
				So(waits[0], ShouldEqual, 3)
				So(sink.messages[waits[0]+1].Text, ShouldStartWith, "Processing match m2")
				So(sink.messages[len(sink.messages)-1].Kind, ShouldEqual, stream.KindDone)
			})
		})

		Convey("When the consumer refuses the wait announcement", func() {
			// Found players, found matches and the m1 skip fit; the
			// announcement for m2 is the first refused record.
			sink.limit = 3
			err := c.Run(context.Background(), "alpha", "bravo", sink)

			Convey("Then the delayed call is dropped without pausing", func() {
				So(errors.Is(err, stream.ErrConsumerGone), ShouldBeTrue)
				So(len(sink.messages), ShouldEqual, 3)
				So(sink.closes, ShouldEqual, 1)
				So(slept, ShouldBeEmpty)
				So(srv.CallsWithPrefix("/shards/steam/matches/m2"), ShouldEqual, 0)
				So(gate.Len(), ShouldEqual, 2)
			})
		})
	})
}
