// Package upstream is the rate-limited client of the game statistics API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/okian/crossfire/internal/domain/model"
	"github.com/okian/crossfire/internal/domain/ratelimit"
	"github.com/okian/crossfire/internal/domain/telemetry"
	"github.com/okian/crossfire/pkg/logger"
	"github.com/okian/crossfire/pkg/metrics"
)

// Operation names used in errors, logs and metrics.
const (
	opPlayers   = "resolve players"
	opMatch     = "fetch match"
	opTelemetry = "fetch telemetry"
)

const (
	defaultBaseURL   = "https://api.pubg.com"
	defaultShard     = "steam"
	mediaTypeJSONAPI = "application/vnd.api+json"
	maxErrorBody     = 64 << 10
)

// Client performs the three upstream calls, each admitted by the shared
// rate gate first.
type Client struct {
	apiKey     string
	baseURL    string
	shard      string
	httpClient *http.Client
	gate       *ratelimit.Gate
	logger     logger.Logger
}

// NewClient creates a client. Without WithGate it gets a private default gate.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		shard:      defaultShard,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = ratelimit.New()
	}
	if c.logger == nil {
		c.logger = logger.Named("upstream")
	}
	return c
}

// ResolvePlayers looks both names up in a single call.
func (c *Client) ResolvePlayers(ctx context.Context, primary, opponent string) (Players, error) {
	q := url.Values{}
	q.Set("filter[playerNames]", primary+","+opponent)
	endpoint := fmt.Sprintf("%s/shards/%s/players?%s", c.baseURL, url.PathEscape(c.shard), q.Encode())

	var resp playersResponse
	if err := c.getJSON(ctx, opPlayers, endpoint, true, &resp); err != nil {
		return Players{}, err
	}

	byName := func(name string) (int, bool) {
		for i, p := range resp.Data {
			if p.Attributes.Name == name {
				return i, true
			}
		}
		for i, p := range resp.Data {
			if strings.EqualFold(p.Attributes.Name, name) {
				return i, true
			}
		}
		return 0, false
	}

	pi, ok := byName(primary)
	if !ok {
		return Players{}, fmt.Errorf("%w: player %q", ErrNotFound, primary)
	}
	oi, ok := byName(opponent)
	if !ok {
		return Players{}, fmt.Errorf("%w: player %q", ErrNotFound, opponent)
	}

	p, o := resp.Data[pi], resp.Data[oi]
	out := Players{
		Primary:       model.PlayerIdentity{ID: p.ID, Name: p.Attributes.Name},
		Opponent:      model.PlayerIdentity{ID: o.ID, Name: o.Attributes.Name},
		RecentMatches: make([]string, 0, len(p.Relationships.Matches.Data)),
	}
	for _, ref := range p.Relationships.Matches.Data {
		out.RecentMatches = append(out.RecentMatches, ref.ID)
	}
	return out, nil
}

// FetchMatch loads one match with its participants and telemetry location.
func (c *Client) FetchMatch(ctx context.Context, matchID string) (Match, error) {
	endpoint := fmt.Sprintf("%s/shards/%s/matches/%s", c.baseURL, url.PathEscape(c.shard), url.PathEscape(matchID))

	var resp matchResponse
	if err := c.getJSON(ctx, opMatch, endpoint, true, &resp); err != nil {
		return Match{}, err
	}

	m := Match{
		ID:           resp.Data.ID,
		Map:          resp.Data.Attributes.MapName,
		GameMode:     resp.Data.Attributes.GameMode,
		CreatedAt:    resp.Data.Attributes.CreatedAt,
		participants: make(map[string]string),
	}
	if m.ID == "" {
		m.ID = matchID
	}

	assets := make(map[string]bool, len(resp.Data.Relationships.Assets.Data))
	for _, ref := range resp.Data.Relationships.Assets.Data {
		assets[ref.ID] = true
	}

	for _, inc := range resp.Included {
		switch inc.Type {
		case typeParticipant:
			var attrs participantAttributes
			if err := json.Unmarshal(inc.Attributes, &attrs); err != nil {
				return Match{}, fmt.Errorf("%w: %s: participant %s: %w", ErrUpstream, opMatch, inc.ID, err)
			}
			if attrs.Stats.PlayerID != "" {
				m.participants[attrs.Stats.PlayerID] = attrs.Stats.Name
			}
		case typeAsset:
			var attrs assetAttributes
			if err := json.Unmarshal(inc.Attributes, &attrs); err != nil {
				return Match{}, fmt.Errorf("%w: %s: asset %s: %w", ErrUpstream, opMatch, inc.ID, err)
			}
			// Prefer the asset the match links to; fall back to any asset.
			if attrs.URL != "" && (m.TelemetryURL == "" || assets[inc.ID]) {
				m.TelemetryURL = attrs.URL
			}
		}
	}
	return m, nil
}

// FetchTelemetry downloads and decodes a telemetry document. The location
// is a plain URL; no API key is sent with it.
func (c *Client) FetchTelemetry(ctx context.Context, location string) ([]telemetry.Event, error) {
	var events []telemetry.Event
	err := c.do(ctx, opTelemetry, location, false, func(body io.Reader) error {
		counted := &countingReader{r: body}
		var err error
		events, err = telemetry.Decode(counted)
		if err != nil {
			return err
		}
		metrics.RecordTelemetryBytes(counted.n)
		c.logger.Debug(ctx, "telemetry downloaded",
			logger.String("size", humanize.Bytes(uint64(counted.n))),
			logger.Int("events", len(events)),
		)
		return nil
	})
	return events, err
}

// Gate returns the rate gate admitting this client's calls.
func (c *Client) Gate() *ratelimit.Gate {
	return c.gate
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, auth bool, out any) error {
	return c.do(ctx, op, endpoint, auth, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(out)
	})
}

// do admits the call through the gate, performs it and hands a successful
// body to decode. Failures are never retried.
func (c *Client) do(ctx context.Context, op, endpoint string, auth bool, decode func(io.Reader) error) error {
	notify := waitNotifierFrom(ctx)
	if err := c.gate.Acquire(ctx, func(d time.Duration) error {
		c.logger.Info(ctx, "rate limit reached, waiting",
			logger.String("operation", op),
			logger.Duration("wait", d),
		)
		if notify == nil {
			return nil
		}
		return notify(op, d)
	}); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", mediaTypeJSONAPI)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamLatency(op, time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		metrics.RecordUpstreamCall(op, "transport_error")
		return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstreamCall(op, strconv.Itoa(resp.StatusCode))
		return &StatusError{Op: op, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if err := decode(resp.Body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		metrics.RecordUpstreamCall(op, "malformed")
		return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
	}
	metrics.RecordUpstreamCall(op, "ok")
	return nil
}

// readDetail extracts the upstream's explanation from an error body.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var doc errorResponse
	if err := json.Unmarshal(raw, &doc); err == nil && len(doc.Errors) > 0 {
		e := doc.Errors[0]
		switch {
		case e.Detail != "" && e.Title != "":
			return e.Title + ": " + e.Detail
		case e.Detail != "":
			return e.Detail
		default:
			return e.Title
		}
	}
	return ""
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
