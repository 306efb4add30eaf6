package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/crossfire/internal/adapters/stream"
	service "github.com/okian/crossfire/internal/app"
	"github.com/okian/crossfire/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// RunIDHeader carries the correlation run id on every /correlate response.
const RunIDHeader = "X-Run-ID"

const maxRequestBody = 4 << 10

// CorrelateHandler streams correlation runs as NDJSON.
type CorrelateHandler struct {
	correlator Correlator
	logger     logger.Logger
}

// NewCorrelateHandler creates a new correlate handler.
func NewCorrelateHandler(c Correlator) *CorrelateHandler {
	return &CorrelateHandler{correlator: c, logger: logger.Named("api")}
}

type correlateRequest struct {
	Player   string `json:"player"`
	Opponent string `json:"opponent"`
}

// HandleCorrelate handles GET /correlate?player=&opponent= and POST /correlate
// with a JSON body. Rejected requests get a single error record and a 4xx
// or 503 status; accepted ones get 200 and a record per line as work
// completes. A client disconnect stops the run.
func (h *CorrelateHandler) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	runID := service.NewRunID()
	w.Header().Set(RunIDHeader, runID)
	ctx := service.WithRunID(r.Context(), runID)

	req, err := decodeCorrelateRequest(r)
	if err == nil {
		err = h.correlator.Validate(req.Player, req.Opponent)
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", "GET, POST")
		}
		h.logger.Info(ctx, "correlate request rejected",
			logger.Int("status", status),
			logger.Error(err),
		)
		h.reject(w, status, err)
		return
	}

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	queue := stream.NewQueue()
	g, gctx := errgroup.WithContext(ctx)

	// The forwarder owns the response; when it fails the group context is
	// cancelled and the run stops at its next call or record. The cancel also
	// aborts an upstream request already in flight rather than letting it
	// finish, since its result could no longer be delivered.
	g.Go(func() error {
		return stream.Forward(gctx, queue, stream.NewEncoder(w))
	})
	g.Go(func() error {
		// The run's own failure is already in the stream.
		_ = h.correlator.Run(gctx, req.Player, req.Opponent, queue)
		return nil
	})

	if err := g.Wait(); err != nil {
		h.logger.Info(ctx, "correlate stream ended early", logger.Error(err))
	}
}

func (h *CorrelateHandler) reject(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", stream.ContentType)
	w.WriteHeader(status)
	enc := stream.NewEncoder(w)
	_ = enc.Emit(context.Background(), stream.Failure(err.Error()))
	_ = enc.Close()
}

func decodeCorrelateRequest(r *http.Request) (correlateRequest, error) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		return correlateRequest{Player: q.Get("player"), Opponent: q.Get("opponent")}, nil
	case http.MethodPost:
		var req correlateRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
		}
		return req, nil
	default:
		return correlateRequest{}, fmt.Errorf("%w: %s", ErrMethodNotAllowed, r.Method)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, service.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
