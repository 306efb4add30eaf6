// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/crossfire/internal/adapters/stream"
	"github.com/okian/crossfire/pkg/logger"
)

// Correlator is the run engine behind /correlate.
type Correlator interface {
	// Validate rejects a request before any record is streamed.
	Validate(player, opponent string) error
	// Run streams a correlation into sink and closes it.
	Run(ctx context.Context, player, opponent string, sink stream.Sink) error
}

// Server wires HTTP routes for the correlation API.
type Server struct {
	healthHandler    *HealthHandler
	correlateHandler *CorrelateHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(correlator Correlator, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		correlateHandler: NewCorrelateHandler(correlator),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger used by the request handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.correlateHandler.logger = l
		}
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/correlate", MetricsMiddleware(s.correlateHandler.HandleCorrelate, "correlate"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
