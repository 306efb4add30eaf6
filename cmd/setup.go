package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/okian/crossfire/internal/adapters/upstream"
	service "github.com/okian/crossfire/internal/app"
	"github.com/okian/crossfire/internal/config"
	"github.com/okian/crossfire/internal/domain/ratelimit"
	"github.com/okian/crossfire/pkg/logger"
)

const envConfigPath = "CROSSFIRE_CONFIG"

// loadConfig initialises logging, loads configuration and applies the
// configured log format and level. Logs go to logOut.
func loadConfig(ctx context.Context, logOut io.Writer) (*config.Config, error) {
	if err := logger.Init(logger.WithOutput(logOut)); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(logOut)); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		logger.SetLevel(slog.LevelInfo)
	}
	return cfg, nil
}

// newCorrelator builds the process-wide correlator. Every run it serves
// shares one rate gate.
func newCorrelator(cfg *config.Config) (*service.Correlator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	gate := ratelimit.New(
		ratelimit.WithQuota(cfg.RateLimitRequests),
		ratelimit.WithWindow(cfg.RateLimitWindow),
	)
	client := upstream.NewClient(
		upstream.WithAPIKey(cfg.APIKey),
		upstream.WithBaseURL(cfg.APIBaseURL),
		upstream.WithShard(cfg.Shard),
		upstream.WithTimeout(cfg.RequestTimeout),
		upstream.WithGate(gate),
	)
	return service.New(client,
		service.WithLocation(loc),
		service.WithMatchLimit(cfg.MatchLimit),
		service.WithCredentialCheck(cfg.RequireCredential),
	), nil
}
