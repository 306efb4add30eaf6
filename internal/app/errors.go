package service

import (
	"errors"

	"github.com/okian/crossfire/internal/adapters/upstream"
)

// Sentinel error kinds of a correlation run.
var (
	// ErrConfiguration means the service cannot talk to the upstream at all.
	ErrConfiguration = errors.New("service not configured")
	// ErrInvalidInput means a player name is missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means a player name did not resolve.
	ErrNotFound = upstream.ErrNotFound
	// ErrUpstream covers failed or unreadable upstream calls.
	ErrUpstream = upstream.ErrUpstream
)
