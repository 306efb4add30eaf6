package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for upstream errors.
var (
	// ErrNotFound means a requested player is unknown to the upstream.
	ErrNotFound = errors.New("not found")
	// ErrUpstream covers failed calls and payloads we cannot read.
	ErrUpstream = errors.New("upstream error")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Op     string
	Status int
	// Detail is the upstream's own explanation, when it sent one.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: upstream returned %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// Unwrap maps a missing player to ErrNotFound and everything else to ErrUpstream.
func (e *StatusError) Unwrap() error {
	if e.Op == opPlayers && e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrUpstream
}
