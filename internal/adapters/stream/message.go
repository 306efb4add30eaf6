// Package stream carries pipeline progress and results from the correlator
// to its consumer as an ordered sequence of records.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/okian/crossfire/internal/domain/model"
)

// Kind tags a Message.
type Kind int

// Message kinds. Done and Failure are terminal.
const (
	KindProgress Kind = iota + 1
	KindMatch
	KindDone
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindMatch:
		return "match"
	case KindDone:
		return "matches"
	case KindFailure:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one record of the protocol. Only the field matching Kind is set.
type Message struct {
	Kind  Kind
	Text  string              // progress or error text
	Match *model.MatchSummary // KindMatch only
}

// Progress builds an informational record.
func Progress(format string, args ...any) Message {
	return Message{Kind: KindProgress, Text: fmt.Sprintf(format, args...)}
}

// Match builds a result record.
func Match(s model.MatchSummary) Message {
	return Message{Kind: KindMatch, Match: &s}
}

// Done builds the completion marker.
func Done() Message {
	return Message{Kind: KindDone}
}

// Failure builds the terminal error record.
func Failure(text string) Message {
	return Message{Kind: KindFailure, Text: text}
}

// Terminal reports whether no record may follow m.
func (m Message) Terminal() bool {
	return m.Kind == KindDone || m.Kind == KindFailure
}

// MarshalJSON renders the single-key object used on the wire.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindProgress:
		return json.Marshal(struct {
			Progress string `json:"progress"`
		}{m.Text})
	case KindMatch:
		if m.Match == nil {
			return nil, fmt.Errorf("%w: match record without summary", ErrParse)
		}
		return json.Marshal(struct {
			Match *model.MatchSummary `json:"match"`
		}{m.Match})
	case KindDone:
		return []byte(`{"matches":[]}`), nil
	case KindFailure:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{m.Text})
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrParse, m.Kind)
	}
}

// UnmarshalJSON accepts exactly one of the four record keys.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(fields) != 1 {
		return fmt.Errorf("%w: expected one key, got %d", ErrParse, len(fields))
	}

	for key, raw := range fields {
		switch key {
		case "progress", "error":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrParse, key, err)
			}
			kind := KindProgress
			if key == "error" {
				kind = KindFailure
			}
			*m = Message{Kind: kind, Text: text}
		case "match":
			var s model.MatchSummary
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("%w: match: %w", ErrParse, err)
			}
			*m = Match(s)
		case "matches":
			if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
				return fmt.Errorf("%w: matches must be an array", ErrParse)
			}
			*m = Done()
		default:
			return fmt.Errorf("%w: unknown key %q", ErrParse, key)
		}
	}
	return nil
}
