// Package model contains domain models passed between layers.
package model

import "time"

// InteractionKind tags how two players interacted.
type InteractionKind string

// Interaction kinds reported to callers.
const (
	KindDamage         InteractionKind = "damage"
	KindIncapacitation InteractionKind = "incapacitation"
	KindKill           InteractionKind = "kill"
)

// PlayerIdentity is an upstream account id plus its display name.
type PlayerIdentity struct {
	ID   string
	Name string
}

// Details describes one interaction. Damage and Cause are omitted when the
// upstream event did not carry them.
type Details struct {
	Attacker string   `json:"attacker"`
	Victim   string   `json:"victim"`
	Damage   *float64 `json:"damage,omitempty"`
	Cause    string   `json:"damageCause,omitempty"`
}

// Interaction is a qualifying telemetry event between the two players.
type Interaction struct {
	Type      InteractionKind `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Details   Details         `json:"details"`
}

// MatchSummary is the per-match result streamed to callers.
type MatchSummary struct {
	ID           string        `json:"id"`
	Map          string        `json:"map"`
	StartedAt    string        `json:"startedAt"`
	Interactions []Interaction `json:"interactions"`
}

// StartedAtLayout formats MatchSummary.StartedAt in the display zone.
const StartedAtLayout = "2006-01-02 15:04:05 MST"

// NewMatchSummary builds a summary with the start time rendered in loc.
// A nil interaction slice is normalized to empty so it encodes as [].
func NewMatchSummary(id, mapName string, started time.Time, loc *time.Location, interactions []Interaction) MatchSummary {
	if interactions == nil {
		interactions = []Interaction{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return MatchSummary{
		ID:           id,
		Map:          mapName,
		StartedAt:    started.In(loc).Format(StartedAtLayout),
		Interactions: interactions,
	}
}
