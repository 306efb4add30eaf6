// Package telemetry decodes the per-match event log published by the
// upstream into a closed set of event variants.
package telemetry

import (
	"time"
)

// Upstream type tags of the events we consume.
const (
	TagTakeDamage = "LogPlayerTakeDamage"
	TagMakeGroggy = "LogPlayerMakeGroggy"
	TagKillV2     = "LogPlayerKillV2"
	TagKill       = "LogPlayerKill"
)

// Character identifies a player inside an event.
type Character struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
}

// Present reports whether the role was filled in the event.
func (c *Character) Present() bool {
	return c != nil && (c.AccountID != "" || c.Name != "")
}

// ID returns the account id, or "" for an absent role.
func (c *Character) ID() string {
	if c == nil {
		return ""
	}
	return c.AccountID
}

// DisplayName returns the name, or "" for an absent role.
func (c *Character) DisplayName() string {
	if c == nil {
		return ""
	}
	return c.Name
}

// Event is one decoded telemetry record. The concrete type is one of
// Damage, Incapacitation, Kill or Ignored.
type Event interface {
	Time() time.Time
	isEvent()
}

// Damage is a LogPlayerTakeDamage record.
type Damage struct {
	At       time.Time
	Attacker *Character
	Victim   *Character
	Amount   *float64
	Cause    string
}

// Incapacitation is a LogPlayerMakeGroggy record (the victim is knocked down).
type Incapacitation struct {
	At       time.Time
	Attacker *Character
	Victim   *Character
	Amount   *float64
	Cause    string
}

// Kill is a LogPlayerKillV2 (or legacy LogPlayerKill) record. Any of the
// three actor roles may be absent.
type Kill struct {
	At       time.Time
	Downer   *Character
	Finisher *Character
	Killer   *Character
	Victim   *Character
	Cause    string
}

// Ignored stands for every tag this package does not interpret.
type Ignored struct {
	At  time.Time
	Tag string
}

func (e Damage) Time() time.Time         { return e.At }
func (e Incapacitation) Time() time.Time { return e.At }
func (e Kill) Time() time.Time           { return e.At }
func (e Ignored) Time() time.Time        { return e.At }

func (Damage) isEvent()         {}
func (Incapacitation) isEvent() {}
func (Kill) isEvent()           {}
func (Ignored) isEvent()        {}

// Actor returns the first present of downer, finisher and killer.
func (e Kill) Actor() *Character {
	for _, c := range e.Actors() {
		if c.Present() {
			return c
		}
	}
	return nil
}

// Actors returns the three actor roles in precedence order; entries may be nil.
func (e Kill) Actors() [3]*Character {
	return [3]*Character{e.Downer, e.Finisher, e.Killer}
}
