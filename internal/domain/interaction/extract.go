// Package interaction selects the telemetry events in which two given
// players were the two parties.
package interaction

import (
	"time"

	"github.com/okian/crossfire/internal/domain/model"
	"github.com/okian/crossfire/internal/domain/telemetry"
)

// Extract returns, in input order, the damage, incapacitation and kill
// events between a and b in either direction. Everything else is dropped.
func Extract(events []telemetry.Event, a, b model.PlayerIdentity) []model.Interaction {
	p := pair{a: a.ID, b: b.ID}
	out := make([]model.Interaction, 0)
	for _, ev := range events {
		switch e := ev.(type) {
		case telemetry.Damage:
			if p.matches(e.Attacker.ID(), e.Victim.ID()) {
				out = append(out, attack(model.KindDamage, e.At, e.Attacker, e.Victim, e.Amount, e.Cause))
			}
		case telemetry.Incapacitation:
			if p.matches(e.Attacker.ID(), e.Victim.ID()) {
				out = append(out, attack(model.KindIncapacitation, e.At, e.Attacker, e.Victim, e.Amount, e.Cause))
			}
		case telemetry.Kill:
			if p.matchesKill(e) {
				out = append(out, attack(model.KindKill, e.At, e.Actor(), e.Victim, nil, e.Cause))
			}
		}
	}
	return out
}

type pair struct {
	a, b string
}

// matches is direction-insensitive. It never matches an empty id or an
// event a player caused to themselves.
func (p pair) matches(actor, victim string) bool {
	if p.a == "" || p.b == "" || actor == "" || victim == "" || actor == victim {
		return false
	}
	return (actor == p.a && victim == p.b) || (actor == p.b && victim == p.a)
}

// matchesKill tests every actor role, not only the one reported.
func (p pair) matchesKill(e telemetry.Kill) bool {
	for _, c := range e.Actors() {
		if p.matches(c.ID(), e.Victim.ID()) {
			return true
		}
	}
	return false
}

func attack(kind model.InteractionKind, at time.Time, actor, victim *telemetry.Character, amount *float64, cause string) model.Interaction {
	return model.Interaction{
		Type:      kind,
		Timestamp: at,
		Details: model.Details{
			Attacker: actor.DisplayName(),
			Victim:   victim.DisplayName(),
			Damage:   amount,
			Cause:    cause,
		},
	}
}
