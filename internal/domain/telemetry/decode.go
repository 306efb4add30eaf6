package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrMalformed reports a telemetry document that is not an event array.
var ErrMalformed = errors.New("malformed telemetry")

type damageInfo struct {
	DamageCauserName string `json:"damageCauserName"`
}

// rawEvent is the union of every field we read off consumed tags.
type rawEvent struct {
	T                  string      `json:"_T"`
	D                  time.Time   `json:"_D"`
	Attacker           *Character  `json:"attacker"`
	Victim             *Character  `json:"victim"`
	DBNOMaker          *Character  `json:"dBNOMaker"`
	Finisher           *Character  `json:"finisher"`
	Killer             *Character  `json:"killer"`
	Damage             *float64    `json:"damage"`
	DamageCauserName   string      `json:"damageCauserName"`
	KillerDamageInfo   *damageInfo `json:"killerDamageInfo"`
	FinisherDamageInfo *damageInfo `json:"finisherDamageInfo"`
	DBNODamageInfo     *damageInfo `json:"dBNODamageInfo"`
}

// Decode reads a JSON array of events element by element, so the whole
// document never has to be held as generic maps.
func Decode(r io.Reader) ([]Event, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("%w: expected array, got %v", ErrMalformed, tok)
	}

	var events []Event
	for dec.More() {
		var raw rawEvent
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: event %d: %w", ErrMalformed, len(events), err)
		}
		events = append(events, raw.event())
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return events, nil
}

func (r *rawEvent) event() Event {
	switch r.T {
	case TagTakeDamage:
		return Damage{At: r.D, Attacker: r.Attacker, Victim: r.Victim, Amount: r.Damage, Cause: r.DamageCauserName}
	case TagMakeGroggy:
		return Incapacitation{At: r.D, Attacker: r.Attacker, Victim: r.Victim, Amount: r.Damage, Cause: r.DamageCauserName}
	case TagKillV2:
		return Kill{
			At:       r.D,
			Downer:   r.DBNOMaker,
			Finisher: r.Finisher,
			Killer:   r.Killer,
			Victim:   r.Victim,
			Cause:    firstCause(r.KillerDamageInfo, r.FinisherDamageInfo, r.DBNODamageInfo),
		}
	case TagKill:
		return Kill{At: r.D, Killer: r.Killer, Victim: r.Victim, Cause: r.DamageCauserName}
	default:
		return Ignored{At: r.D, Tag: r.T}
	}
}

func firstCause(infos ...*damageInfo) string {
	for _, info := range infos {
		if info != nil && info.DamageCauserName != "" {
			return info.DamageCauserName
		}
	}
	return ""
}
