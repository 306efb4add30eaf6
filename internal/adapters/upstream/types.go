package upstream

import (
	"encoding/json"
	"time"

	"github.com/okian/crossfire/internal/domain/model"
)

// JSON:API resource types used by the upstream.
const (
	typeParticipant = "participant"
	typeAsset       = "asset"
)

// Players is the result of resolving the two names of a run.
type Players struct {
	Primary  model.PlayerIdentity
	Opponent model.PlayerIdentity
	// RecentMatches lists the primary player's match ids, most recent first.
	RecentMatches []string
}

// Match is one match's metadata and participant set.
type Match struct {
	ID        string
	Map       string
	GameMode  string
	CreatedAt time.Time
	// TelemetryURL is empty when the upstream published no telemetry.
	TelemetryURL string

	participants map[string]string // account id -> name
}

// HasParticipant reports whether the account took part in the match.
func (m Match) HasParticipant(accountID string) bool {
	_, ok := m.participants[accountID]
	return ok
}

// ParticipantCount returns the number of participants.
func (m Match) ParticipantCount() int {
	return len(m.participants)
}

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type playersResponse struct {
	Data []struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
		Relationships struct {
			Matches struct {
				Data []resourceRef `json:"data"`
			} `json:"matches"`
		} `json:"relationships"`
	} `json:"data"`
}

type matchResponse struct {
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			MapName   string    `json:"mapName"`
			GameMode  string    `json:"gameMode"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"attributes"`
		Relationships struct {
			Assets struct {
				Data []resourceRef `json:"data"`
			} `json:"assets"`
		} `json:"relationships"`
	} `json:"data"`
	Included []includedResource `json:"included"`
}

type includedResource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type participantAttributes struct {
	Stats struct {
		PlayerID string `json:"playerId"`
		Name     string `json:"name"`
	} `json:"stats"`
}

type assetAttributes struct {
	URL  string `json:"URL"`
	Name string `json:"name"`
}

// errorResponse is the JSON:API error document.
type errorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}
