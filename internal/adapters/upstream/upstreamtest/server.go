// Package upstreamtest provides an in-process fake of the statistics API
// for tests.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Player is a fake account.
type Player struct {
	ID      string
	Name    string
	Matches []string
}

// Match is a fake match. Telemetry is served verbatim when NoTelemetry is false.
type Match struct {
	ID           string
	Map          string
	CreatedAt    time.Time
	Participants []Player
	NoTelemetry  bool
	Telemetry    string
}

// Server is a fake upstream backed by httptest.Server.
type Server struct {
	*httptest.Server

	// APIKey, when set, is required as bearer token on API calls.
	APIKey string

	mu      sync.Mutex
	players map[string]Player
	matches map[string]Match
	fail    map[string]failure
	calls   []string
}

type failure struct {
	status int
	body   string
}

// NewServer starts a fake upstream. Call Close when done.
func NewServer() *Server {
	s := &Server{
		players: map[string]Player{},
		matches: map[string]Match{},
		fail:    map[string]failure{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/shards/steam/players", s.handlePlayers)
	mux.HandleFunc("/shards/steam/matches/", s.handleMatch)
	mux.HandleFunc("/telemetry/", s.handleTelemetry)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddPlayer registers an account.
func (s *Server) AddPlayer(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.Name] = p
}

// AddMatch registers a match.
func (s *Server) AddMatch(m Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

// Fail makes requests whose path starts with prefix answer status and body.
func (s *Server) Fail(prefix string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[prefix] = failure{status: status, body: body}
}

// Calls returns the request paths served so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallsWithPrefix counts served requests under prefix.
func (s *Server) CallsWithPrefix(prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) record(w http.ResponseWriter, r *http.Request, auth bool) bool {
	s.mu.Lock()
	s.calls = append(s.calls, r.URL.Path)
	var hit *failure
	for prefix, f := range s.fail {
		if strings.HasPrefix(r.URL.Path, prefix) {
			hit = &f
		}
	}
	key := s.APIKey
	s.mu.Unlock()

	if auth && key != "" && r.Header.Get("Authorization") != "Bearer "+key {
		writeErrors(w, http.StatusUnauthorized, "Unauthorized", "API key invalid or missing")
		return false
	}
	if hit != nil {
		w.WriteHeader(hit.status)
		_, _ = w.Write([]byte(hit.body))
		return false
	}
	return true
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if !s.record(w, r, true) {
		return
	}
	names := strings.Split(r.URL.Query().Get("filter[playerNames]"), ",")

	s.mu.Lock()
	var data []map[string]any
	for _, name := range names {
		p, ok := s.players[name]
		if !ok {
			continue
		}
		refs := make([]map[string]string, 0, len(p.Matches))
		for _, id := range p.Matches {
			refs = append(refs, map[string]string{"type": "match", "id": id})
		}
		data = append(data, map[string]any{
			"type":       "player",
			"id":         p.ID,
			"attributes": map[string]any{"name": p.Name, "shardId": "steam"},
			"relationships": map[string]any{
				"matches": map[string]any{"data": refs},
			},
		})
	}
	s.mu.Unlock()

	if len(data) == 0 {
		writeErrors(w, http.StatusNotFound, "Not Found", "No Players Found Matching Criteria")
		return
	}
	writeJSON(w, map[string]any{"data": data})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if !s.record(w, r, true) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/shards/steam/matches/")

	s.mu.Lock()
	m, ok := s.matches[id]
	s.mu.Unlock()
	if !ok {
		writeErrors(w, http.StatusNotFound, "Not Found", "No match found for ID "+id)
		return
	}

	var included []map[string]any
	for i, p := range m.Participants {
		included = append(included, map[string]any{
			"type": "participant",
			"id":   fmt.Sprintf("part-%d", i),
			"attributes": map[string]any{
				"stats": map[string]any{"playerId": p.ID, "name": p.Name},
			},
		})
	}
	var assets []map[string]string
	if !m.NoTelemetry {
		assets = append(assets, map[string]string{"type": "asset", "id": "asset-" + m.ID})
		included = append(included, map[string]any{
			"type": "asset",
			"id":   "asset-" + m.ID,
			"attributes": map[string]any{
				"name": "telemetry",
				"URL":  s.URL + "/telemetry/" + m.ID,
			},
		})
	}

	writeJSON(w, map[string]any{
		"data": map[string]any{
			"type": "match",
			"id":   m.ID,
			"attributes": map[string]any{
				"mapName":   m.Map,
				"gameMode":  "squad-fpp",
				"createdAt": m.CreatedAt.UTC().Format(time.RFC3339),
			},
			"relationships": map[string]any{
				"assets": map[string]any{"data": assets},
			},
		},
		"included": included,
	})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !s.record(w, r, false) {
		return
	}
	if r.Header.Get("Authorization") != "" {
		http.Error(w, "telemetry is public", http.StatusBadRequest)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/telemetry/")

	s.mu.Lock()
	m, ok := s.matches[id]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	body := m.Telemetry
	if body == "" {
		body = "[]"
	}
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"title": title, "detail": detail}},
	})
}

// DamageEvent renders a LogPlayerTakeDamage record.
func DamageEvent(at time.Time, attacker, victim Player, damage float64, cause string) string {
	return fmt.Sprintf(`{"_T":"LogPlayerTakeDamage","_D":%q,"attacker":{"accountId":%q,"name":%q},"victim":{"accountId":%q,"name":%q},"damage":%g,"damageCauserName":%q}`,
		at.UTC().Format(time.RFC3339Nano), attacker.ID, attacker.Name, victim.ID, victim.Name, damage, cause)
}

// Telemetry joins rendered records into a document.
func Telemetry(events ...string) string {
	return "[" + strings.Join(events, ",") + "]"
}
