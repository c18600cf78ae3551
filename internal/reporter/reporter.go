// Package reporter streams match progress to spectators over
// Server-Sent Events. Each connected spectator either watches a specific
// player's next match (WithPlayer) or any match at all (Any); on connect
// it replays the target match's history so far, then receives live
// updates until the match ends.
package reporter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// MatchFilter selects which matches a spectator wants to watch.
type MatchFilter struct {
	any    bool
	player string
}

// Any matches every match.
func Any() MatchFilter { return MatchFilter{any: true} }

// WithPlayer matches only matches that include the named participant.
func WithPlayer(id string) MatchFilter { return MatchFilter{player: id} }

func (f MatchFilter) matches(players []string) bool {
	if f.any {
		return true
	}
	for _, p := range players {
		if p == f.player {
			return true
		}
	}
	return false
}

type event struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

func encodeEvent(kind string, data any) ([]byte, error) {
	payload, err := json.Marshal(event{Kind: kind, Data: data})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

type matchRecord struct {
	id         string
	kind       string
	players    []string
	history    [][]byte
	spectators map[*subscriber]struct{}
}

type subscriber struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	filter  MatchFilter
	done    chan struct{}
	failed  bool
}

func (s *subscriber) send(raw []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return false
	}
	if _, err := s.w.Write(raw); err != nil {
		s.failed = true
		return false
	}
	s.flusher.Flush()
	return true
}

// Registry holds all in-flight matches and connected spectators. It is the
// single shared instance the scheduler reports into and the HTTP layer
// subscribes from.
type Registry struct {
	mu         sync.Mutex
	matches    map[string]*matchRecord
	spectators map[*subscriber]struct{}
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		matches:    make(map[string]*matchRecord),
		spectators: make(map[*subscriber]struct{}),
		logger:     logger,
	}
}

// StartMatch registers a new in-flight match and returns a MatchReporter
// scoped to it. Calling code should defer reporter.End().
func (r *Registry) StartMatch(id, kind string, players []string) *MatchReporter {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &matchRecord{id: id, kind: kind, players: players, spectators: make(map[*subscriber]struct{})}
	r.matches[id] = rec

	connectRaw, err := encodeEvent("connect", map[string]any{"kind": kind, "players": players, "history": []string{}})
	if err == nil {
		for sub := range r.spectators {
			if sub.filter.matches(players) {
				r.attachLocked(rec, sub)
				if !sub.send(connectRaw) {
					r.detachLocked(rec, sub)
				}
			}
		}
	}

	return &MatchReporter{registry: r, matchID: id}
}

func (r *Registry) attachLocked(rec *matchRecord, sub *subscriber) {
	rec.spectators[sub] = struct{}{}
}

func (r *Registry) detachLocked(rec *matchRecord, sub *subscriber) {
	delete(rec.spectators, sub)
	delete(r.spectators, sub)
}

func (r *Registry) update(matchID, kind string, data any) {
	raw, err := encodeEvent("update", map[string]any{"kind": kind, "data": data})
	if err != nil {
		r.logger.Error("reporter: failed to encode event", "match", matchID, "kind", kind, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.matches[matchID]
	if !ok {
		return
	}
	rec.history = append(rec.history, raw)

	for sub := range rec.spectators {
		if !sub.send(raw) {
			r.detachLocked(rec, sub)
		}
	}
}

func (r *Registry) end(matchID string) {
	endRaw, _ := encodeEvent("end", nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.matches[matchID]
	if !ok {
		return
	}
	for sub := range rec.spectators {
		sub.send(endRaw)
		close(sub.done)
		delete(r.spectators, sub)
	}
	delete(r.matches, matchID)
}

// ServeHTTP implements the SSE subscription endpoint. Callers register it
// under a path such as /spectate; the request's "player" query parameter
// selects WithPlayer(id), otherwise Any() is used.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var filter MatchFilter
	if player := req.URL.Query().Get("player"); player != "" {
		filter = WithPlayer(player)
	} else {
		filter = Any()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := &subscriber{w: w, flusher: flusher, filter: filter, done: make(chan struct{})}

	r.mu.Lock()
	r.spectators[sub] = struct{}{}
	for _, rec := range r.matches {
		if filter.matches(rec.players) {
			r.attachLocked(rec, sub)
			connectRaw, err := encodeEvent("connect", map[string]any{"kind": rec.kind, "players": rec.players, "history": rawHistoryStrings(rec.history)})
			if err == nil {
				sub.send(connectRaw)
				for _, h := range rec.history {
					sub.send(h)
				}
			}
			break
		}
	}
	r.mu.Unlock()

	select {
	case <-req.Context().Done():
	case <-sub.done:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.matches {
		delete(rec.spectators, sub)
	}
	delete(r.spectators, sub)
}

func rawHistoryStrings(history [][]byte) []string {
	out := make([]string, len(history))
	for i, h := range history {
		out[i] = string(h)
	}
	return out
}

// MatchReporter scopes Update/End calls to one in-flight match.
type MatchReporter struct {
	registry *Registry
	matchID  string
}

// Update publishes an "update" event whose data holds the given progress
// kind and an arbitrary JSON-serializable payload.
func (m *MatchReporter) Update(kind string, data any) {
	m.registry.update(m.matchID, kind, data)
}

// End marks the match finished and disconnects its spectators. Safe to
// call exactly once; calling it from a deferred recover() handler ensures
// spectators are released even if the referee panicked.
func (m *MatchReporter) End() {
	m.registry.end(m.matchID)
}
