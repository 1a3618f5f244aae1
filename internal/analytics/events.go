// Package analytics collects match and reload events, ships them through
// Kafka and aggregates them into service-level statistics.
package analytics

import "time"

type EventType string

const (
	EventMatch  EventType = "match"
	EventReload EventType = "reload"
)

// Match outcomes, also used as metric labels.
const (
	OutcomeOK          = "ok"
	OutcomeEmptyQuery  = "empty_query"
	OutcomeNoSuccessor = "no_successor"
	OutcomeEmptyCorpus = "empty_corpus"
	OutcomeNotFound    = "corpus_not_found"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

// MatchEvent describes one answered (or rejected) query.
type MatchEvent struct {
	Type        EventType `json:"type"`
	Corpus      string    `json:"corpus"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Outcome     string    `json:"outcome"`
	MatchedID   int       `json:"matched_id"`
	SelectedID  int       `json:"selected_id"`
	Score       float64   `json:"score"`
	TieSize     int       `json:"tie_size"`
	Alternating bool      `json:"alternating"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyUs   int64     `json:"latency_us"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// ReloadEvent describes one corpus (re)load.
type ReloadEvent struct {
	Type       EventType `json:"type"`
	Corpus     string    `json:"corpus"`
	Status     string    `json:"status"`
	Documents  int       `json:"documents"`
	Vocabulary int       `json:"vocabulary"`
	Generation uint64    `json:"generation"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker accepts events for delivery or aggregation.
type Tracker interface {
	Track(key string, event any)
}

// Discard is a Tracker that drops every event.
type Discard struct{}

func (Discard) Track(string, any) {}

// Tee fans every event out to each of its trackers in order.
type Tee []Tracker

func (t Tee) Track(key string, event any) {
	for _, tr := range t {
		tr.Track(key, event)
	}
}
