package analytics

import "time"

type EventType string

const (
	EventResolve EventType = "resolve"
	EventSearch  EventType = "search"
)

// ResolutionEvent describes one resolve call. Source and EntryID are empty
// when nothing matched.
type ResolutionEvent struct {
	Type       EventType `json:"type"`
	Input      string    `json:"input"`
	Language   string    `json:"language,omitempty"`
	EntryID    string    `json:"entry_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence int       `json:"confidence"`
	Resolved   bool      `json:"resolved"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyUs  int64     `json:"latency_us"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// SearchEvent describes one free-text search call.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Returned  int       `json:"returned"`
	LatencyUs int64     `json:"latency_us"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// envelope is decoded first to dispatch on Type.
type envelope struct {
	Type EventType `json:"type"`
}

// key partitions events by input so that one query's events stay ordered.
func (e ResolutionEvent) key() string { return string(e.Type) + ":" + e.Input }

func (e SearchEvent) key() string { return string(e.Type) + ":" + e.Query }
