package analytics

import "time"

type EventType string

const (
	EventRank         EventType = "rank"
	EventTableRebuild EventType = "table_rebuild"
)

// Mode names the ranking operation behind a RankEvent.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeSet    Mode = "set"
	ModePrompt Mode = "prompt"
)

// RankEvent describes one answered ranking query. Query holds the film ids
// for single and set queries and the prompt text for prompt queries.
type RankEvent struct {
	Type      EventType `json:"type"`
	Mode      Mode      `json:"mode"`
	Query     []string  `json:"query"`
	K         int       `json:"k"`
	Returned  int       `json:"returned"`
	TopDocID  string    `json:"top_doc_id,omitempty"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// TableEvent describes one similarity table build.
type TableEvent struct {
	Type      EventType `json:"type"`
	Documents int       `json:"documents"`
	Pairs     int       `json:"pairs"`
	Threshold float64   `json:"threshold"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
