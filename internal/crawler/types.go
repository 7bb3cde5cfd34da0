// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// Fixed record values that are not scraped from the page.
const (
	DefaultAuraScore = 400
	DefaultCategory  = "historic"
	DefaultPrice     = "N/A"
)

// Record is one persisted site. SourceLink doubles as the resume key.
type Record struct {
	Title       string   `json:"title"`
	AuraScore   int      `json:"aura_score"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Price       string   `json:"price"`
	Images      []string `json:"images"`
	SourceLink  string   `json:"source_link"`
}

// WorkItem is a detail-page address pending extraction in the current run.
type WorkItem struct {
	URL   string
	Index int
	Total int
}

// WaitCondition selects how long Navigate suspends after the document loads.
type WaitCondition string

// Supported wait conditions.
const (
	WaitLoad        WaitCondition = "load"
	WaitNetworkIdle WaitCondition = "networkidle"
)

// NavigateOptions bounds a single navigation.
type NavigateOptions struct {
	WaitCondition WaitCondition
	Timeout       time.Duration
}

// ExtractionState tracks where a detail page visit currently is.
type ExtractionState string

// Extraction states, in the order a visit moves through them.
const (
	StateNavigating       ExtractionState = "navigating"
	StateExtracting       ExtractionState = "extracting"
	StateAwaitingOperator ExtractionState = "awaiting_operator"
	StateExtracted        ExtractionState = "extracted"
	StateFailed           ExtractionState = "failed"
)

// RecordEvent is published after a record has been persisted.
type RecordEvent struct {
	RunID      string    `json:"run_id"`
	SourceLink string    `json:"source_link"`
	Title      string    `json:"title"`
	StoredAt   time.Time `json:"stored_at"`
}

// RunReport summarizes one orchestrator run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Started    time.Time     `json:"started_at"`
	Finished   time.Time     `json:"finished_at"`
	Discovered int           `json:"discovered"`
	Skipped    int           `json:"skipped"`
	Persisted  int           `json:"persisted"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
	SnapshotTo string        `json:"snapshot_uri,omitempty"`
}
