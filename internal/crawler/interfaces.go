package crawler

import (
	"context"
	"io"
	"time"
)

// Browser is the single browsing session reused for every page of a run.
type Browser interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Close() error
}

// RecordStore persists completed records one at a time and reports which
// source links it already holds.
type RecordStore interface {
	Append(ctx context.Context, record Record) error
	Keys(ctx context.Context) (map[string]struct{}, error)
	Close() error
}

// Summarizer shortens a description to at most two sentences.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Operator alerts a human and waits for them to clear a verification
// challenge in the browser.
type Operator interface {
	Alert(ctx context.Context, url string)
	AwaitResume(ctx context.Context) error
}

// Pacer spaces out detail-page visits.
type Pacer interface {
	Wait(ctx context.Context) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
