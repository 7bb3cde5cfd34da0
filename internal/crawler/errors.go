package crawler

import (
	"context"
	"errors"
)

var (
	// ErrNoLinks means the index page yielded no detail links. The upstream
	// page structure changed; there is nothing to crawl.
	ErrNoLinks = errors.New("no detail links found on index page")
	// ErrMissingField means a detail page had no title or description.
	ErrMissingField = errors.New("required field missing")
	// ErrSummarizerFailed means the summarization call failed under the
	// abort policy.
	ErrSummarizerFailed = errors.New("summarizer failed")
	// ErrChallengeAborted means a verification challenge was never cleared.
	ErrChallengeAborted = errors.New("verification challenge not cleared")
	// ErrIndexUnavailable means the index page could not be loaded.
	ErrIndexUnavailable = errors.New("index page unavailable")
)

// Policy decides whether a recoverable-looking failure ends the run.
type Policy string

// Failure policies.
const (
	PolicySkip     Policy = "skip"
	PolicyAbort    Policy = "abort"
	PolicyFallback Policy = "fallback"
)

// fatalError marks a per-entity error that must stop the whole run.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err should abort the run rather than skip the
// current entity. Navigation timeouts are per-entity and stay non-fatal;
// callers check their own context for run-level deadlines.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
