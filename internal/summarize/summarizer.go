// Package summarize condenses scraped descriptions into two sentences using an
// external summarization endpoint, with a local fallback.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
	"github.com/JakeFAU/historic-sites-crawler/internal/metrics"
)

const (
	// Instruction is sent verbatim with every summarization request.
	Instruction = "Summarize in exactly two simple sentences."
	// MinLength is the trimmed length, in characters, below which text is
	// returned as-is.
	MinLength = 20
	// EmptyDescription replaces a blank description.
	EmptyDescription = "No description available."
)

// Client performs the remote summarization call.
type Client interface {
	Summarize(ctx context.Context, instruction, text string) (string, error)
}

// Adapter applies the short-text bypass and failure policy around a Client.
type Adapter struct {
	client Client
	policy crawler.Policy
	logger *zap.Logger
}

var _ crawler.Summarizer = (*Adapter)(nil)

// NewAdapter validates the policy and wires the client. A nil client is
// replaced by Noop.
func NewAdapter(client Client, policy crawler.Policy, logger *zap.Logger) (*Adapter, error) {
	switch policy {
	case "":
		policy = crawler.PolicyFallback
	case crawler.PolicyFallback, crawler.PolicyAbort:
	default:
		return nil, fmt.Errorf("summarizer.failure_policy must be %q or %q", crawler.PolicyFallback, crawler.PolicyAbort)
	}
	if client == nil {
		client = Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, policy: policy, logger: logger}, nil
}

// Summarize returns a summary of text. Short text skips the remote call.
func (a *Adapter) Summarize(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		metrics.ObserveSummary("passthrough")
		return EmptyDescription, nil
	}
	if utf8.RuneCountInString(trimmed) < MinLength {
		metrics.ObserveSummary("passthrough")
		return text, nil
	}

	summary, err := a.client.Summarize(ctx, Instruction, trimmed)
	if err == nil {
		summary = strings.TrimSpace(summary)
		if summary != "" {
			metrics.ObserveSummary("model")
			return summary, nil
		}
		err = errors.New("empty summary")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if a.policy == crawler.PolicyAbort {
		return "", fmt.Errorf("%w: %w", crawler.ErrSummarizerFailed, err)
	}
	if !errors.Is(err, ErrNotConfigured) {
		a.logger.Warn("summarization failed, using first sentences", zap.Error(err))
	}
	metrics.ObserveSummary("fallback")
	return FirstSentences(trimmed, 2), nil
}

// FirstSentences keeps the first n sentences of text, splitting on ". ".
// The result always ends with a single period.
func FirstSentences(text string, n int) string {
	parts := strings.Split(strings.TrimSpace(text), ". ")
	if len(parts) > n {
		parts = parts[:n]
	}
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), ".")
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return EmptyDescription
	}
	return strings.Join(kept, ". ") + "."
}
