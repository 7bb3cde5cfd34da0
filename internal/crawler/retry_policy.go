package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/metrics"
)

// FixedRetryPolicy retries an operation a fixed number of times with a
// constant pause between attempts.
type FixedRetryPolicy struct {
	maxAttempts int
	backoff     time.Duration
	pause       pauseController
	logger      *zap.Logger
}

// NewFixedRetryPolicy builds a policy. Non-positive attempts fall back to 3.
func NewFixedRetryPolicy(maxAttempts int, backoff time.Duration, logger *zap.Logger) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixedRetryPolicy{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		pause:       &timerPauseController{},
		logger:      logger,
	}
}

// MaxAttempts returns the configured attempt ceiling.
func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Do runs op until it succeeds or the attempts are exhausted. Attempts are
// sequential; the pause happens between attempts, never after the last one.
func (p *FixedRetryPolicy) Do(ctx context.Context, name string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		p.logger.Warn("attempt failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Error(err),
		)
		if attempt == p.maxAttempts {
			break
		}
		metrics.ObserveRetry()
		p.pause.Pause(ctx, p.backoff)
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, p.maxAttempts, lastErr)
}

// Navigate loads url in the browser under the retry policy.
func (p *FixedRetryPolicy) Navigate(ctx context.Context, browser Browser, url string, opts NavigateOptions) error {
	return p.Do(ctx, "navigate "+url, func(ctx context.Context) error {
		return browser.Navigate(ctx, url, opts)
	})
}
