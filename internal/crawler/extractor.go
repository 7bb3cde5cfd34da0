package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/extract"
	"github.com/JakeFAU/historic-sites-crawler/internal/metrics"
)

// Visit is the outcome of one detail page extraction. HTML holds the last
// snapshot taken so failures can be dumped for diagnosis.
type Visit struct {
	URL       string
	State     ExtractionState
	Challenge string
	HTML      string
	Fields    extract.Fields
}

// Extractor drives a single detail page through navigation, challenge
// handling and field extraction.
type Extractor struct {
	browser  Browser
	retry    *FixedRetryPolicy
	rules    extract.Rules
	detector *ChallengeDetector
	operator Operator
	pause    pauseController
	settle   time.Duration
	opts     NavigateOptions
	logger   *zap.Logger
}

// NewExtractor builds an Extractor sharing the run's browser session.
func NewExtractor(
	browser Browser,
	retry *FixedRetryPolicy,
	rules extract.Rules,
	detector *ChallengeDetector,
	operator Operator,
	cfg Config,
	logger *zap.Logger,
) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		browser:  browser,
		retry:    retry,
		rules:    rules,
		detector: detector,
		operator: operator,
		pause:    &timerPauseController{},
		settle:   cfg.ChallengeSettle,
		opts:     cfg.Navigation,
		logger:   logger,
	}
}

// Extract visits pageURL and returns its fields. A page without a title or
// description yields the partially filled Visit and an ErrMissingField.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (Visit, error) {
	visit := Visit{URL: pageURL, State: StateNavigating}
	logger := e.logger.With(zap.String("url", pageURL))

	if err := e.retry.Navigate(ctx, e.browser, pageURL, e.opts); err != nil {
		visit.State = StateFailed
		return visit, err
	}
	html, err := e.browser.HTML(ctx)
	if err != nil {
		visit.State = StateFailed
		return visit, fmt.Errorf("read html: %w", err)
	}
	visit.HTML = html

	if marker, found := e.detector.Detect(html); found {
		visit.State = StateAwaitingOperator
		visit.Challenge = marker
		html, err = e.awaitOperator(ctx, logger, pageURL, marker)
		if err != nil {
			visit.State = StateFailed
			return visit, err
		}
		visit.HTML = html
	}

	visit.State = StateExtracting
	base := pageURL
	if current, urlErr := e.browser.URL(ctx); urlErr == nil && current != "" {
		base = current
	}
	fields, err := e.rules.Extract(visit.HTML, base)
	if err != nil {
		visit.State = StateFailed
		return visit, fmt.Errorf("extract fields: %w", err)
	}
	visit.Fields = fields

	switch {
	case fields.Title == "":
		visit.State = StateFailed
		return visit, fmt.Errorf("%w: title", ErrMissingField)
	case fields.Description == "":
		visit.State = StateFailed
		return visit, fmt.Errorf("%w: description", ErrMissingField)
	}
	visit.State = StateExtracted
	logger.Debug("page extracted",
		zap.String("title", fields.Title),
		zap.Int("images", len(fields.Images)),
	)
	return visit, nil
}

// awaitOperator blocks until a human has cleared the challenge, lets the
// page settle and returns a fresh snapshot.
func (e *Extractor) awaitOperator(ctx context.Context, logger *zap.Logger, pageURL, marker string) (string, error) {
	if e.operator == nil {
		return "", fmt.Errorf("%w: no operator configured", ErrChallengeAborted)
	}
	metrics.ObserveChallengePause()
	logger.Warn("verification challenge detected, waiting for operator",
		zap.String("marker", marker),
	)
	e.operator.Alert(ctx, pageURL)
	if err := e.operator.AwaitResume(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrChallengeAborted, err)
	}
	e.pause.Pause(ctx, e.settle)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger.Info("operator resumed, re-reading page")
	html, err := e.browser.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read html after challenge: %w", err)
	}
	return html, nil
}
