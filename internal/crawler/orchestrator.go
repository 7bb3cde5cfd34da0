package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/clock/system"
	"github.com/JakeFAU/historic-sites-crawler/internal/extract"
	"github.com/JakeFAU/historic-sites-crawler/internal/geo"
	"github.com/JakeFAU/historic-sites-crawler/internal/metrics"
)

// Dependencies groups the collaborators an Orchestrator drives. Browser,
// Store and Summarizer are required; the rest are optional.
type Dependencies struct {
	Browser    Browser
	Store      RecordStore
	Summarizer Summarizer
	Operator   Operator
	Pacer      Pacer
	Dumps      BlobStore
	Snapshots  BlobStore
	Publisher  Publisher
	Clock      Clock
	IDs        IDGenerator
}

// Orchestrator runs the discover, resume, extract and persist pipeline
// over a single browsing session.
type Orchestrator struct {
	cfg        Config
	deps       Dependencies
	discoverer *Discoverer
	extractor  *Extractor
	logger     *zap.Logger
}

// itemError tags a per-entity failure with the pipeline stage it came from.
type itemError struct {
	stage string
	err   error
}

func (e *itemError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *itemError) Unwrap() error { return e.err }

// NewOrchestrator validates cfg and wires the pipeline.
func NewOrchestrator(cfg Config, rules extract.Rules, deps Dependencies, logger *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if deps.Browser == nil {
		return nil, errors.New("orchestrator requires a browser")
	}
	if deps.Store == nil {
		return nil, errors.New("orchestrator requires a record store")
	}
	if deps.Summarizer == nil {
		return nil, errors.New("orchestrator requires a summarizer")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := NewFixedRetryPolicy(cfg.MaxAttempts, cfg.RetryBackoff, logger)
	return &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		discoverer: NewDiscoverer(deps.Browser, retry, rules, cfg.Navigation, logger),
		extractor: NewExtractor(
			deps.Browser,
			retry,
			rules,
			NewChallengeDetector(cfg.ChallengeMarkers),
			deps.Operator,
			cfg,
			logger,
		),
		logger: logger,
	}, nil
}

// Run performs one full crawl. Per-entity failures are logged and skipped;
// structural failures and cancellation end the run with an error. The
// report is filled in as far as the run got either way.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: o.newRunID(), Started: o.deps.Clock.Now()}
	logger := o.logger.With(zap.String("run_id", report.RunID))
	logger.Info("crawl run starting",
		zap.String("index_url", o.cfg.IndexURL),
		zap.Strings("challenge_markers", o.extractor.detector.Markers()),
	)

	finish := func(err error) (RunReport, error) {
		report.Finished = o.deps.Clock.Now()
		report.Duration = report.Finished.Sub(report.Started)
		status := "succeeded"
		if err != nil {
			status = "failed"
			logger.Error("crawl run aborted",
				zap.Int("persisted", report.Persisted),
				zap.Int("failed", report.Failed),
				zap.Error(err),
			)
		}
		metrics.ObserveRun(status, report.Duration)
		return report, err
	}

	links, err := o.discoverer.Discover(ctx, o.cfg.IndexURL)
	if err != nil {
		return finish(fmt.Errorf("discover: %w", err))
	}
	report.Discovered = len(links)

	done, err := o.deps.Store.Keys(ctx)
	if err != nil {
		return finish(fmt.Errorf("load resume set: %w", err))
	}
	pending := FilterPending(links, done)
	report.Skipped = report.Discovered - len(pending)
	logger.Info("resume set loaded",
		zap.Int("discovered", report.Discovered),
		zap.Int("already_persisted", report.Skipped),
		zap.Int("pending", len(pending)),
	)

	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if o.deps.Pacer != nil {
			if err := o.deps.Pacer.Wait(ctx); err != nil {
				return finish(fmt.Errorf("pacing: %w", err))
			}
		}
		itemLogger := logger.With(
			zap.String("url", item.URL),
			zap.Int("index", item.Index),
			zap.Int("total", item.Total),
		)
		err := o.process(ctx, itemLogger, report.RunID, item)
		if err == nil {
			report.Persisted++
			continue
		}
		if IsFatal(err) || ctx.Err() != nil {
			return finish(err)
		}
		report.Failed++
		metrics.ObserveEntityFailed(item.URL, failureReason(err))
		itemLogger.Warn("skipping entity", zap.Error(err))
	}

	report.SnapshotTo = o.uploadSnapshot(ctx, logger)
	logger.Info("crawl run complete",
		zap.Int("discovered", report.Discovered),
		zap.Int("skipped", report.Skipped),
		zap.Int("persisted", report.Persisted),
		zap.Int("failed", report.Failed),
	)
	return finish(nil)
}

// process handles one work item end to end. A nil return means the record
// is durably stored.
func (o *Orchestrator) process(ctx context.Context, logger *zap.Logger, runID string, item WorkItem) error {
	logger.Info("extracting entity")
	visit, err := o.extractor.Extract(ctx, item.URL)
	if err != nil {
		if errors.Is(err, ErrMissingField) {
			if o.cfg.MissingFieldPolicy == PolicyAbort {
				o.dump(ctx, logger, visit)
				return fatal(&itemError{stage: "extract", err: err})
			}
			return &itemError{stage: "extract", err: err}
		}
		if errors.Is(err, ErrChallengeAborted) {
			return &itemError{stage: "challenge", err: err}
		}
		return &itemError{stage: "navigate", err: err}
	}

	lat, lon := geo.Parse(visit.Fields.Coordinates)
	if !geo.Valid(lat, lon) {
		logger.Debug("coordinates unavailable", zap.String("raw", visit.Fields.Coordinates))
	}

	summary, err := o.deps.Summarizer.Summarize(ctx, visit.Fields.Description)
	if err != nil {
		if errors.Is(err, ErrSummarizerFailed) {
			return fatal(&itemError{stage: "summarize", err: err})
		}
		return &itemError{stage: "summarize", err: err}
	}

	record := Record{
		Title:       visit.Fields.Title,
		AuraScore:   DefaultAuraScore,
		Category:    DefaultCategory,
		Description: summary,
		Latitude:    lat,
		Longitude:   lon,
		Price:       DefaultPrice,
		Images:      visit.Fields.Images,
		SourceLink:  item.URL,
	}
	if err := o.deps.Store.Append(ctx, record); err != nil {
		return &itemError{stage: "persist", err: err}
	}
	metrics.ObserveRecordPersisted()
	logger.Info("record persisted", zap.String("title", record.Title))

	o.publish(ctx, logger, runID, record)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, runID string, record Record) {
	if o.deps.Publisher == nil || o.cfg.Topic == "" {
		return
	}
	event := RecordEvent{
		RunID:      runID,
		SourceLink: record.SourceLink,
		Title:      record.Title,
		StoredAt:   o.deps.Clock.Now().UTC(),
	}
	msgID, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, event)
	if err != nil {
		logger.Warn("failed to publish record event", zap.Error(err))
		return
	}
	logger.Debug("record event published", zap.String("message_id", msgID))
}

// dump writes the page snapshot that triggered an abort so the selector
// drift can be inspected afterwards.
func (o *Orchestrator) dump(ctx context.Context, logger *zap.Logger, visit Visit) {
	if visit.HTML == "" {
		return
	}
	if o.deps.Dumps == nil {
		logger.Error("page dump unavailable, no dump store configured",
			zap.Int("html_bytes", len(visit.HTML)),
		)
		return
	}
	uri, err := o.deps.Dumps.PutObject(ctx, dumpPath(o.cfg.DumpPrefix, visit.URL),
		"text/html; charset=utf-8", strings.NewReader(visit.HTML))
	if err != nil {
		logger.Error("failed to write page dump", zap.Error(err))
		return
	}
	logger.Error("page dumped for inspection", zap.String("dump", uri))
}

func (o *Orchestrator) uploadSnapshot(ctx context.Context, logger *zap.Logger) string {
	if o.deps.Snapshots == nil || o.cfg.SnapshotSource == "" || o.cfg.SnapshotPath == "" {
		return ""
	}
	f, err := os.Open(o.cfg.SnapshotSource)
	if err != nil {
		logger.Warn("snapshot source unreadable", zap.Error(err))
		return ""
	}
	defer func() { _ = f.Close() }()
	uri, err := o.deps.Snapshots.PutObject(ctx, o.cfg.SnapshotPath, "text/csv", f)
	if err != nil {
		logger.Warn("snapshot upload failed", zap.Error(err))
		return ""
	}
	logger.Info("snapshot uploaded", zap.String("uri", uri))
	return uri
}

func (o *Orchestrator) newRunID() string {
	if o.deps.IDs != nil {
		if id, err := o.deps.IDs.NewID(); err == nil {
			return id
		}
	}
	return o.deps.Clock.Now().UTC().Format("20060102T150405.000000000Z")
}

// Close ends the browsing session and releases the record store.
func (o *Orchestrator) Close() error {
	return errors.Join(o.deps.Browser.Close(), o.deps.Store.Close())
}

func failureReason(err error) string {
	var ie *itemError
	if errors.As(err, &ie) {
		if ie.stage == "extract" && errors.Is(err, ErrMissingField) {
			return "missing_field"
		}
		return ie.stage
	}
	return "unknown"
}
