package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testIndex = "https://sites.example/list"

func newTestOrchestrator(t *testing.T, browser *fakeBrowser, store *fakeStore, deps Dependencies, cfg Config, logger *zap.Logger) *Orchestrator {
	t.Helper()
	deps.Browser = browser
	deps.Store = store
	if deps.Summarizer == nil {
		deps.Summarizer = echoSummarizer{}
	}
	deps.Clock = fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	o, err := NewOrchestrator(cfg, testRules(), deps, logger)
	require.NoError(t, err)
	o.extractor.pause = &recordingPause{}
	o.extractor.retry.pause = &recordingPause{}
	return o
}

func threeSitePages() map[string]string {
	return map[string]string{
		testIndex:                      indexPage("/sites/a", "/sites/b", "#top", "list#top", "/sites/c", "/sites/a"),
		"https://sites.example/sites/a": detailPage("Alpha"),
		"https://sites.example/sites/b": detailPage("Bravo"),
		"https://sites.example/sites/c": detailPage("Charlie"),
	}
}

func TestOrchestratorPersistsEveryDiscoveredSite(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	store := &fakeStore{}
	o := newTestOrchestrator(t, browser, store, Dependencies{}, testConfig(testIndex), nil)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 3, report.Persisted)
	assert.Equal(t, 0, report.Failed)

	require.Len(t, store.records, 3)
	first := store.records[0]
	assert.Equal(t, "Alpha", first.Title)
	assert.Equal(t, DefaultAuraScore, first.AuraScore)
	assert.Equal(t, DefaultCategory, first.Category)
	assert.Equal(t, DefaultPrice, first.Price)
	assert.Equal(t, "summary of Alpha is an ancient place.", first.Description)
	assert.InDelta(t, 34.39, first.Latitude, 1e-9)
	assert.InDelta(t, 64.51, first.Longitude, 1e-9)
	assert.Equal(t, []string{"https://sites.example/img/Alpha.jpg"}, first.Images)
	assert.Equal(t, "https://sites.example/sites/a", first.SourceLink)
}

func TestOrchestratorIsolatesEntityFailures(t *testing.T) {
	t.Parallel()
	pages := threeSitePages()
	pages["https://sites.example/sites/b"] = "<html><body><p>nothing here</p></body></html>"
	browser := newFakeBrowser(pages)
	store := &fakeStore{}
	core, logs := observer.New(zapcore.WarnLevel)
	o := newTestOrchestrator(t, browser, store, Dependencies{}, testConfig(testIndex), zap.New(core))

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Persisted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, store.records, 2)
	assert.Equal(t, "Alpha", store.records[0].Title)
	assert.Equal(t, "Charlie", store.records[1].Title)

	skipped := logs.FilterMessage("skipping entity").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "https://sites.example/sites/b", skipped[0].ContextMap()["url"])
}

func TestOrchestratorResumeIsIdempotent(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	store := &fakeStore{}
	o := newTestOrchestrator(t, browser, store, Dependencies{}, testConfig(testIndex), nil)

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Persisted)
	assert.Equal(t, 3, report.Skipped)
	assert.Len(t, store.records, 3)
	assert.Equal(t, 1, browser.visits["https://sites.example/sites/a"])
}

func TestOrchestratorSkipsAlreadyPersisted(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	store := &fakeStore{records: []Record{
		{SourceLink: "https://sites.example/sites/a"},
		{SourceLink: "https://sites.example/sites/b"},
	}}
	o := newTestOrchestrator(t, browser, store, Dependencies{}, testConfig(testIndex), nil)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Persisted)
	assert.Zero(t, browser.visits["https://sites.example/sites/a"])
	assert.Equal(t, "Charlie", store.records[2].Title)
}

func TestOrchestratorAbortsWhenIndexFails(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	browser.failures[testIndex] = 10
	store := &fakeStore{}
	o := newTestOrchestrator(t, browser, store, Dependencies{}, testConfig(testIndex), nil)

	_, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Equal(t, 3, browser.visits[testIndex])
	assert.Empty(t, store.records)
}

func TestOrchestratorAbortsWhenIndexHasNoLinks(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(map[string]string{testIndex: indexPage()})
	o := newTestOrchestrator(t, browser, &fakeStore{}, Dependencies{}, testConfig(testIndex), nil)

	_, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrNoLinks)
}

func TestOrchestratorMissingFieldAbortPolicyDumpsPage(t *testing.T) {
	t.Parallel()
	pages := threeSitePages()
	pages["https://sites.example/sites/b"] = "<html><body><h1>Bravo</h1></body></html>"
	browser := newFakeBrowser(pages)
	store := &fakeStore{}
	dumps := &fakeBlobs{}
	cfg := testConfig(testIndex)
	cfg.MissingFieldPolicy = PolicyAbort
	cfg.DumpPrefix = "dumps"
	o := newTestOrchestrator(t, browser, store, Dependencies{Dumps: dumps}, cfg, nil)

	report, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrMissingField)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, report.Persisted)
	require.Len(t, dumps.objects, 1)
	for path, body := range dumps.objects {
		assert.Contains(t, path, "dumps/sites.example_sites_b_")
		assert.Contains(t, body, "<h1>Bravo</h1>")
	}
}

func TestOrchestratorSummarizerAbort(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	store := &fakeStore{}
	deps := Dependencies{Summarizer: echoSummarizer{err: ErrSummarizerFailed}}
	o := newTestOrchestrator(t, browser, store, deps, testConfig(testIndex), nil)

	_, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrSummarizerFailed)
	assert.Empty(t, store.records)
}

func TestOrchestratorPersistFailureIsSkipped(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	store := &fakeStore{failFor: map[string]bool{"https://sites.example/sites/a": true}}
	o := newTestOrchestrator(t, browser, store, Dependencies{}, testConfig(testIndex), nil)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Persisted)
	assert.Equal(t, 1, report.Failed)
}

func TestOrchestratorPublishesRecordEvents(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	pub := &fakePublisher{}
	cfg := testConfig(testIndex)
	cfg.Topic = "sites"
	o := newTestOrchestrator(t, browser, &fakeStore{}, Dependencies{Publisher: pub}, cfg, nil)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.events, 3)
	assert.Equal(t, report.RunID, pub.events[0].RunID)
	assert.Equal(t, "https://sites.example/sites/a", pub.events[0].SourceLink)
}

func TestOrchestratorLogsChallengeMarkers(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := testConfig(testIndex)
	cfg.ChallengeMarkers = []string{"Captcha", "captcha", "Are you human"}
	o := newTestOrchestrator(t, newFakeBrowser(threeSitePages()), &fakeStore{}, Dependencies{}, cfg, zap.New(core))

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	starts := logs.FilterMessage("crawl run starting").All()
	require.Len(t, starts, 1)
	assert.Equal(t, []string{"captcha", "are you human"}, starts[0].ContextMap()["challenge_markers"])
}

func TestOrchestratorUploadsSnapshot(t *testing.T) {
	t.Parallel()
	source := filepath.Join(t.TempDir(), "sites.csv")
	require.NoError(t, os.WriteFile(source, []byte("Title,Link\nAlpha,https://sites.example/sites/a\n"), 0o600))
	snapshots := &fakeBlobs{}
	cfg := testConfig(testIndex)
	cfg.SnapshotSource = source
	cfg.SnapshotPath = "exports/sites.csv"
	o := newTestOrchestrator(t, newFakeBrowser(threeSitePages()), &fakeStore{}, Dependencies{Snapshots: snapshots}, cfg, nil)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mem://exports/sites.csv", report.SnapshotTo)
	assert.Contains(t, snapshots.objects["exports/sites.csv"], "Alpha")
}

func TestOrchestratorMissingSnapshotSourceOnlyWarns(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := testConfig(testIndex)
	cfg.SnapshotSource = filepath.Join(t.TempDir(), "absent.csv")
	cfg.SnapshotPath = "exports/sites.csv"
	o := newTestOrchestrator(t, newFakeBrowser(threeSitePages()), &fakeStore{}, Dependencies{Snapshots: &fakeBlobs{}}, cfg, zap.New(core))

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.SnapshotTo)
	assert.Equal(t, 1, logs.FilterMessage("snapshot source unreadable").Len())
}

func TestOrchestratorStopsOnCancel(t *testing.T) {
	t.Parallel()
	browser := newFakeBrowser(threeSitePages())
	ctx, cancel := context.WithCancel(context.Background())
	pacer := &cancelAfterPacer{cancel: cancel, after: 1}
	store := &fakeStore{}
	o := newTestOrchestrator(t, browser, store, Dependencies{Pacer: pacer}, testConfig(testIndex), nil)

	_, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.records, 1)
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	t.Parallel()
	_, err := NewOrchestrator(testConfig(testIndex), testRules(), Dependencies{}, nil)
	require.Error(t, err)
}

func TestFailureReason(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "missing_field", failureReason(&itemError{stage: "extract", err: ErrMissingField}))
	assert.Equal(t, "persist", failureReason(&itemError{stage: "persist", err: errors.New("x")}))
	assert.Equal(t, "unknown", failureReason(errors.New("x")))
}

type fakePublisher struct {
	events []RecordEvent
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.events = append(p.events, payload.(RecordEvent))
	return "msg-1", nil
}

type cancelAfterPacer struct {
	calls  int
	after  int
	cancel context.CancelFunc
}

func (p *cancelAfterPacer) Wait(ctx context.Context) error {
	if p.calls == p.after {
		p.cancel()
	}
	p.calls++
	return ctx.Err()
}
