// Package chromedpbrowser drives a single Chrome tab through chromedp.
package chromedpbrowser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
)

// Config controls how Chrome is launched.
type Config struct {
	UserAgent string
	// Headless hides the window. Challenges can only be solved by an
	// operator when the window is visible.
	Headless bool
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Browser implements crawler.Browser on one long-lived tab so cookies and
// challenge clearances carry across navigations.
type Browser struct {
	cfg         Config
	logger      *zap.Logger
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	startOnce   sync.Once
	startErr    error
	idle        *idleTracker
}

var _ crawler.Browser = (*Browser)(nil)

// New prepares the allocator and tab. Chrome itself starts on first use.
func New(cfg Config, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		cfg:         cfg,
		logger:      logger,
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
		idle:        newIdleTracker(),
	}
	chromedp.ListenTarget(tab, b.idle.captureEvent)
	return b
}

// Navigate loads url and waits for the requested condition. Navigation
// errors are returned; a network-idle wait that outlives the timeout is
// logged and treated as loaded.
func (b *Browser) Navigate(ctx context.Context, url string, opts crawler.NavigateOptions) error {
	if err := b.start(); err != nil {
		return err
	}
	runCtx, cancel := b.runContext(ctx, opts.Timeout)
	defer cancel()

	idle := b.idle.arm()
	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
				return fmt.Errorf("enable lifecycle events: %w", err)
			}
			if b.cfg.UserAgent != "" {
				if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
					return fmt.Errorf("set user-agent: %w", err)
				}
			}
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("navigate %s: %w", url, ctx.Err())
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if opts.WaitCondition != crawler.WaitNetworkIdle {
		return nil
	}
	select {
	case <-idle:
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("navigate %s: %w", url, ctx.Err())
		}
		b.logger.Warn("network never went idle, continuing with loaded page",
			zap.String("url", url),
			zap.Duration("timeout", opts.Timeout),
		)
	}
	return nil
}

// HTML returns the current document's outer HTML.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	if err := b.start(); err != nil {
		return "", err
	}
	runCtx, cancel := b.runContext(ctx, 0)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// URL returns the tab's current location.
func (b *Browser) URL(ctx context.Context) (string, error) {
	if err := b.start(); err != nil {
		return "", err
	}
	runCtx, cancel := b.runContext(ctx, 0)
	defer cancel()
	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Close shuts down the tab and the browser process.
func (b *Browser) Close() error {
	b.tabCancel()
	b.allocCancel()
	return nil
}

// start launches Chrome bound to the tab's own lifetime. Running the first
// action under a request-scoped context would tie the browser to it.
func (b *Browser) start() error {
	b.startOnce.Do(func() {
		if err := chromedp.Run(b.tab); err != nil {
			b.startErr = fmt.Errorf("start chrome: %w", err)
		}
	})
	return b.startErr
}

// runContext derives an action context from the tab that also ends when
// the caller's ctx does.
func (b *Browser) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(b.tab, timeout)
	} else {
		runCtx, cancel = context.WithCancel(b.tab)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// idleTracker turns page lifecycle events into a per-navigation signal.
type idleTracker struct {
	mu     sync.Mutex
	ch     chan struct{}
	loaded bool
}

func newIdleTracker() *idleTracker {
	return &idleTracker{}
}

// arm starts tracking a new navigation and returns its idle channel.
func (t *idleTracker) arm() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ch = make(chan struct{}, 1)
	t.loaded = false
	return t.ch
}

func (t *idleTracker) captureEvent(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	t.observe(e.Name)
}

// observe ignores idle events until the new document has initialised so a
// late signal from the previous page cannot release the wait.
func (t *idleTracker) observe(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch name {
	case "init":
		t.loaded = true
	case "networkIdle":
		if !t.loaded || t.ch == nil {
			return
		}
		select {
		case t.ch <- struct{}{}:
		default:
		}
	}
}

