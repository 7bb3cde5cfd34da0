package crawler

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/extract"
)

// Discoverer loads the index page and lists the detail pages it links to.
type Discoverer struct {
	browser Browser
	retry   *FixedRetryPolicy
	rules   extract.Rules
	opts    NavigateOptions
	logger  *zap.Logger
}

// NewDiscoverer wires a Discoverer onto the shared browsing session.
func NewDiscoverer(
	browser Browser,
	retry *FixedRetryPolicy,
	rules extract.Rules,
	opts NavigateOptions,
	logger *zap.Logger,
) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		browser: browser,
		retry:   retry,
		rules:   rules,
		opts:    opts,
		logger:  logger,
	}
}

// Discover returns the unique absolute detail URLs found on indexURL in
// first-seen order. Any failure here is structural: the caller must abort.
func (d *Discoverer) Discover(ctx context.Context, indexURL string) ([]string, error) {
	d.logger.Info("loading index page", zap.String("url", indexURL))
	if err := d.retry.Navigate(ctx, d.browser, indexURL, d.opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	html, err := d.browser.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read html: %w", ErrIndexUnavailable, err)
	}

	baseRaw := indexURL
	if current, urlErr := d.browser.URL(ctx); urlErr == nil && current != "" {
		baseRaw = current
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}

	hrefs, err := d.rules.Hrefs(html)
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}
	links := dedupeLinks(base, hrefs, indexURL, baseRaw)
	if len(links) == 0 {
		return nil, ErrNoLinks
	}
	d.logger.Info("index page parsed",
		zap.Int("anchors", len(hrefs)),
		zap.Int("links", len(links)),
	)
	return links, nil
}

// dedupeLinks resolves hrefs against base and drops duplicates and any link
// that points back at one of the exclude pages.
func dedupeLinks(base *url.URL, hrefs []string, exclude ...string) []string {
	seen := make(map[string]struct{}, len(hrefs)+len(exclude))
	for _, page := range exclude {
		if normalized, err := NormalizeURL(page); err == nil {
			seen[normalized] = struct{}{}
		}
	}
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs, ok := ResolveLink(base, href)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}
