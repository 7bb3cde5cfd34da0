// Package staticbrowser implements crawler.Browser with plain HTTP GETs via
// gocolly. It runs no JavaScript, which suits server-rendered listings and
// tests.
package staticbrowser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
)

var errNoPage = errors.New("no page loaded")

// Config controls collector behavior.
type Config struct {
	UserAgent string
}

// Browser keeps the last fetched document as its current page.
type Browser struct {
	cfg           Config
	baseCollector *colly.Collector

	mu   sync.RWMutex
	html string
	url  string
}

var _ crawler.Browser = (*Browser)(nil)

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Browser sharing one cookie jar and transport across visits.
func New(cfg Config) *Browser {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Browser{cfg: cfg, baseCollector: c}
}

// Navigate fetches url. WaitCondition is irrelevant without scripts.
func (b *Browser) Navigate(ctx context.Context, url string, opts crawler.NavigateOptions) error {
	var (
		page     pageResult
		fetchErr error
	)
	collector := b.baseCollector.Clone()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	configureHooks(collector, &page, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("navigate %s: %w", url, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return fmt.Errorf("navigate %s: %w", url, fetchErr)
		}
		if err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
	}

	b.mu.Lock()
	b.html = page.html
	b.url = page.url
	b.mu.Unlock()
	return nil
}

// HTML returns the last fetched document.
func (b *Browser) HTML(context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.url == "" {
		return "", errNoPage
	}
	return b.html, nil
}

// URL returns the final address of the last fetch, after redirects.
func (b *Browser) URL(context.Context) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.url == "" {
		return "", errNoPage
	}
	return b.url, nil
}

// Close is a no-op; there is no process to stop.
func (b *Browser) Close() error {
	return nil
}

type pageResult struct {
	html string
	url  string
}

func configureHooks(hooks collectorHooks, page *pageResult, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		page.html = string(r.Body)
		page.url = r.Request.URL.String()
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
