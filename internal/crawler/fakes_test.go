package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JakeFAU/historic-sites-crawler/internal/extract"
)

var errNavigation = errors.New("net::ERR_CONNECTION_RESET")

// fakeBrowser serves canned HTML per URL. failures[url] makes the first n
// navigations to url fail.
type fakeBrowser struct {
	mu        sync.Mutex
	pages     map[string]string
	failures  map[string]int
	current   string
	visits    map[string]int
	afterHTML func(url string) string
	closed    bool
}

func newFakeBrowser(pages map[string]string) *fakeBrowser {
	return &fakeBrowser{
		pages:    pages,
		failures: map[string]int{},
		visits:   map[string]int{},
	}
}

func (b *fakeBrowser) Navigate(_ context.Context, url string, _ NavigateOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visits[url]++
	if b.failures[url] > 0 {
		b.failures[url]--
		return errNavigation
	}
	if _, ok := b.pages[url]; !ok {
		return fmt.Errorf("404 %s", url)
	}
	b.current = url
	return nil
}

func (b *fakeBrowser) HTML(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	html := b.pages[b.current]
	if b.afterHTML != nil {
		b.pages[b.current] = b.afterHTML(b.current)
	}
	return html, nil
}

func (b *fakeBrowser) URL(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []Record
	failFor map[string]bool
}

func (s *fakeStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[r.SourceLink] {
		return errors.New("disk full")
	}
	s.records = append(s.records, r)
	return nil
}

func (s *fakeStore) Keys(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make(map[string]struct{}, len(s.records))
	for _, r := range s.records {
		keys[r.SourceLink] = struct{}{}
	}
	return keys, nil
}

func (s *fakeStore) Close() error { return nil }

type echoSummarizer struct {
	err error
}

func (s echoSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "summary of " + text, nil
}

type fakeOperator struct {
	alerts  []string
	resumed int
}

func (o *fakeOperator) Alert(_ context.Context, url string) { o.alerts = append(o.alerts, url) }

func (o *fakeOperator) AwaitResume(context.Context) error {
	o.resumed++
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeBlobs) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[path] = string(body)
	return "mem://" + path, nil
}

type recordingPause struct {
	delays []time.Duration
}

func (p *recordingPause) Pause(_ context.Context, d time.Duration) {
	p.delays = append(p.delays, d)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testRules() extract.Rules {
	return extract.Rules{
		LinkSelector:         "a.site",
		TitleSelectors:       []string{"h1"},
		DescriptionSelectors: []string{"div.desc p"},
		CoordinatesSelector:  "p.coords",
		ImageSelector:        "img",
		MaxImages:            6,
	}
}

func testConfig(index string) Config {
	cfg := DefaultConfig()
	cfg.IndexURL = index
	cfg.RetryBackoff = 0
	cfg.ChallengeSettle = 0
	return cfg
}

func indexPage(hrefs ...string) string {
	out := "<html><body>"
	for _, h := range hrefs {
		out += fmt.Sprintf(`<a class="site" href="%s">site</a>`, h)
	}
	return out + "</body></html>"
}

func detailPage(title string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1>
<div class="desc"><p>%s is an ancient place.</p></div>
<p class="coords">Lat: 34.39, Long: 64.51</p>
<img src="/img/%s.jpg"></body></html>`, title, title, title)
}
