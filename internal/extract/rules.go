// Package extract pulls the raw fields of a site record out of a rendered
// detail page. Page-structure knowledge lives in Rules so the crawl pipeline
// only deals with typed Fields.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Rules holds the CSS selectors used to locate each field.
type Rules struct {
	LinkSelector         string
	TitleSelectors       []string
	DescriptionSelectors []string
	CoordinatesSelector  string
	ImageSelector        string
	// MaxImages caps the gallery; zero disables image collection.
	MaxImages int
}

// Fields is the raw field bundle of one detail page.
type Fields struct {
	Title       string
	Description string
	Coordinates string
	Images      []string
}

// Validate compiles every configured selector so typos fail at startup
// instead of silently matching nothing mid-crawl.
func (r Rules) Validate() error {
	if strings.TrimSpace(r.LinkSelector) == "" {
		return fmt.Errorf("extract.link_selector must be set")
	}
	if len(r.TitleSelectors) == 0 {
		return fmt.Errorf("extract.title_selectors must include at least one selector")
	}
	if len(r.DescriptionSelectors) == 0 {
		return fmt.Errorf("extract.description_selectors must include at least one selector")
	}
	if r.MaxImages < 0 {
		return fmt.Errorf("extract.max_images must be >= 0")
	}
	selectors := []string{r.LinkSelector, r.CoordinatesSelector, r.ImageSelector}
	selectors = append(selectors, r.TitleSelectors...)
	selectors = append(selectors, r.DescriptionSelectors...)
	for _, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("invalid selector %q: %w", sel, err)
		}
	}
	return nil
}

// Hrefs returns the raw href attribute of every element matching the link
// selector, in document order. Resolution and filtering are the caller's job.
func (r Rules) Hrefs(html string) ([]string, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	var out []string
	doc.Find(r.LinkSelector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				out = append(out, href)
			}
		}
	})
	return out, nil
}

// Extract reads the record fields from html. pageURL is used to make image
// references absolute. Missing fields come back empty; deciding whether that
// is fatal belongs to the caller.
func (r Rules) Extract(html string, pageURL string) (Fields, error) {
	doc, err := parse(html)
	if err != nil {
		return Fields{}, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return Fields{}, fmt.Errorf("parse page url: %w", err)
	}

	fields := Fields{
		Title:       firstText(doc, r.TitleSelectors, false),
		Description: firstText(doc, r.DescriptionSelectors, true),
	}
	if r.CoordinatesSelector != "" {
		fields.Coordinates = collapse(doc.Find(r.CoordinatesSelector).Last().Text())
	}
	if r.ImageSelector != "" && r.MaxImages > 0 {
		fields.Images = images(doc.Find(r.ImageSelector), base, r.MaxImages)
	}
	return fields, nil
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// firstText walks selectors in order and returns the first non-empty text.
// With joinAll every matching element contributes (multi-paragraph
// descriptions); otherwise only the first match is read.
func firstText(doc *goquery.Document, selectors []string, joinAll bool) string {
	for _, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		matches := doc.Find(sel)
		if !joinAll {
			matches = matches.First()
		}
		var parts []string
		matches.Each(func(_ int, s *goquery.Selection) {
			if text := collapse(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

func images(sel *goquery.Selection, base *url.URL, limit int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ref := imageRef(s)
		if ref == "" || strings.HasPrefix(ref, "data:") {
			return true
		}
		parsed, err := url.Parse(ref)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(parsed).String()
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		return len(out) < limit
	})
	return out
}

func imageRef(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "href"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
