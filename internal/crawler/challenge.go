package crawler

import "bytes"

// ChallengeDetector spots anti-automation verification pages by looking for
// known marker strings in the rendered HTML.
type ChallengeDetector struct {
	markers [][]byte
}

// NewChallengeDetector lowercases and deduplicates the markers.
func NewChallengeDetector(markers []string) *ChallengeDetector {
	normalized := normalizeMarkers(markers)
	lower := make([][]byte, 0, len(normalized))
	for _, m := range normalized {
		lower = append(lower, []byte(m))
	}
	return &ChallengeDetector{markers: lower}
}

// Detect returns the first marker found in html, if any.
func (d *ChallengeDetector) Detect(html string) (string, bool) {
	if d == nil || len(d.markers) == 0 || html == "" {
		return "", false
	}
	body := bytes.ToLower([]byte(html))
	for _, m := range d.markers {
		if bytes.Contains(body, m) {
			return string(m), true
		}
	}
	return "", false
}

// Markers returns the active markers.
func (d *ChallengeDetector) Markers() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.markers))
	for _, m := range d.markers {
		out = append(out, string(m))
	}
	return out
}
