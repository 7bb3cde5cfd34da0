package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://Whc.Example/en/list", "whc.example"},
		{"no scheme", "whc.example/en/list", "whc.example"},
		{"host with port", "whc.example:8080", "whc.example"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestCrawlCounters(t *testing.T) {
	before := testutil.ToFloat64(recordsPersistedTotal)
	ObserveRecordPersisted()
	if got := testutil.ToFloat64(recordsPersistedTotal); got != before+1 {
		t.Errorf("expected persisted counter %f, got %f", before+1, got)
	}

	failed := entitiesFailedTotal.WithLabelValues("sites.example", "missing_field")
	before = testutil.ToFloat64(failed)
	ObserveEntityFailed("https://Sites.Example/sites/jam", "missing_field")
	if got := testutil.ToFloat64(failed); got != before+1 {
		t.Errorf("expected failure counter %f, got %f", before+1, got)
	}

	runs := runsTotal.WithLabelValues("succeeded")
	before = testutil.ToFloat64(runs)
	ObserveRun("succeeded", 42*time.Second)
	if got := testutil.ToFloat64(runs); got != before+1 {
		t.Errorf("expected run counter %f, got %f", before+1, got)
	}
	if n := testutil.CollectAndCount(runDurationSeconds); n != 1 {
		t.Errorf("expected one run duration series, got %d", n)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
