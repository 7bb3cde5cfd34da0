// Package metrics exposes Prometheus collectors for the site crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecrawler_records_persisted_total",
			Help: "Total number of site records durably persisted.",
		},
	)

	entitiesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecrawler_entities_failed_total",
			Help: "Total number of detail pages skipped, labeled by site host and failure reason.",
		},
		[]string{"site", "reason"},
	)

	navigationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecrawler_navigation_retries_total",
			Help: "Total number of retried attempts after a failed operation.",
		},
	)

	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecrawler_summaries_total",
			Help: "Total number of descriptions summarized, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	challengePausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecrawler_challenge_pauses_total",
			Help: "Total number of times the crawl paused for an operator.",
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecrawler_runs_total",
			Help: "Total number of crawl runs, labeled by status.",
		},
		[]string{"status"},
	)

	runDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitecrawler_run_duration_seconds",
			Help:    "Histogram of crawl run durations.",
			Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200},
		},
	)

	pacingDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitecrawler_pacing_delay_seconds",
			Help:    "Histogram of delays inserted between detail page visits.",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite extracts a lowercase hostname, or "unknown" for bad input.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRecordPersisted counts one stored record.
func ObserveRecordPersisted() {
	recordsPersistedTotal.Inc()
}

// ObserveEntityFailed counts a skipped detail page under its host.
func ObserveEntityFailed(pageURL, reason string) {
	entitiesFailedTotal.WithLabelValues(SanitizeSite(pageURL), reason).Inc()
}

// ObserveRetry counts a retried attempt.
func ObserveRetry() {
	navigationRetriesTotal.Inc()
}

// ObserveSummary counts a summarization by outcome: "model", "passthrough"
// or "fallback".
func ObserveSummary(outcome string) {
	summariesTotal.WithLabelValues(outcome).Inc()
}

// ObserveChallengePause counts an operator pause.
func ObserveChallengePause() {
	challengePausesTotal.Inc()
}

// ObserveRun records a finished run.
func ObserveRun(status string, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObservePacingDelay records the wait inserted before a detail page.
func ObservePacingDelay(duration time.Duration) {
	pacingDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
