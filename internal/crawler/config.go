package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config captures every knob the orchestrator needs for a run. It is built
// once from the service configuration and passed in at construction.
type Config struct {
	IndexURL           string
	Navigation         NavigateOptions
	MaxAttempts        int
	RetryBackoff       time.Duration
	MissingFieldPolicy Policy
	ChallengeMarkers   []string
	ChallengeSettle    time.Duration
	DumpPrefix         string
	SnapshotPath       string
	SnapshotSource     string
	Topic              string
}

// DefaultConfig returns the documented defaults; IndexURL must still be set.
func DefaultConfig() Config {
	return Config{
		Navigation: NavigateOptions{
			WaitCondition: WaitNetworkIdle,
			Timeout:       60 * time.Second,
		},
		MaxAttempts:        3,
		RetryBackoff:       2 * time.Second,
		MissingFieldPolicy: PolicySkip,
		ChallengeMarkers:   []string{"captcha", "verify you are human"},
		ChallengeSettle:    3 * time.Second,
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.IndexURL) == "" {
		return fmt.Errorf("crawler.index_url must be set")
	}
	u, err := url.Parse(c.IndexURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("crawler.index_url must be an absolute http(s) URL")
	}
	if c.Navigation.Timeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	switch c.Navigation.WaitCondition {
	case WaitLoad, WaitNetworkIdle:
	default:
		return fmt.Errorf("browser.wait_condition must be %q or %q", WaitLoad, WaitNetworkIdle)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("crawler.retry_backoff must be >= 0")
	}
	switch c.MissingFieldPolicy {
	case PolicySkip, PolicyAbort:
	default:
		return fmt.Errorf("crawler.missing_field_policy must be %q or %q", PolicySkip, PolicyAbort)
	}
	if c.ChallengeSettle < 0 {
		return fmt.Errorf("crawler.captcha_settle_delay must be >= 0")
	}
	return nil
}

func normalizeMarkers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
