// Package pacing spaces out detail page visits with a randomized delay under
// a token bucket ceiling.
package pacing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/historic-sites-crawler/internal/clock/system"
	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
	"github.com/JakeFAU/historic-sites-crawler/internal/metrics"
)

// Config holds pacing configuration.
type Config struct {
	DelayMin time.Duration
	DelayMax time.Duration
	// RPS caps visits per second; zero disables the ceiling.
	RPS   float64
	Burst int
}

// Validate reports impossible delay windows.
func (c Config) Validate() error {
	if c.DelayMin < 0 {
		return fmt.Errorf("crawler.delay_min must be >= 0")
	}
	if c.DelayMax < c.DelayMin {
		return fmt.Errorf("crawler.delay_max must be >= crawler.delay_min")
	}
	if c.RPS < 0 {
		return fmt.Errorf("crawler.max_rps must be >= 0")
	}
	return nil
}

// Pacer waits a uniformly random delay in [DelayMin, DelayMax] before each
// visit, after first taking a token from the rate limiter.
type Pacer struct {
	cfg     Config
	limiter *rate.Limiter
	jitter  func(n int64) int64
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ crawler.Pacer = (*Pacer)(nil)

// New creates a Pacer.
func New(cfg Config) (*Pacer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		jitter:  rand.Int64N,
		sleep:   system.Sleep,
	}, nil
}

// Wait blocks for the next visit slot or until ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if err := p.sleep(ctx, p.Next()); err != nil {
		return err
	}
	metrics.ObservePacingDelay(time.Since(start))
	return nil
}

// Next returns the next jittered delay.
func (p *Pacer) Next() time.Duration {
	span := int64(p.cfg.DelayMax - p.cfg.DelayMin)
	if span <= 0 {
		return p.cfg.DelayMin
	}
	return p.cfg.DelayMin + time.Duration(p.jitter(span+1))
}
