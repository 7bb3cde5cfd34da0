package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/historic-sites-crawler/internal/clock/system"
)

// pauseController abstracts how the crawler waits between attempts and
// after an operator clears a challenge.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

// Pause returns early when ctx ends; callers check ctx themselves.
func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	_ = system.Sleep(ctx, delay)
}
