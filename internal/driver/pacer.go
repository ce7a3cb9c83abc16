package driver

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer holds the politeness pause: the next fetch may not start until
// delay has passed since the previous fetch finished.
type pacer struct {
	delay   time.Duration
	limiter *rate.Limiter
}

// newPacer lets the first fetch through immediately.
func newPacer(delay time.Duration) *pacer {
	return &pacer{delay: delay, limiter: rate.NewLimiter(rate.Inf, 1)}
}

// wait blocks until the pause since the last finished fetch is over.
func (p *pacer) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// done starts the pause at end, the moment a fetch returned.
func (p *pacer) done(end time.Time) {
	if p.delay <= 0 {
		return
	}
	// A fresh bucket drained at end refills exactly delay later.
	p.limiter = rate.NewLimiter(rate.Every(p.delay), 1)
	p.limiter.AllowN(end, 1)
}
