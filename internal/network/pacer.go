package network

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive outbound requests at least interval apart. The
// first request goes out immediately.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer returns a pacer; a non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.lim == nil {
		return ctx.Err()
	}
	return p.lim.Wait(ctx)
}
