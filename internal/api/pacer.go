package api

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spreads requests out so the endpoint's per-minute limit is
// respected across the whole worker pool.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer for the given sustained request rate.
func NewPacer(requestsPerMinute int) *Pacer {
	rps := float64(requestsPerMinute) / 60.0
	burst := max(5, requestsPerMinute/5) // 20% burst capacity
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until the pacer allows the next request.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
