package fwbot

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateThrottle enforces a minimum spacing between requests shared by all
// workers.
type RateThrottle struct {
	limiter *rate.Limiter
}

// NewRateThrottle returns a throttle allowing one request per spacing.
// A zero spacing disables throttling.
func NewRateThrottle(spacing time.Duration) *RateThrottle {
	if spacing <= 0 {
		return &RateThrottle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateThrottle{limiter: rate.NewLimiter(rate.Every(spacing), 1)}
}

func (t *RateThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

var _ Throttle = (*RateThrottle)(nil)
