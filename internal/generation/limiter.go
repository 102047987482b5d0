package generation

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval spaces consecutive upstream calls within a batch.
const DefaultInterval = 1500 * time.Millisecond

// Limiter blocks until the next upstream call may start.
type Limiter interface {
	Wait(ctx context.Context) error
}

// LimiterFactory creates a fresh limiter for one batch.
type LimiterFactory func() Limiter

// NewIntervalLimiter returns a token bucket of size one refilled every
// interval. The first Wait returns immediately. A non-positive interval
// never blocks.
func NewIntervalLimiter(interval time.Duration) Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// IntervalLimiterFactory builds interval limiters on demand.
func IntervalLimiterFactory(interval time.Duration) LimiterFactory {
	return func() Limiter {
		return NewIntervalLimiter(interval)
	}
}
