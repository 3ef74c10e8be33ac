// Package throttle paces calls to rate limited upstream APIs.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until the next call is allowed or the context ends.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter spaces calls at least interval apart. The first call passes immediately.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter allowing one call per interval.
// A non-positive interval disables pacing.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait implements Limiter.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Noop never blocks. Used by tests and offline tooling.
type Noop struct{}

// Wait implements Limiter and only reports context cancellation.
func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Counting records how many times Wait was called.
type Counting struct {
	Calls int
}

// Wait implements Limiter.
func (c *Counting) Wait(ctx context.Context) error {
	c.Calls++
	return ctx.Err()
}
