package notifier

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket guarding one webhook endpoint.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows burst requests immediately, then refills at
// requestsPerSecond.
//
//	limiter := NewRateLimiter(0.5, 3) // 30 req/min with a burst of 3
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow blocks until a token is available or ctx is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	_, err := r.Wait(ctx)
	return err
}

// Wait is Allow that also reports how long it blocked.
func (r *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := r.limiter.Wait(ctx)
	return time.Since(start), err
}
