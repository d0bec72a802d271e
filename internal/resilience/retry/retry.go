// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// ForumFetchConfig returns configuration for fetching the monitored forum page.
// Retries stay short: a missed attempt only costs one poll cycle, so the
// whole retry budget must fit well inside a typical poll delay.
func ForumFetchConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Do executes fn with retry logic and exponential backoff and returns its
// result. It returns the last error if all attempts fail, or immediately on a
// non-retryable error.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := cfg.InitialDelay
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return zero, err
		}

		if attempt == attempts {
			break
		}

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		delay = addJitter(delay, cfg.JitterFraction)
	}

	return zero, fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, lastErr)
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	return false
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status is worth another attempt:
// 5xx, 429 Too Many Requests and 408 Request Timeout.
func (e *HTTPError) Retryable() bool {
	switch {
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
