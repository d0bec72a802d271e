// Package circuitbreaker guards outbound calls to the forum and notification channels.
// It uses the github.com/sony/gobreaker library to prevent cascading failures.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear success/failure counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// FailureThreshold is the failure ratio threshold to trip the circuit
	// For example, 0.6 means 60% failure rate
	FailureThreshold float64

	// MinRequests is the minimum number of requests before calculating failure ratio
	MinRequests uint32

	// OnStateChange is called after every state transition, if set
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// ForumFetchConfig returns configuration for the forum page fetch.
// Consecutive failures usually mean the forum markup changed or the site is
// down, so the circuit stays open for several poll cycles before probing again.
func ForumFetchConfig() Config {
	return Config{
		Name:             "forum-fetch",
		MaxRequests:      1,
		Interval:         10 * time.Minute,
		Timeout:          5 * time.Minute,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// NotifyChannelConfig returns configuration for a single notification channel.
func NotifyChannelConfig(channel string) Config {
	return Config{
		Name:             "notify-" + channel,
		MaxRequests:      1,
		Interval:         5 * time.Minute,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with additional functionality.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs the given function through the circuit breaker.
// If the circuit is open, it returns ErrOpenState immediately.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Counts returns the request counters of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
