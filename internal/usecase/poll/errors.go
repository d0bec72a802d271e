// Package poll runs the fetch, diff, notify and sleep cycle that turns forum
// snapshots into one announcement per newly seen code.
package poll

import (
	"errors"
	"fmt"

	"codewatch/internal/domain/entity"
)

// Sentinel errors returned by NewLoop for missing collaborators.
var (
	ErrNilSource   = errors.New("poll: source is required")
	ErrNilNotifier = errors.New("poll: notifier is required")
)

// ConfigError reports a loop configuration the daemon must refuse to start with.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid poll config: %s %s", e.Field, e.Reason)
}

// FetchError wraps a failed snapshot fetch. Cycle is 0 for the seeding fetch.
// The loop recovers from it by treating the snapshot as empty.
type FetchError struct {
	Cycle uint64
	Err   error
}

func (e *FetchError) Error() string {
	if e.Cycle == 0 {
		return fmt.Sprintf("seed: fetch snapshot: %v", e.Err)
	}
	return fmt.Sprintf("cycle %d: fetch snapshot: %v", e.Cycle, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DeliveryError wraps a failed announcement of a single code. The code is
// still marked seen and is not retried.
type DeliveryError struct {
	Code entity.Code
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Code, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
