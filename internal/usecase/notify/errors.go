package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled indicates that a send was attempted on a channel
	// that is not enabled in the configuration.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidCode indicates an empty code was passed for delivery.
	ErrInvalidCode = errors.New("invalid code")

	// ErrCircuitBreakerOpen indicates the channel's circuit breaker rejected
	// the send. The breaker lets a trial send through after its timeout.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")

	// ErrServiceClosed is returned by Deliver and Announce after Shutdown.
	ErrServiceClosed = errors.New("notification service is shut down")
)
