// Package notify fans newly discovered codes out to every enabled chat
// channel. Each channel sits behind its own circuit breaker so one broken
// webhook cannot stall or poison delivery to the others.
package notify

import (
	"context"

	"codewatch/internal/domain/entity"
	"codewatch/internal/infra/notifier"
)

// Channel is a single notification destination (GroupMe, Discord, Slack).
//
// Implementations own their rate limiting and transport retries. All methods
// must be safe for concurrent use.
type Channel interface {
	// Name returns the lowercase channel identifier used in logs, metric
	// labels and the channel health endpoint.
	Name() string

	// IsEnabled reports whether the channel is configured on. Disabled
	// channels are skipped by the service.
	IsEnabled() bool

	// SendCode announces a new code. Returns ErrChannelDisabled on a
	// disabled channel and ErrInvalidCode for an empty code.
	SendCode(ctx context.Context, code entity.Code) error

	// SendText posts a free-form message.
	SendText(ctx context.Context, text string) error
}

// webhookChannel adapts an infra notifier to Channel. A disabled channel is
// backed by a NoOpNotifier so the notifier is never nil.
type webhookChannel struct {
	name     string
	enabled  bool
	notifier notifier.Notifier
}

func newWebhookChannel(name string, enabled bool, n notifier.Notifier) *webhookChannel {
	if !enabled || n == nil {
		n = notifier.NewNoOpNotifier()
	}
	return &webhookChannel{name: name, enabled: enabled, notifier: n}
}

func (c *webhookChannel) Name() string    { return c.name }
func (c *webhookChannel) IsEnabled() bool { return c.enabled }

func (c *webhookChannel) SendCode(ctx context.Context, code entity.Code) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if code == "" {
		return ErrInvalidCode
	}
	return c.notifier.NotifyCode(ctx, code)
}

func (c *webhookChannel) SendText(ctx context.Context, text string) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	return c.notifier.NotifyText(ctx, text)
}
