package notifier

import (
	"context"

	"codewatch/internal/domain/entity"
)

// NoOpNotifier discards every message. It stands in for a channel that is
// configured off so callers need no nil checks.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyCode does nothing.
func (n *NoOpNotifier) NotifyCode(ctx context.Context, code entity.Code) error {
	return nil
}

// NotifyText does nothing.
func (n *NoOpNotifier) NotifyText(ctx context.Context, text string) error {
	return nil
}
