// Package notifier posts messages to chat services through their webhook
// APIs: GroupMe bots, Discord webhooks and Slack incoming webhooks.
//
// Every implementation rate-limits itself, retries transient failures and
// tags its log lines with a per-request ID.
package notifier

import (
	"context"

	"codewatch/internal/domain/entity"
)

// Notifier sends messages to one chat service.
type Notifier interface {
	// NotifyCode announces a newly discovered code together with its redeem link.
	NotifyCode(ctx context.Context, code entity.Code) error

	// NotifyText posts a free-form message, such as the startup announcement.
	NotifyText(ctx context.Context, text string) error
}

// CodeMessage renders the plain-text announcement for a code:
// "<CODE> | <redeemBase>/coupon_redeem?code=<CODE>".
func CodeMessage(code entity.Code, redeemBase string) string {
	return code.String() + " | " + code.RedeemURL(redeemBase)
}
