package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"codewatch/internal/domain/entity"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Enabled indicates whether Slack notifications are enabled
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// RedeemBaseURL is prefixed to /coupon_redeem?code=... in code messages.
	RedeemBaseURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration

	Transport http.RoundTripper
}

// SlackNotifier sends notifications to Slack via Incoming Webhook.
type SlackNotifier struct {
	config  SlackConfig
	webhook *webhookClient
}

// NewSlackNotifier creates a new SlackNotifier rate limited to 1 request per
// second (the Incoming Webhook limit).
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config:  config,
		webhook: newWebhookClient("Slack", config.WebhookURL, config.Timeout, config.Transport, NewRateLimiter(1.0, 1)),
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`             // Fallback text (required)
	Blocks []SlackBlock `json:"blocks,omitempty"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`               // "section", "context"
	Text     *SlackTextObject  `json:"text,omitempty"`     // Text content (for section)
	Elements []SlackTextObject `json:"elements,omitempty"` // Elements (for context)
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

// Slack Block Kit section text limit.
const maxSectionTextLength = 3000

// buildCodePayload renders code as a linked section with the plain-text
// message as the notification fallback.
func (s *SlackNotifier) buildCodePayload(code entity.Code) SlackWebhookPayload {
	link := fmt.Sprintf("*<%s|%s>*", code.RedeemURL(s.config.RedeemBaseURL), code.String())
	return SlackWebhookPayload{
		Text: CodeMessage(code, s.config.RedeemBaseURL),
		Blocks: []SlackBlock{
			{Type: "section", Text: &SlackTextObject{Type: "mrkdwn", Text: link}},
			{Type: "context", Elements: []SlackTextObject{{Type: "mrkdwn", Text: "new code spotted by codewatch"}}},
		},
	}
}

// NotifyCode posts a Block Kit message for code.
func (s *SlackNotifier) NotifyCode(ctx context.Context, code entity.Code) error {
	return s.webhook.post(ctx, "code", code.String(), s.buildCodePayload(code))
}

// NotifyText posts text as a plain message.
func (s *SlackNotifier) NotifyText(ctx context.Context, text string) error {
	payload := SlackWebhookPayload{Text: truncate(text, maxSectionTextLength, truncationSuffix)}
	return s.webhook.post(ctx, "text", "", payload)
}
