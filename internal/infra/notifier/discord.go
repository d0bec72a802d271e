package notifier

import (
	"context"
	"net/http"
	"time"

	"codewatch/internal/domain/entity"
)

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig struct {
	// Enabled indicates whether Discord notifications are enabled
	Enabled bool

	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	// RedeemBaseURL is prefixed to /coupon_redeem?code=... in code embeds.
	RedeemBaseURL string

	// Timeout is the HTTP request timeout for Discord API calls
	Timeout time.Duration

	Transport http.RoundTripper
}

// DiscordNotifier sends notifications to Discord via webhook.
type DiscordNotifier struct {
	config  DiscordConfig
	webhook *webhookClient
}

// NewDiscordNotifier creates a new DiscordNotifier, rate limited to 0.5
// requests/second with a burst of 3 (the webhook limit is 30 per minute).
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config:  config,
		webhook: newWebhookClient("Discord", config.WebhookURL, config.Timeout, config.Transport, NewRateLimiter(0.5, 3)),
	}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed message.
type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

const (
	// Discord limits
	maxContentLength = 2000
	truncationSuffix = "..."

	// Discord blue color (#5865F2)
	discordBlueColor = 5793266
)

// buildCodeEmbed renders a code as an embed titled with the code and linked
// to its redeem page.
func (d *DiscordNotifier) buildCodeEmbed(code entity.Code, now time.Time) DiscordWebhookPayload {
	return DiscordWebhookPayload{
		Embeds: []DiscordEmbed{{
			Title:       code.String(),
			Description: CodeMessage(code, d.config.RedeemBaseURL),
			URL:         code.RedeemURL(d.config.RedeemBaseURL),
			Color:       discordBlueColor,
			Footer:      &DiscordEmbedFooter{Text: "codewatch"},
			Timestamp:   now.UTC().Format(time.RFC3339),
		}},
	}
}

// NotifyCode posts an embed for code.
func (d *DiscordNotifier) NotifyCode(ctx context.Context, code entity.Code) error {
	return d.webhook.post(ctx, "code", code.String(), d.buildCodeEmbed(code, time.Now()))
}

// NotifyText posts text as message content.
func (d *DiscordNotifier) NotifyText(ctx context.Context, text string) error {
	payload := DiscordWebhookPayload{Content: truncate(text, maxContentLength, truncationSuffix)}
	return d.webhook.post(ctx, "text", "", payload)
}
