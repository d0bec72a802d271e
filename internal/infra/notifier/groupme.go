package notifier

import (
	"context"
	"net/http"
	"time"

	"codewatch/internal/domain/entity"
)

// DefaultGroupMeAPIURL is the GroupMe bot post endpoint.
const DefaultGroupMeAPIURL = "https://api.groupme.com/v3/bots/post"

// GroupMe rejects bot messages longer than 1000 characters.
const maxGroupMeTextLength = 1000

// GroupMeConfig contains configuration for GroupMe bot notifications.
type GroupMeConfig struct {
	Enabled bool

	// BotID identifies the bot; it doubles as the credential.
	BotID string

	// APIURL defaults to DefaultGroupMeAPIURL.
	APIURL string

	// RedeemBaseURL is prefixed to /coupon_redeem?code=... in code messages.
	RedeemBaseURL string

	Timeout   time.Duration
	Transport http.RoundTripper
}

// GroupMePayload is the body of a bots/post request.
type GroupMePayload struct {
	BotID string `json:"bot_id"`
	Text  string `json:"text"`
}

// GroupMeNotifier posts messages as a GroupMe bot.
type GroupMeNotifier struct {
	config  GroupMeConfig
	webhook *webhookClient
}

// NewGroupMeNotifier creates a GroupMe notifier rate limited to 1 message per
// second with a burst of 5.
func NewGroupMeNotifier(config GroupMeConfig) *GroupMeNotifier {
	if config.APIURL == "" {
		config.APIURL = DefaultGroupMeAPIURL
	}
	return &GroupMeNotifier{
		config:  config,
		webhook: newWebhookClient("GroupMe", config.APIURL, config.Timeout, config.Transport, NewRateLimiter(1.0, 5)),
	}
}

func (g *GroupMeNotifier) buildPayload(text string) GroupMePayload {
	return GroupMePayload{
		BotID: g.config.BotID,
		Text:  truncate(text, maxGroupMeTextLength, truncationSuffix),
	}
}

// NotifyCode posts "<CODE> | <redeem link>".
func (g *GroupMeNotifier) NotifyCode(ctx context.Context, code entity.Code) error {
	return g.webhook.post(ctx, "code", code.String(), g.buildPayload(CodeMessage(code, g.config.RedeemBaseURL)))
}

// NotifyText posts text as-is.
func (g *GroupMeNotifier) NotifyText(ctx context.Context, text string) error {
	return g.webhook.post(ctx, "text", "", g.buildPayload(text))
}
