package notify

import "codewatch/internal/infra/notifier"

// NewSlackChannel creates the "slack" channel.
func NewSlackChannel(config notifier.SlackConfig) Channel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	}
	return newWebhookChannel("slack", config.Enabled, n)
}
