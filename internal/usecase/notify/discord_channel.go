package notify

import "codewatch/internal/infra/notifier"

// NewDiscordChannel creates the "discord" channel.
//
// If Discord notifications are disabled (config.Enabled = false), a
// NoOpNotifier backs the channel instead.
func NewDiscordChannel(config notifier.DiscordConfig) Channel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewDiscordNotifier(config)
	}
	return newWebhookChannel("discord", config.Enabled, n)
}
