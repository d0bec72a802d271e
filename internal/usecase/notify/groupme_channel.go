package notify

import "codewatch/internal/infra/notifier"

// NewGroupMeChannel creates the "groupme" channel. It is enabled only when
// config.Enabled is set and a bot ID is present.
func NewGroupMeChannel(config notifier.GroupMeConfig) Channel {
	enabled := config.Enabled && config.BotID != ""
	var n notifier.Notifier
	if enabled {
		n = notifier.NewGroupMeNotifier(config)
	}
	return newWebhookChannel("groupme", enabled, n)
}
