// Package notify is the outbound edge to the chat platform. Delivery
// is fire-and-forget: failures are logged by the caller, never rolled
// back into the financial transaction that produced them.
package notify

import (
	"context"
	"log/slog"
)

type Notifier interface {
	NotifyUser(ctx context.Context, userID, text string) error
	NotifyChannel(ctx context.Context, channelID, text, replyToID string) error
}

// LogNotifier stands in for the platform transport: it writes every
// notification to the log. Deployments swap in a real gateway client.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyUser(_ context.Context, userID, text string) error {
	n.logger.Info("notify user", "user_id", userID, "text", text)
	return nil
}

func (n *LogNotifier) NotifyChannel(_ context.Context, channelID, text, replyToID string) error {
	n.logger.Info("notify channel", "channel_id", channelID, "reply_to", replyToID, "text", text)
	return nil
}
