package notify

import (
	"context"

	"indibot/internal/config"
	"indibot/pkg/logx"
)

// debugNotifier logs messages instead of delivering them.
type debugNotifier struct {
	log logx.Logger
}

func (n *debugNotifier) Notify(ctx context.Context, bot config.BotConfig, text string) error {
	n.log.Debug("debug notification", logx.String("bot", bot.Nickname), logx.String("text", text))
	return nil
}
