package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"indibot/internal/config"
	"indibot/internal/indico"
	"indibot/pkg/logx"
)

// webhookRatePerSec bounds outbound POSTs so a large batch of due events
// doesn't hammer the chat servers.
const webhookRatePerSec = 5

type channelRuntime struct {
	cfg      config.ChannelConfig
	notifier Notifier
}

// Dispatcher routes a due event to each of a bot's channels, in the bot's
// configured channel order.
type Dispatcher struct {
	log      logx.Logger
	channels map[string]channelRuntime
	limiter  *rate.Limiter
}

// NewDispatcher resolves every configured channel up front. Unknown variants
// and templates referencing unknown fields are construction-time errors.
func NewDispatcher(channels map[string]config.ChannelConfig, log logx.Logger) (*Dispatcher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	client := newWebhookClient()

	rts := make(map[string]channelRuntime, len(channels))
	for id, ch := range channels {
		if err := ValidateTemplate(ch.Text); err != nil {
			return nil, fmt.Errorf("channel %q: %w", id, err)
		}
		n, err := newNotifier(id, ch, client, log)
		if err != nil {
			return nil, err
		}
		rts[id] = channelRuntime{cfg: ch, notifier: n}
	}

	return &Dispatcher{
		log:      log,
		channels: rts,
		limiter:  rate.NewLimiter(rate.Limit(webhookRatePerSec), webhookRatePerSec),
	}, nil
}

// Dispatch renders the event once per channel and posts it to each of the
// bot's channels in order.
//
// A missing or unknown channel aborts the remaining channels for this bot
// (channels already posted stay posted); plain transport errors are logged
// and the remaining channels still get their POST, since the next poll tick
// is not a retry mechanism for delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, botID string, bot config.BotConfig, evt indico.Event) error {
	data := templateData(evt)

	for _, chID := range bot.Channels {
		rt, ok := d.channels[chID]
		if !ok {
			return fmt.Errorf("%w: bot %q references undefined channel %q", ErrUnknownNotifier, botID, chID)
		}

		text := render(rt.cfg.Text, data)
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := rt.notifier.Notify(ctx, bot, text); err != nil {
			d.log.Error("webhook delivery failed",
				logx.String("bot", botID),
				logx.String("channel", chID),
				logx.String("event", evt.ID.String()),
				logx.Err(err))
			continue
		}
		d.log.Debug("notified channel",
			logx.String("bot", botID),
			logx.String("channel", chID),
			logx.String("event", evt.ID.String()))
	}
	return nil
}
