package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"indibot/internal/config"
	"indibot/pkg/logx"
)

// ErrUnknownNotifier marks a channel whose declared variant is not in the
// closed capability set.
var ErrUnknownNotifier = errors.New("unknown notifier")

// Variant tags a notifier capability.
type Variant string

const (
	VariantMattermost Variant = "mattermost"
	VariantGitter     Variant = "gitter"
	VariantDebug      Variant = "debug"
)

// Notifier delivers one rendered message to its channel.
type Notifier interface {
	Notify(ctx context.Context, bot config.BotConfig, text string) error
}

// newNotifier resolves a channel's variant tag into its implementation.
func newNotifier(id string, ch config.ChannelConfig, client *http.Client, log logx.Logger) (Notifier, error) {
	switch Variant(ch.Type) {
	case VariantMattermost:
		if ch.HookURL == "" {
			return nil, fmt.Errorf("channel %q: hook_url is required", id)
		}
		return &mattermostNotifier{hookURL: ch.HookURL, client: client}, nil
	case VariantGitter:
		if ch.HookURL == "" {
			return nil, fmt.Errorf("channel %q: hook_url is required", id)
		}
		level := ch.Level
		if level == "" {
			level = "info"
		}
		return &gitterNotifier{hookURL: ch.HookURL, level: level, client: client}, nil
	case VariantDebug:
		return &debugNotifier{log: log.With(logx.String("channel", id))}, nil
	default:
		return nil, fmt.Errorf("%w: %q (channel %q)", ErrUnknownNotifier, ch.Type, id)
	}
}

func newWebhookClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
