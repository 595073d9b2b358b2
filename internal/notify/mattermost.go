package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"indibot/internal/config"
)

// mattermostNotifier posts the incoming-webhook form payload: a single
// "payload" form field holding the JSON document.
type mattermostNotifier struct {
	hookURL string
	client  *http.Client
}

type mattermostPayload struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	IconURL  string `json:"icon_url"`
}

func (n *mattermostNotifier) Notify(ctx context.Context, bot config.BotConfig, text string) error {
	body, err := json.Marshal(mattermostPayload{
		Text:     text,
		Username: bot.Nickname,
		IconURL:  bot.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("mattermost payload: %w", err)
	}

	form := url.Values{"payload": {string(body)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.hookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mattermost request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("mattermost post: %w", err)
	}
	// The response is not inspected beyond transport-level completion.
	resp.Body.Close()
	return nil
}
