package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"indibot/internal/config"
)

// gitterNotifier posts a JSON body to the activity webhook.
type gitterNotifier struct {
	hookURL string
	level   string
	client  *http.Client
}

type gitterPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

func (n *gitterNotifier) Notify(ctx context.Context, bot config.BotConfig, text string) error {
	body, err := json.Marshal(gitterPayload{Message: text, Level: n.level})
	if err != nil {
		return fmt.Errorf("gitter payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.hookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gitter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("gitter post: %w", err)
	}
	// The response is not inspected beyond transport-level completion.
	resp.Body.Close()
	return nil
}
