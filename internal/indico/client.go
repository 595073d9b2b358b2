package indico

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"indibot/internal/timewindow"
	"indibot/pkg/logx"
)

// Client fetches category exports over HTTP.
type Client struct {
	baseURL string
	creds   Credentials
	log     logx.Logger

	http *http.Client
	// insecure skips TLS verification; only used in debug mode.
	insecure *http.Client

	// now stamps request signatures; overridable in tests.
	now func() time.Time
}

func NewClient(baseURL string, creds Credentials, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		log:     log,
		http:    &http.Client{Timeout: 30 * time.Second},
		insecure: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		now: time.Now,
	}
}

// FetchEvents issues one signed export request for the given categories and
// returns the raw event records.
func (c *Client) FetchEvents(ctx context.Context, categories []string, now time.Time, delta timewindow.Delta, debug bool) ([]Event, error) {
	path := "export/categ/" + strings.Join(categories, "-") + ".json"
	params := buildParams(now, delta, debug)
	signParams(path, params, c.creds, c.now())

	url := c.baseURL + "/" + path + "?" + encodeParams(params)
	c.log.Debug("fetching events", logx.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := c.http
	if debug {
		client = c.insecure
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	var body exportResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	c.log.Debug("events fetched", logx.Int("count", len(body.Results)))
	return body.Results, nil
}
