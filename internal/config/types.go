package config

// Config is the process-wide configuration. It is loaded once per run and
// immutable afterwards: bots and channels never change while the daemon runs.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Poll    PollConfig    `json:"poll"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`

	Bots     map[string]BotConfig     `json:"bots"`
	Channels map[string]ChannelConfig `json:"channels"`
}

// ServerConfig points at the upstream events API.
//
// APIKey and Secret are optional; when both are set, requests carry an
// HMAC-SHA1 signature. Both can also come from the environment
// (INDIBOT_API_KEY / INDIBOT_SECRET), which wins over the file.
type ServerConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key,omitempty"`
	Secret string `json:"secret,omitempty"`
}

// PollConfig controls the polling trigger.
//
// Interval is a Go duration string (default "5m"). Schedule is an optional
// cron spec that overrides Interval when set.
type PollConfig struct {
	Interval string `json:"interval,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig locates the dedup store. The URI scheme selects the backend
// (file://, sqlite://, mysql://).
type StorageConfig struct {
	URI string `json:"uri"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// BotConfig is one named polling configuration: which categories to poll,
// how far ahead (or back) to alert, and where to deliver.
type BotConfig struct {
	Nickname   string   `json:"nickname"`
	ImageURL   string   `json:"image_url,omitempty"`
	Categories []string `json:"categories"`
	TimeDelta  string   `json:"timedelta"`
	Channels   []string `json:"channels"`
}

// ChannelConfig is one webhook destination. Type selects the notifier
// variant; Text is the message template with named placeholders
// ({title}, {url}, {start_time}, {start_date}, {start_tz}, {room}).
type ChannelConfig struct {
	Type    string `json:"type"`
	HookURL string `json:"hook_url"`
	Text    string `json:"text"`

	// Level is the severity tag for the gitter variant (default "info").
	Level string `json:"level,omitempty"`
}
