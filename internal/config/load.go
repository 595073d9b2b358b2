package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	defaultPollInterval = 5 * time.Minute
	defaultStorageURI   = "file://./storage.txt"
)

// Load reads, decodes, defaults and validates the config file. JSON and YAML
// are accepted; both go through one strict decode path that rejects unknown
// fields and trailing data.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Reject trailing tokens (e.g. concatenated JSON documents).
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Poll.Interval) == "" && strings.TrimSpace(c.Poll.Schedule) == "" {
		c.Poll.Interval = defaultPollInterval.String()
	}
	if strings.TrimSpace(c.Storage.URI) == "" {
		c.Storage.URI = defaultStorageURI
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// applyEnv lets environment credentials override the file. Keeping secrets
// out of the config file is the normal deployment shape.
func (c *Config) applyEnv() {
	if v := os.Getenv("INDIBOT_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("INDIBOT_SECRET"); v != "" {
		c.Server.Secret = v
	}
}

// PollInterval returns the parsed polling interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return ParseDurationOrDefault("poll.interval", c.Poll.Interval, defaultPollInterval)
}

// ParseDurationField parses a Go duration string from config, rejecting
// negative values.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
