package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server:
  url: https://events.example.com
  api_key: key
poll:
  interval: 2m
storage:
  uri: file://./storage.txt
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
channels:
  ops:
    type: mattermost
    hook_url: https://chat.example.com/hooks/abc
    text: "{title} starts at {start_time} ({start_tz})"
bots:
  upcoming:
    nickname: indibot
    image_url: https://example.com/bot.png
    categories: ["1", "2"]
    timedelta: "1h"
    channels: [ops]
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.URL != "https://events.example.com" {
		t.Fatalf("server.url = %q", cfg.Server.URL)
	}
	iv, err := cfg.PollInterval()
	if err != nil || iv != 2*time.Minute {
		t.Fatalf("PollInterval = (%v, %v), want 2m", iv, err)
	}

	bot, ok := cfg.Bots["upcoming"]
	if !ok {
		t.Fatal("bot \"upcoming\" missing")
	}
	if bot.TimeDelta != "1h" || len(bot.Categories) != 2 || bot.Channels[0] != "ops" {
		t.Fatalf("unexpected bot: %+v", bot)
	}
	if cfg.Channels["ops"].Type != "mattermost" {
		t.Fatalf("unexpected channel: %+v", cfg.Channels["ops"])
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", `
server:
  url: https://events.example.com
channels:
  dbg:
    type: debug
    text: "{title}"
bots:
  b:
    categories: ["1"]
    timedelta: "30m"
    channels: [dbg]
`))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	iv, err := cfg.PollInterval()
	if err != nil || iv != 5*time.Minute {
		t.Fatalf("default PollInterval = (%v, %v), want 5m", iv, err)
	}
	if cfg.Storage.URI != "file://./storage.txt" {
		t.Fatalf("default storage uri = %q", cfg.Storage.URI)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", sampleYAML+"\nwhatever: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INDIBOT_API_KEY", "env-key")
	t.Setenv("INDIBOT_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.APIKey != "env-key" || cfg.Server.Secret != "env-secret" {
		t.Fatalf("env override not applied: %+v", cfg.Server)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing server url", func(c *Config) { c.Server.URL = "" }, "server.url"},
		{"bad timedelta", func(c *Config) { b := c.Bots["upcoming"]; b.TimeDelta = "25h"; c.Bots["upcoming"] = b }, "invalid time"},
		{"malformed timedelta", func(c *Config) { b := c.Bots["upcoming"]; b.TimeDelta = "soon"; c.Bots["upcoming"] = b }, "format"},
		{"undefined channel", func(c *Config) { b := c.Bots["upcoming"]; b.Channels = []string{"nope"}; c.Bots["upcoming"] = b }, "undefined channel"},
		{"no categories", func(c *Config) { b := c.Bots["upcoming"]; b.Categories = nil; c.Bots["upcoming"] = b }, "categories"},
		{"bot id with space", func(c *Config) { c.Bots["has space"] = c.Bots["upcoming"] }, "whitespace"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "config.yaml", sampleYAML))
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}
