package config

import (
	"errors"
	"fmt"
	"strings"

	"indibot/internal/timewindow"
)

// Validate checks the structural invariants of a loaded config. Time-delta
// strings are parsed here so malformed windows fail at startup instead of
// surfacing mid-tick.
//
// Notifier variants and message templates are validated when the dispatcher
// is constructed; both happen before the run loop starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return errors.New("server.url is required")
	}

	for id, ch := range c.Channels {
		if err := validateID("channel", id); err != nil {
			return err
		}
		if strings.TrimSpace(ch.Type) == "" {
			return fmt.Errorf("channel %q: type is required", id)
		}
		if strings.TrimSpace(ch.Text) == "" {
			return fmt.Errorf("channel %q: text template is required", id)
		}
	}

	for id, bot := range c.Bots {
		if err := validateID("bot", id); err != nil {
			return err
		}
		if len(bot.Categories) == 0 {
			return fmt.Errorf("bot %q: categories must not be empty", id)
		}
		if len(bot.Channels) == 0 {
			return fmt.Errorf("bot %q: channels must not be empty", id)
		}
		for _, chID := range bot.Channels {
			if _, ok := c.Channels[chID]; !ok {
				return fmt.Errorf("bot %q: references undefined channel %q", id, chID)
			}
		}
		if _, err := timewindow.Parse(bot.TimeDelta); err != nil {
			return fmt.Errorf("bot %q: %w", id, err)
		}
	}

	if _, err := c.PollInterval(); err != nil {
		return err
	}
	return nil
}

// validateID rejects identifiers the flat-file storage format cannot hold
// (one space-separated pair per line).
func validateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id must not be empty", kind)
	}
	if strings.ContainsAny(id, " \n\t") {
		return fmt.Errorf("%s id %q must not contain whitespace", kind, id)
	}
	return nil
}
