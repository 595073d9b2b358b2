// Package indico talks to the agenda server's HTTP export API: it builds
// signed category-export requests and decodes the returned event records.
package indico

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one upstream event record from a category export.
type Event struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	URL       string      `json:"url"`
	Room      *string     `json:"room"`
	StartDate EventTime   `json:"startDate"`

	Label *EventLabel `json:"label,omitempty"`
}

// EventLabel is the optional upstream marker attached to an event.
type EventLabel struct {
	IsEventNotHappening bool `json:"is_event_not_happening"`
}

// NotHappening reports whether the upstream flagged the event as cancelled.
func (e Event) NotHappening() bool {
	return e.Label != nil && e.Label.IsEventNotHappening
}

// RoomOrDefault returns the event's room, or "no room" when unset.
func (e Event) RoomOrDefault() string {
	if e.Room == nil || *e.Room == "" {
		return "no room"
	}
	return *e.Room
}

// EventTime is the upstream wall-clock start triple.
type EventTime struct {
	Date string `json:"date"` // "2006-01-02"
	Time string `json:"time"` // "15:04:05"
	TZ   string `json:"tz"`   // IANA zone name
}

// Resolve converts the triple into an absolute instant.
func (t EventTime) Resolve() (time.Time, error) {
	loc, err := time.LoadLocation(t.TZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("event timezone %q: %w", t.TZ, err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", t.Date+" "+t.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("event start %q %q: %w", t.Date, t.Time, err)
	}
	return ts, nil
}

type exportResponse struct {
	Results []Event `json:"results"`
}
