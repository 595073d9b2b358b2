package notify

import (
	"fmt"
	"regexp"

	"indibot/internal/indico"
)

// The fixed field set message templates may reference.
var templateFields = map[string]struct{}{
	"title":      {},
	"url":        {},
	"start_time": {},
	"start_date": {},
	"start_tz":   {},
	"room":       {},
}

var placeholderRe = regexp.MustCompile(`\{([^{}]*)\}`)

// ValidateTemplate rejects templates referencing anything outside the fixed
// event field set.
func ValidateTemplate(tpl string) error {
	for _, m := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
		if _, ok := templateFields[m[1]]; !ok {
			return fmt.Errorf("template references unknown field %q", m[1])
		}
	}
	return nil
}

// templateData flattens an event into the placeholder values. The start time
// is truncated to HH:MM; a missing room renders as "no room".
func templateData(evt indico.Event) map[string]string {
	startTime := evt.StartDate.Time
	if len(startTime) > 5 {
		startTime = startTime[:5]
	}
	return map[string]string{
		"title":      evt.Title,
		"url":        evt.URL,
		"start_time": startTime,
		"start_date": evt.StartDate.Date,
		"start_tz":   evt.StartDate.TZ,
		"room":       evt.RoomOrDefault(),
	}
}

// render resolves {name} placeholders against the event data. Templates are
// validated at construction time, so unknown placeholders cannot reach here.
func render(tpl string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := data[name]; ok {
			return v
		}
		return m
	})
}
