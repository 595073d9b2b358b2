// Package timewindow implements the signed relative-time expressions that
// configure when a bot alerts about an event ("1h" = one hour before start,
// "-2d" = two days after).
package timewindow

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidFormat marks a window string that does not match the grammar.
	ErrInvalidFormat = errors.New("invalid time delta format")
	// ErrInvalidTime marks a well-formed string with hours > 23 or minutes > 59.
	ErrInvalidTime = errors.New("invalid time")
)

// Grammar: optional sign, then optional days/hours/minutes components.
// An empty body (with or without a sign) is a valid zero delta.
var deltaRe = regexp.MustCompile(`^([+-])?(?:(\d{1,3})d)?(?:(\d{1,2})h)?(?:(\d{1,2})m)?$`)

// Delta is a signed relative-time window.
//
// The magnitude fields are always non-negative; the sign is stored once in
// Negative. A positive delta alerts before an event starts, a negative one
// after it has started.
type Delta struct {
	Days    int
	Hours   int
	Minutes int

	Negative bool
}

// Parse converts a window string ("30m", "2h", "7d", "-1d12h") into a Delta.
func Parse(text string) (Delta, error) {
	m := deltaRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Delta{}, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}

	days := atoiOrZero(m[2])
	hours := atoiOrZero(m[3])
	minutes := atoiOrZero(m[4])
	if hours > 23 || minutes > 59 {
		return Delta{}, fmt.Errorf("%w: %q", ErrInvalidTime, text)
	}

	return Delta{
		Days:     days,
		Hours:    hours,
		Minutes:  minutes,
		Negative: m[1] == "-",
	}, nil
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// String renders the delta back into its textual form, emitting only non-zero
// components. String is the inverse of Parse for every delta the grammar can
// express.
func (d Delta) String() string {
	var b strings.Builder
	if d.Negative {
		b.WriteByte('-')
	}
	if d.Days != 0 {
		b.WriteString(strconv.Itoa(d.Days))
		b.WriteByte('d')
	}
	if d.Hours != 0 {
		b.WriteString(strconv.Itoa(d.Hours))
		b.WriteByte('h')
	}
	if d.Minutes != 0 {
		b.WriteString(strconv.Itoa(d.Minutes))
		b.WriteByte('m')
	}
	return b.String()
}

// Duration converts the delta to a time.Duration with the sign applied.
func (d Delta) Duration() time.Duration {
	dur := time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute
	if d.Negative {
		return -dur
	}
	return dur
}

// IsZero reports whether the delta has no magnitude.
func (d Delta) IsZero() bool { return d.Days == 0 && d.Hours == 0 && d.Minutes == 0 }

// IsDue reports whether an event starting at start is due for notification at
// instant now.
//
// For non-negative deltas ("alert before start") an event is due iff its start
// lies strictly in the future and no further away than the window; the upper
// bound is inclusive so events exactly at the window edge are admitted.
//
// For negative deltas ("alert after start") every fetched event is due: the
// upstream query was already constrained to the one-hour window ending at
// now+delta, and that server-side bound is trusted without local re-validation.
func (d Delta) IsDue(now, start time.Time) bool {
	if d.Negative {
		return true
	}
	diff := start.Sub(now)
	return diff > 0 && diff <= d.Duration()
}
