// Package schedule holds the pure time arithmetic the booking core is built
// on: wall-clock labels ("9:00 AM", "14:30") combined with calendar dates in
// a single configured business timezone.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidDate       = errors.New("invalid date")
)

// DefaultTimezone is the salon's business timezone. Every date/label pair in
// the system resolves against one configured zone; nothing else applies ad
// hoc offsets.
const DefaultTimezone = "Asia/Colombo"

func LoadZone(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}

// ParseClock parses a wall-clock label into hour (0-23) and minute. It
// accepts a 12-hour label with an AM/PM suffix ("9:05 PM", "12:00am") or a
// bare 24-hour "H:MM" label.
func ParseClock(label string) (hour, minute int, err error) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return 0, 0, ErrInvalidTimeFormat
	}

	upper := strings.ToUpper(trimmed)
	meridiem := ""
	if strings.HasSuffix(upper, "AM") {
		meridiem = "AM"
	} else if strings.HasSuffix(upper, "PM") {
		meridiem = "PM"
	}

	clock := trimmed
	if meridiem != "" {
		clock = strings.TrimSpace(trimmed[:len(trimmed)-2])
	}

	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidTimeFormat
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, ErrInvalidTimeFormat
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return 0, 0, ErrInvalidTimeFormat
	}

	switch meridiem {
	case "AM":
		if h < 1 || h > 12 {
			return 0, 0, ErrInvalidTimeFormat
		}
		if h == 12 {
			h = 0
		}
	case "PM":
		if h < 1 || h > 12 {
			return 0, 0, ErrInvalidTimeFormat
		}
		if h != 12 {
			h += 12
		}
	default:
		if h < 0 || h > 23 {
			return 0, 0, ErrInvalidTimeFormat
		}
	}
	return h, m, nil
}

// FormatClock renders hour/minute as the canonical 12-hour label used in
// stored appointments, e.g. (13, 5) -> "1:05 PM".
func FormatClock(hour, minute int) string {
	meridiem := "AM"
	h := hour
	if h >= 12 {
		meridiem = "PM"
	}
	if h == 0 {
		h = 12
	} else if h > 12 {
		h -= 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, meridiem)
}

// AddMinutes returns the 12-hour label n minutes after the given label,
// wrapping across midnight.
func AddMinutes(label string, n int) (string, error) {
	h, m, err := ParseClock(label)
	if err != nil {
		return "", err
	}
	total := h*60 + m + n
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
	}
	return FormatClock(total/60, total%60), nil
}

// ParseDate parses a calendar date ("2006-01-02", or an RFC 3339 timestamp
// whose calendar day is taken in the business zone) into midnight of that day
// in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.ParseInLocation("2006-01-02", trimmed, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return DateOf(t.In(loc)), nil
	}
	return time.Time{}, ErrInvalidDate
}

// DateOf truncates an instant to midnight of its calendar day, keeping the
// location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Combine builds the instant at the given wall-clock label on day, in day's
// location.
func Combine(day time.Time, label string) (time.Time, error) {
	h, m, err := ParseClock(label)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}

// EndInstant builds the instant at which a slot starting at startLabel on day
// ends at endLabel. An end clock earlier than the start clock means the slot
// wrapped past midnight, so the end lands on the following day.
func EndInstant(day time.Time, startLabel, endLabel string) (time.Time, error) {
	sh, sm, err := ParseClock(startLabel)
	if err != nil {
		return time.Time{}, err
	}
	eh, em, err := ParseClock(endLabel)
	if err != nil {
		return time.Time{}, err
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, day.Location())
	if eh*60+em < sh*60+sm {
		end = end.AddDate(0, 0, 1)
	}
	return end, nil
}
