// Package timeofday turns the loosely formatted time-of-day strings stored on
// events ("9am", "7", "14:30", "2:15 PM") into canonical 24-hour "HH:mm" values
// and anchors them to a calendar day.
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for event and registration dates.
const DateLayout = "2006-01-02"

// Midnight is returned by Normalize for anything it cannot read.
const Midnight = "00:00"

// ErrUnreadableClock is returned by Compose for a non-blank clock it cannot read.
var ErrUnreadableClock = errors.New("unreadable time of day")

// Normalize converts raw into zero-padded 24-hour "HH:mm".
//
// Recognised forms are H, HH, H:mm and HH:mm (an optional :ss is dropped), each
// optionally followed by am/pm in any case and spacing. Normalize never fails:
// unreadable input yields "00:00". Callers that need to tell a real midnight
// from garbage use Parse.
func Normalize(raw string) string {
	hhmm, _ := Parse(raw)
	return hhmm
}

// Parse is Normalize that also reports whether raw was readable.
func Parse(raw string) (string, bool) {
	hour, minute, ok := parse(raw)
	if !ok {
		return Midnight, false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func parse(raw string) (hour, minute int, ok bool) {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	s = strings.ReplaceAll(s, ".", "")
	if s == "" {
		return 0, 0, false
	}

	meridiem := ""
	switch {
	case strings.HasSuffix(s, "am"):
		meridiem, s = "am", strings.TrimSuffix(s, "am")
	case strings.HasSuffix(s, "pm"):
		meridiem, s = "pm", strings.TrimSuffix(s, "pm")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, 0, false
	}
	if len(parts[0]) == 0 || len(parts[0]) > 2 || !digits(parts[0]) {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(parts[0])
	if len(parts) >= 2 {
		if len(parts[1]) != 2 || !digits(parts[1]) {
			return 0, 0, false
		}
		minute, _ = strconv.Atoi(parts[1])
	}
	if len(parts) == 3 && (len(parts[2]) != 2 || !digits(parts[2])) {
		return 0, 0, false
	}
	if minute > 59 {
		return 0, 0, false
	}

	switch meridiem {
	case "":
		if hour > 23 {
			return 0, 0, false
		}
	default:
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	}
	return hour, minute, true
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseDay returns 00:00 of date (YYYY-MM-DD) in loc.
func ParseDay(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return d, nil
}

// Compose anchors raw to date in loc. A blank raw means midnight. A clock
// that cannot be read fails with ErrUnreadableClock instead of silently
// becoming midnight.
func Compose(date, raw string, loc *time.Location) (time.Time, error) {
	day, err := ParseDay(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	var hour, minute int
	if strings.TrimSpace(raw) != "" {
		var ok bool
		if hour, minute, ok = parse(raw); !ok {
			return time.Time{}, fmt.Errorf("compose %q on %s: %w", raw, date, ErrUnreadableClock)
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// EndOfDay returns 23:59:59.999 of date in loc.
func EndOfDay(date string, loc *time.Location) (time.Time, error) {
	day, err := ParseDay(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), loc), nil
}

// Today formats now as a calendar day in loc.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar day.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
