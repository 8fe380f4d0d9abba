package textutil

import (
	"strings"
	"time"
)

const (
	// OffsetDateTime matches values like 2025-04-16T19:20:00+0900.
	OffsetDateTime = "2006-01-02T15:04:05-0700"
	// LocalDateTime is an ISO date-time without a zone.
	LocalDateTime = "2006-01-02T15:04:05"
	ISODate       = time.DateOnly
)

// ParseFlexibleDateTime tries primary, then the bare-date fallback anchored
// to local midnight. Blank input is never ok.
func ParseFlexibleDateTime(value, primary, fallback string) (time.Time, bool) {
	return ParseFlexibleDateTimeIn(value, []string{primary}, fallback, time.Local)
}

// ParseFlexibleDateTimeIn is ParseFlexibleDateTime with several primary
// layouts and an explicit zone for values that carry none. Explicit offsets
// in the input are kept.
func ParseFlexibleDateTimeIn(value string, primaries []string, fallback string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range primaries {
		if layout == "" {
			continue
		}
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}

	if fallback == "" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(fallback, value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc), true
}
