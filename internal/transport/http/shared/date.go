package shared

import (
	"time"

	"workhours/internal/platform/clock"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// ParseCalendarDate parses a work date. A full timestamp is reduced to its
// calendar date in loc.
func ParseCalendarDate(value string, loc *time.Location) (time.Time, error) {
	parsed, err := ParseDate(value)
	if err != nil || parsed.IsZero() {
		return parsed, err
	}
	if len(value) > len("2006-01-02") && loc != nil {
		parsed = parsed.In(loc)
	}
	return clock.DateOnly(parsed), nil
}
