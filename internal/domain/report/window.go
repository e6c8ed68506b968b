package report

import (
	"fmt"
	"strings"
	"time"

	"workhours/internal/platform/clock"
)

// WeeklyWindow returns the Monday and Friday of the previous working week
// relative to now in loc: Monday is today minus the weekday number (Sunday is
// 0) minus six days. Both bounds are calendar dates and inclusive.
func WeeklyWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	monday := time.Date(local.Year(), local.Month(), local.Day()-int(local.Weekday())-6, 0, 0, 0, 0, time.UTC)
	return clock.DateOnly(monday), clock.DateOnly(monday.AddDate(0, 0, 4))
}

// WindowContaining returns the Monday..Friday of the week that contains day.
// Used when an administrator asks for a specific week.
func WindowContaining(day time.Time) (time.Time, time.Time) {
	day = clock.DateOnly(day)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 4)
}

// Label renders the attachment label, e.g. "03-07JUN24" for 3..7 June 2024.
// Month and year come from the Monday.
func Label(start, end time.Time) string {
	return fmt.Sprintf("%02d-%02d%s%s", start.Day(), end.Day(), strings.ToUpper(start.Format("Jan")), start.Format("06"))
}
