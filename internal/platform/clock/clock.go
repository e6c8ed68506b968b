// Package clock supplies the business timezone and a replaceable source of
// the current time.
package clock

import (
	"time"
	_ "time/tzdata"
)

const DefaultTimezone = "America/Vancouver"

type Clock interface {
	Now() time.Time
}

// System reports wall-clock time converted into Location.
type System struct {
	Location *time.Location
}

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Fixed always reports the same instant. Used by tests and the report CLI.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Location loads a zone by name, falling back to DefaultTimezone when name is empty.
func Location(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}

// StartOfDay returns 00:00:00 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DateOnly truncates t to its calendar date, keeping the date digits and
// discarding the zone. Store layers persist dates in this form.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate reads YYYY-MM-DD as a calendar date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, loc)
}
