package jobs

import "time"

// Schedule yields the next firing strictly after a given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Weekly fires once a week on Weekday at Hour:Minute in Location.
type Weekly struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// Next returns the first firing strictly after after.
func (w Weekly) Next(after time.Time) time.Time {
	local := after.In(orUTC(w.Location))
	days := (int(w.Weekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+days, w.Hour, w.Minute, 0, 0, local.Location())
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+days+7, w.Hour, w.Minute, 0, 0, local.Location())
	}
	return candidate
}

// Daily fires every day at Hour:Minute in Location.
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

func (d Daily) Next(after time.Time) time.Time {
	local := after.In(orUTC(d.Location))
	candidate := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, local.Location())
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, local.Location())
	}
	return candidate
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
