package ledger

import (
	"time"

	"workhours/internal/platform/clock"
)

const DefaultLoggingWindow = 48 * time.Hour

// Guard rejects submissions made too long after the logged date began.
type Guard struct {
	Location *time.Location
	Window   time.Duration
}

func NewGuard(loc *time.Location, window time.Duration) Guard {
	if loc == nil {
		loc = time.UTC
	}
	if window <= 0 {
		window = DefaultLoggingWindow
	}
	return Guard{Location: loc, Window: window}
}

// Deadline is the start of logDate's calendar day plus the window. logDate's
// date digits are read as a business-timezone date.
func (g Guard) Deadline(logDate time.Time) time.Time {
	start := time.Date(logDate.Year(), logDate.Month(), logDate.Day(), 0, 0, 0, 0, g.Location)
	return start.Add(g.Window)
}

// WithinWindow reports whether now is no later than the deadline.
func (g Guard) WithinWindow(logDate, now time.Time) bool {
	return !now.After(g.Deadline(logDate))
}

func (g Guard) Check(logDate, now time.Time) error {
	if !g.WithinWindow(logDate, now) {
		return ErrWindowExpired
	}
	return nil
}

// Today is the current business date.
func (g Guard) Today(now time.Time) time.Time {
	return clock.DateOnly(now.In(g.Location))
}
