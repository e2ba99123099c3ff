package watch

import (
	"fmt"
	"time"
)

// DateLayout is the day format used in booking-service queries.
const DateLayout = "2006-01-02"

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// InHorizon reports whether the window starts strictly after now and no
// later than now+horizon.
func (w Window) InHorizon(now time.Time, horizon time.Duration) bool {
	return w.Start.After(now) && !w.Start.After(now.Add(horizon))
}

// Days returns the calendar dates the window touches, in the location of
// Start. A window ending exactly at midnight does not touch the next day.
func (w Window) Days() []time.Time {
	if !w.End.After(w.Start) {
		return nil
	}
	loc := w.Start.Location()
	y, m, d := w.Start.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	last := w.End.In(loc).Add(-time.Nanosecond)

	var out []time.Time
	for !day.After(last) {
		out = append(out, day)
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func (w Window) String() string {
	if sameDay(w.Start, w.End) {
		return fmt.Sprintf("%s %s-%s", w.Start.Format(DateLayout), w.Start.Format("15:04"), w.End.Format("15:04"))
	}
	return w.Start.Format("2006-01-02 15:04") + " - " + w.End.Format("2006-01-02 15:04")
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
