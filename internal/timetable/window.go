package timetable

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidWindow indicates the window end does not come strictly after its start.
	ErrInvalidWindow = errors.New("timetable: window end must be after start")
	// ErrInvalidTimezone indicates the timezone name is not present in the zone database.
	ErrInvalidTimezone = errors.New("timetable: unknown timezone")
)

// Window is a half-open time range [Start, End). The start instant belongs to
// the window, the end instant does not, so back-to-back bookings never touch.
type Window struct {
	Start time.Time
	End   time.Time
}

// NormalizeWindow canonicalizes a requested window into absolute instants
// anchored in the named timezone. It is a pure function: identical input
// yields an identical window.
func NormalizeWindow(start, end time.Time, tz string) (Window, error) {
	if tz == "" {
		return Window{}, fmt.Errorf("%w: timezone name is empty", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start.In(loc), End: end.In(loc)}, nil
}

// DurationMinutes returns the derived window duration in whole minutes.
func (w Window) DurationMinutes() int {
	return int(w.End.Sub(w.Start) / time.Minute)
}

// IsZero reports whether the window carries no instants.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside the half-open range.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether two half-open windows intersect. Windows that meet
// exactly at a boundary (w.End == o.Start) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Intersect returns the shared sub-window of two overlapping windows.
func (w Window) Intersect(o Window) (Window, bool) {
	if !w.Overlaps(o) {
		return Window{}, false
	}
	out := Window{Start: w.Start, End: w.End}
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	return out, true
}
