package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/campus-scheduler/internal/timetable"
)

// Sequence is the lazy, restartable expansion of one rule over one base
// window. Construction validates the rule; iteration is pure and ascending,
// so very large expansions can be consumed incrementally before full
// materialization.
type Sequence struct {
	base timetable.Window
	rule Rule
	cap  int
}

// Expand validates the rule against the base window and returns its sequence.
// The base window's location anchors all generated wall-clock times, so a
// series keeps its local start time across DST changes.
func Expand(base timetable.Window, rule Rule, capLimit int) (*Sequence, error) {
	if rule.Pattern == "" {
		rule.Pattern = PatternNone
	}
	if err := rule.Validate(base.Start); err != nil {
		return nil, err
	}
	if capLimit <= 0 {
		capLimit = DefaultCap
	}
	return &Sequence{base: base, rule: rule, cap: capLimit}, nil
}

// Cap returns the expansion bound the sequence enforces on materialization.
func (s *Sequence) Cap() int {
	return s.cap
}

// Iter returns a fresh iterator over the sequence. Each call restarts from
// the first occurrence. The iterator never yields more than the cap.
func (s *Sequence) Iter() func() (timetable.Window, bool) {
	duration := s.base.End.Sub(s.base.Start)
	exceptions := dateSet(s.rule.Exceptions)
	emitted := 0

	if s.rule.Pattern == PatternNone {
		done := false
		return func() (timetable.Window, bool) {
			if done {
				return timetable.Window{}, false
			}
			done = true
			if _, skip := exceptions[dateKey(s.base.Start)]; skip {
				return timetable.Window{}, false
			}
			return s.base, true
		}
	}

	next := s.iterator()
	return func() (timetable.Window, bool) {
		for {
			if emitted >= s.cap {
				return timetable.Window{}, false
			}
			start, ok := next()
			if !ok {
				return timetable.Window{}, false
			}
			if _, skip := exceptions[dateKey(start)]; skip {
				continue
			}
			emitted++
			return timetable.Window{Start: start, End: start.Add(duration)}, true
		}
	}
}

// Windows materializes the full sequence in ascending start order. It fails
// with ErrLimitExceeded when the expansion would exceed the cap, including
// unbounded rules that carry no end date.
func (s *Sequence) Windows() ([]timetable.Window, error) {
	duration := s.base.End.Sub(s.base.Start)
	exceptions := dateSet(s.rule.Exceptions)

	if s.rule.Pattern == PatternNone {
		if _, skip := exceptions[dateKey(s.base.Start)]; skip {
			return nil, nil
		}
		return []timetable.Window{s.base}, nil
	}

	next := s.iterator()
	out := make([]timetable.Window, 0)
	for {
		start, ok := next()
		if !ok {
			return out, nil
		}
		if _, skip := exceptions[dateKey(start)]; skip {
			continue
		}
		if len(out) >= s.cap {
			return nil, fmt.Errorf("%w: more than %d occurrences", ErrLimitExceeded, s.cap)
		}
		out = append(out, timetable.Window{Start: start, End: start.Add(duration)})
	}
}

// iterator builds the underlying RRULE iterator for recurring patterns.
func (s *Sequence) iterator() func() (time.Time, bool) {
	opt := rrule.ROption{
		Dtstart: s.base.Start,
		Wkst:    rrule.MO,
	}

	switch s.rule.Pattern {
	case PatternDaily:
		opt.Freq = rrule.DAILY
	case PatternWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = rruleWeekdays(s.weekdaysOrDefault())
	case PatternBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
		opt.Byweekday = rruleWeekdays(s.weekdaysOrDefault())
	case PatternMonthly:
		opt.Freq = rrule.MONTHLY
	}

	if s.rule.EndDate != nil {
		// End date is inclusive: bound the rule at the last instant of that
		// calendar date in the base window's location.
		y, m, d := s.rule.EndDate.Date()
		opt.Until = time.Date(y, m, d, 23, 59, 59, 0, s.base.Start.Location())
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		// Rule validation precedes iterator construction; an error here means
		// the option mapping itself is broken, so surface nothing.
		return func() (time.Time, bool) { return time.Time{}, false }
	}
	return r.Iterator()
}

func (s *Sequence) weekdaysOrDefault() []time.Weekday {
	if len(s.rule.Weekdays) > 0 {
		return s.rule.Weekdays
	}
	return []time.Weekday{s.base.Start.Weekday()}
}

func rruleWeekdays(days []time.Weekday) []rrule.Weekday {
	out := make([]rrule.Weekday, 0, len(days))
	seen := make(map[time.Weekday]struct{}, len(days))
	for _, day := range days {
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, rruleWeekday(day))
	}
	return out
}

func rruleWeekday(day time.Weekday) rrule.Weekday {
	switch day {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// dateKey identifies a calendar date independent of location.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func dateSet(dates []time.Time) map[string]struct{} {
	if len(dates) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		out[dateKey(d)] = struct{}{}
	}
	return out
}
