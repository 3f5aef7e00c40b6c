package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Pattern identifies a supported recurrence pattern.
type Pattern string

const (
	// PatternNone yields the base window alone.
	PatternNone Pattern = "none"
	// PatternDaily steps by 24 hours.
	PatternDaily Pattern = "daily"
	// PatternWeekly emits the selected weekdays every week.
	PatternWeekly Pattern = "weekly"
	// PatternBiweekly emits the selected weekdays every other week.
	PatternBiweekly Pattern = "biweekly"
	// PatternMonthly steps by calendar month preserving the day of month;
	// months lacking that day are skipped, never clamped.
	PatternMonthly Pattern = "monthly"
)

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	switch p {
	case PatternNone, PatternDaily, PatternWeekly, PatternBiweekly, PatternMonthly:
		return true
	}
	return false
}

func (p Pattern) weekly() bool {
	return p == PatternWeekly || p == PatternBiweekly
}

// DefaultCap bounds expansion work: one occurrence per day of a leap year.
const DefaultCap = 366

var (
	// ErrInvalidRule indicates a structurally invalid recurrence rule.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
	// ErrLimitExceeded indicates expansion would exceed the occurrence cap.
	ErrLimitExceeded = errors.New("recurrence: expansion limit exceeded")
)

// Rule describes how concrete occurrence windows are generated from a base
// window. EndDate and Exceptions are date-valued: their calendar date is used
// and their location ignored. Exceptions only ever remove a generated date.
type Rule struct {
	Pattern    Pattern
	Weekdays   []time.Weekday
	EndDate    *time.Time
	Exceptions []time.Time
}

// Validate checks the rule against the base window start.
func (r Rule) Validate(baseStart time.Time) error {
	if !r.Pattern.Valid() {
		return fmt.Errorf("%w: unknown pattern %q", ErrInvalidRule, r.Pattern)
	}
	if len(r.Weekdays) > 0 && !r.Pattern.weekly() {
		return fmt.Errorf("%w: weekday set requires a weekly or biweekly pattern", ErrInvalidRule)
	}
	for _, day := range r.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", ErrInvalidRule, day)
		}
	}
	if r.EndDate != nil {
		endY, endM, endD := r.EndDate.Date()
		baseY, baseM, baseD := baseStart.Date()
		end := time.Date(endY, endM, endD, 0, 0, 0, 0, time.UTC)
		base := time.Date(baseY, baseM, baseD, 0, 0, 0, 0, time.UTC)
		if end.Before(base) {
			return fmt.Errorf("%w: end date precedes the base window", ErrInvalidRule)
		}
	}
	return nil
}
