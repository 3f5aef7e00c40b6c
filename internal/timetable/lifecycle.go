package timetable

import (
	"errors"
	"time"
)

// Status enumerates the lifecycle states of a committed occurrence.
type Status string

const (
	// StatusScheduled is the initial state of every committed occurrence.
	StatusScheduled Status = "scheduled"
	// StatusOngoing marks an occurrence whose window contains the current time.
	StatusOngoing Status = "ongoing"
	// StatusCompleted is terminal; the occurrence window has fully elapsed.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal; the occurrence is retained for audit but
	// no longer occupies its room or participants.
	StatusCancelled Status = "cancelled"
	// StatusPostponed parks an occurrence until it is rescheduled into a new,
	// re-validated window.
	StatusPostponed Status = "postponed"
)

// ErrInvalidTransition indicates a status change the state machine forbids.
var ErrInvalidTransition = errors.New("timetable: invalid status transition")

var transitions = map[Status][]Status{
	StatusScheduled: {StatusOngoing, StatusCancelled, StatusPostponed},
	StatusOngoing:   {StatusCompleted, StatusCancelled},
	StatusPostponed: {StatusScheduled, StatusCancelled},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the occurrence still occupies its room and
// participants for conflict purposes. Only cancellation releases them.
func (s Status) Active() bool {
	return s.Valid() && s != StatusCancelled
}

// Transition validates a status change against the state machine.
func Transition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidTransition
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// CanReschedule reports whether the occurrence may receive a new time window.
func CanReschedule(s Status) bool {
	return s == StatusScheduled || s == StatusPostponed
}

// AttendanceEligible reports whether attendance may be recorded in state s.
func AttendanceEligible(s Status) bool {
	return s == StatusOngoing || s == StatusCompleted
}

// NextByClock derives the next automatic transition for the caller's sweep.
// A scheduled occurrence becomes ongoing once now enters [start, end); an
// ongoing occurrence completes once now passes end. The second value is false
// when no clock-driven move applies. The core runs no timer of its own; the
// caller applies steps repeatedly until none remains.
func NextByClock(current Status, w Window, now time.Time) (Status, bool) {
	switch current {
	case StatusScheduled:
		if !now.Before(w.Start) {
			return StatusOngoing, true
		}
	case StatusOngoing:
		if !now.Before(w.End) {
			return StatusCompleted, true
		}
	}
	return current, false
}
