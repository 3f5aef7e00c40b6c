package persistence

import (
	"errors"
	"fmt"

	"github.com/example/campus-scheduler/internal/timetable"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same identity exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when stored data would violate a
	// structural invariant such as end ≤ start.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)

// ConflictError aborts a commit whose atomic re-check found the candidate
// overlapping committed state on a room or participant. It carries the full
// conflict set so callers can present one informed decision.
type ConflictError struct {
	Conflicts []timetable.Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("persistence: conflict detected (%d conflicts)", len(e.Conflicts))
}
