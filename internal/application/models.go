package application

import (
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

// SessionType identifies the kind of academic session a template describes.
type SessionType string

const (
	SessionTypeClass   SessionType = "class"
	SessionTypeExam    SessionType = "exam"
	SessionTypeEvent   SessionType = "event"
	SessionTypeMeeting SessionType = "meeting"
	SessionTypeHoliday SessionType = "holiday"
)

// Valid reports whether the session type is a known value.
func (t SessionType) Valid() bool {
	switch t {
	case SessionTypeClass, SessionTypeExam, SessionTypeEvent, SessionTypeMeeting, SessionTypeHoliday:
		return true
	}
	return false
}

// SessionInput captures caller provided session template fields. Start and End
// carry the local wall-clock times; Timezone names the IANA zone they are
// interpreted in.
type SessionInput struct {
	Title          string
	Description    string
	Type           SessionType
	CourseID       *string
	InstructorID   string
	RoomID         string
	Capacity       int
	Timezone       string
	Start          time.Time
	End            time.Time
	Pattern        string
	Weekdays       []time.Weekday
	RecurrenceEnd  *time.Time
	Exceptions     []time.Time
	ParticipantIDs []string
}

// CreateSessionParams wraps the data required to create a session series.
type CreateSessionParams struct {
	Input SessionInput
	// Force commits the series even when the advisory conflict pass reports
	// warnings. The store's atomic re-check still rejects genuine overlaps.
	Force bool
}

// UpdateSessionParams wraps the data required to update a session series.
type UpdateSessionParams struct {
	TemplateID string
	Input      SessionInput
	Force      bool
}

// SessionResult carries a persisted template together with its occurrences and
// any advisory conflict warnings.
type SessionResult struct {
	Template    persistence.SessionTemplate
	Occurrences []persistence.Occurrence
	Warnings    []timetable.Conflict
}

// RescheduleParams wraps the data required to move one occurrence. There is no
// force variant: the store's atomic re-check is the only authority on whether
// the new window is free.
type RescheduleParams struct {
	OccurrenceID string
	Start        time.Time
	End          time.Time
	Timezone     string
}

// AttendanceInput captures one participant's attendance for an occurrence.
type AttendanceInput struct {
	ParticipantID string
	Status        timetable.AttendanceStatus
	CheckIn       *time.Time
	CheckOut      *time.Time
	Note          string
}

// AttendanceSummary is the attendance roll of one occurrence plus its derived
// attendance rate in whole percent.
type AttendanceSummary struct {
	OccurrenceID string
	Records      []timetable.AttendanceRecord
	Rate         int
}

// ConflictProbe describes a hypothetical booking checked against committed
// state without persisting anything.
type ConflictProbe struct {
	RoomID         string
	ParticipantIDs []string
	Start          time.Time
	End            time.Time
	Timezone       string
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name       string
	Location   string
	Capacity   int
	Facilities *string
}

// ParticipantInput captures caller provided participant fields.
type ParticipantInput struct {
	Email       string
	DisplayName string
	Instructor  bool
}
