package persistence

import (
	"time"

	"github.com/example/campus-scheduler/internal/timetable"
)

// Room represents a bookable room catalog entry.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Participant represents an instructor or student identity referenced by
// occurrences. The scheduler owns no enrollment business rules; it only needs
// the identity to exist.
type Participant struct {
	ID          string
	Email       string
	DisplayName string
	Instructor  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Course represents a course whose roster seeds a session's participant list.
type Course struct {
	ID        string
	Code      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionTemplate is the authored definition a series of occurrences is
// generated from. It is immutable except through an explicit update that
// regenerates the affected occurrences.
type SessionTemplate struct {
	ID            string
	Title         string
	Description   string
	Type          string
	CourseID      *string
	InstructorID  string
	RoomID        string
	Capacity      int
	Timezone      string
	Start         time.Time
	End           time.Time
	Pattern       string
	Weekdays      []time.Weekday
	RecurrenceEnd *time.Time
	Exceptions    []time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Occurrence is one concrete dated instantiation of a template. Cancelled
// occurrences are retained for audit and never deleted.
type Occurrence struct {
	ID             string
	TemplateID     string
	RoomID         string
	InstructorID   string
	Start          time.Time
	End            time.Time
	Status         timetable.Status
	ParticipantIDs []string
	Attendance     []timetable.AttendanceRecord
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Window returns the occurrence's half-open time window.
func (o Occurrence) Window() timetable.Window {
	return timetable.Window{Start: o.Start, End: o.End}
}

// Booking projects the occurrence into the conflict detector's input shape.
// The instructor participates in the booking alongside the student roster.
func (o Occurrence) Booking() timetable.Booking {
	participants := make([]string, 0, len(o.ParticipantIDs)+1)
	participants = append(participants, o.ParticipantIDs...)
	if o.InstructorID != "" {
		participants = append(participants, o.InstructorID)
	}
	return timetable.Booking{
		ID:             o.ID,
		RoomID:         o.RoomID,
		ParticipantIDs: participants,
		Window:         o.Window(),
	}
}
