package persistence

import (
	"context"
	"time"

	"github.com/example/campus-scheduler/internal/timetable"
)

// ScheduleStore is the narrow durable contract the scheduling core depends
// on. Implementations must perform the room and participant overlap re-check
// atomically inside the commit critical section: regardless of request
// interleaving, at most one committed occurrence occupies a given room, and
// at most one per participant, for any overlapping window.
type ScheduleStore interface {
	// FindActiveByRoom returns non-cancelled occurrences in the room whose
	// windows intersect w.
	FindActiveByRoom(ctx context.Context, roomID string, w timetable.Window) ([]Occurrence, error)
	// FindActiveByParticipant returns non-cancelled occurrences involving the
	// participant (as student or instructor) whose windows intersect w.
	FindActiveByParticipant(ctx context.Context, participantID string, w timetable.Window) ([]Occurrence, error)
	// Commit re-checks and inserts a single occurrence.
	Commit(ctx context.Context, occ Occurrence) (string, error)
	// CommitBatch re-checks and inserts a whole expansion inside one critical
	// section, in ascending start order, with earlier batch members visible
	// to the checks of later ones. All-or-nothing: any conflict aborts the
	// batch with *ConflictError.
	CommitBatch(ctx context.Context, occs []Occurrence) ([]string, error)
	// ReplaceByTemplate cancels the template's reschedulable occurrences and
	// commits the replacement batch inside the same critical section. The
	// retiring occurrences are invisible to the overlap re-check of the new
	// batch. All-or-nothing: any conflict or constraint failure leaves every
	// prior occurrence untouched.
	ReplaceByTemplate(ctx context.Context, templateID string, occs []Occurrence) ([]string, error)
	// GetOccurrence loads one occurrence with participants and attendance.
	GetOccurrence(ctx context.Context, id string) (Occurrence, error)
	// UpdateStatus applies a lifecycle transition, enforcing the state
	// machine against the currently stored status.
	UpdateStatus(ctx context.Context, id string, next timetable.Status) error
	// UpdateWindow moves an occurrence to a new window after re-running the
	// overlap checks (excluding the occurrence itself) atomically.
	UpdateWindow(ctx context.Context, id string, w timetable.Window) error
	// ListByTimeRange returns occurrences intersecting w, start ascending.
	ListByTimeRange(ctx context.Context, w timetable.Window) ([]Occurrence, error)
	// ListByRoomDate returns the room's occurrences on the given calendar day.
	ListByRoomDate(ctx context.Context, roomID string, day time.Time) ([]Occurrence, error)
	// ListByStatus returns occurrences currently in any of the given states.
	ListByStatus(ctx context.Context, statuses ...timetable.Status) ([]Occurrence, error)
	// ListByTemplate returns every occurrence generated from the template.
	ListByTemplate(ctx context.Context, templateID string) ([]Occurrence, error)
	// UpsertAttendance stores one participant's record for an occurrence,
	// overwriting any prior record for the same participant.
	UpsertAttendance(ctx context.Context, occurrenceID string, rec timetable.AttendanceRecord) error
}

// TemplateRepository stores authored session templates.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, tpl SessionTemplate) error
	UpdateTemplate(ctx context.Context, tpl SessionTemplate) error
	GetTemplate(ctx context.Context, id string) (SessionTemplate, error)
	ListTemplates(ctx context.Context) ([]SessionTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ParticipantRepository exposes CRUD operations for participant identities.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, p Participant) error
	UpdateParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context) ([]Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	// MissingParticipantIDs reports which of the given ids are unknown.
	MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error)
}

// CourseDirectory is the read-only lookup used to seed a session's
// participant list. Enrollment business rules live with the directory owner.
type CourseDirectory interface {
	// Roster returns the participant ids enrolled in the course.
	Roster(ctx context.Context, courseID string) ([]string, error)
}
