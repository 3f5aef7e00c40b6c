package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

var (
	roomCounter        uint64
	participantCounter uint64
	courseCounter      uint64
	templateCounter    uint64
	occurrenceCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Science Building",
		Capacity:  int(20 + idx%4*10),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomLocation overrides the generated location.
func WithRoomLocation(location string) RoomOption {
	return func(f *RoomFixture) {
		f.Location = location
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomFacilities sets the facilities description on the fixture.
func WithRoomFacilities(facility string) RoomOption {
	return func(fx *RoomFixture) {
		value := facility
		fx.Facilities = &value
	}
}

// WithRoomTimestamps sets both created and updated timestamps.
func WithRoomTimestamps(created, updated time.Time) RoomOption {
	return func(f *RoomFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
	}
}

// -------------------------- Participant fixtures -------------------------

// ParticipantFixture represents a deterministic participant record.
type ParticipantFixture struct {
	ID          string
	Email       string
	DisplayName string
	Instructor  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParticipantOption configures the generated participant fixture.
type ParticipantOption func(*ParticipantFixture)

// NewParticipantFixture returns a deterministic participant fixture with
// optional overrides.
func NewParticipantFixture(opts ...ParticipantOption) ParticipantFixture {
	idx := atomic.AddUint64(&participantCounter, 1)
	id := fmt.Sprintf("participant-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ParticipantFixture{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.edu", id),
		DisplayName: fmt.Sprintf("Participant %03d", idx),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithParticipantID overrides the generated participant ID.
func WithParticipantID(id string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.ID = id
	}
}

// WithParticipantEmail overrides the generated email address.
func WithParticipantEmail(email string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.Email = email
	}
}

// WithParticipantDisplayName overrides the generated display name.
func WithParticipantDisplayName(name string) ParticipantOption {
	return func(f *ParticipantFixture) {
		f.DisplayName = name
	}
}

// AsInstructor marks the fixture as an instructor.
func AsInstructor() ParticipantOption {
	return func(f *ParticipantFixture) {
		f.Instructor = true
	}
}

// Persistence returns the fixture as a persistence.Participant value.
func (f ParticipantFixture) Persistence() persistence.Participant {
	return persistence.Participant{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Instructor:  f.Instructor,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Input returns the fixture as an application.ParticipantInput.
func (f ParticipantFixture) Input() application.ParticipantInput {
	return application.ParticipantInput{
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Instructor:  f.Instructor,
	}
}

// ---------------------------- Course fixtures ----------------------------

// CourseFixture represents a deterministic course record.
type CourseFixture struct {
	ID        string
	Code      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CourseOption configures the generated course fixture.
type CourseOption func(*CourseFixture)

// NewCourseFixture returns a deterministic course fixture with optional
// overrides.
func NewCourseFixture(opts ...CourseOption) CourseFixture {
	idx := atomic.AddUint64(&courseCounter, 1)
	fixture := CourseFixture{
		ID:        fmt.Sprintf("course-%03d", idx),
		Code:      fmt.Sprintf("CS-%03d", idx),
		Title:     fmt.Sprintf("Course %03d", idx),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCourseID overrides the generated course ID.
func WithCourseID(id string) CourseOption {
	return func(f *CourseFixture) {
		f.ID = id
	}
}

// WithCourseCode overrides the generated course code.
func WithCourseCode(code string) CourseOption {
	return func(f *CourseFixture) {
		f.Code = code
	}
}

// Persistence returns the fixture as a persistence.Course value.
func (f CourseFixture) Persistence() persistence.Course {
	return persistence.Course{
		ID:        f.ID,
		Code:      f.Code,
		Title:     f.Title,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// --------------------------- Template fixtures ---------------------------

// TemplateFixture represents a deterministic session template record.
type TemplateFixture struct {
	ID             string
	Title          string
	Description    string
	Type           string
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TemplateOption configures the generated template fixture.
type TemplateOption func(*TemplateFixture)

// NewTemplateFixture returns a deterministic session template fixture. The
// default is a single (non-recurring) one hour class in UTC.
func NewTemplateFixture(opts ...TemplateOption) TemplateFixture {
	idx := atomic.AddUint64(&templateCounter, 1)
	id := fmt.Sprintf("template-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	fixture := TemplateFixture{
		ID:           id,
		Title:        fmt.Sprintf("Session %03d", idx),
		Type:         "class",
		InstructorID: fmt.Sprintf("instructor-%03d", idx),
		RoomID:       fmt.Sprintf("room-%03d", idx),
		Capacity:     30,
		Timezone:     "UTC",
		Start:        start,
		End:          start.Add(time.Hour),
		Pattern:      "none",
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTemplateID overrides the generated template ID.
func WithTemplateID(id string) TemplateOption {
	return func(f *TemplateFixture) {
		f.ID = id
	}
}

// WithTemplateTitle overrides the generated title.
func WithTemplateTitle(title string) TemplateOption {
	return func(f *TemplateFixture) {
		f.Title = title
	}
}

// WithTemplateType sets the session type.
func WithTemplateType(sessionType string) TemplateOption {
	return func(f *TemplateFixture) {
		f.Type = sessionType
	}
}

// WithTemplateCourse associates the template with a course.
func WithTemplateCourse(courseID string) TemplateOption {
	return func(f *TemplateFixture) {
		id := courseID
		f.CourseID = &id
	}
}

// WithTemplateInstructor sets the instructor ID.
func WithTemplateInstructor(id string) TemplateOption {
	return func(f *TemplateFixture) {
		f.InstructorID = id
	}
}

// WithTemplateRoom sets the room ID.
func WithTemplateRoom(id string) TemplateOption {
	return func(f *TemplateFixture) {
		f.RoomID = id
	}
}

// WithTemplateWindow sets the local start and end wall-clock times together
// with the timezone they are interpreted in.
func WithTemplateWindow(start, end time.Time, tz string) TemplateOption {
	return func(f *TemplateFixture) {
		f.Start = start
		f.End = end
		f.Timezone = tz
	}
}

// WithTemplateRecurrence sets the recurrence pattern and weekdays.
func WithTemplateRecurrence(pattern string, weekdays ...time.Weekday) TemplateOption {
	return func(f *TemplateFixture) {
		f.Pattern = pattern
		f.Weekdays = append([]time.Weekday(nil), weekdays...)
	}
}

// WithTemplateRecurrenceEnd sets the inclusive recurrence end date.
func WithTemplateRecurrenceEnd(t time.Time) TemplateOption {
	return func(f *TemplateFixture) {
		end := t
		f.RecurrenceEnd = &end
	}
}

// WithTemplateExceptions sets the excluded occurrence dates.
func WithTemplateExceptions(dates ...time.Time) TemplateOption {
	return func(f *TemplateFixture) {
		f.Exceptions = append([]time.Time(nil), dates...)
	}
}

// WithTemplateParticipants sets the explicit participant roster.
func WithTemplateParticipants(participants ...string) TemplateOption {
	return func(f *TemplateFixture) {
		f.ParticipantIDs = append([]string(nil), participants...)
	}
}

// Persistence returns the fixture as a persistence.SessionTemplate value.
func (f TemplateFixture) Persistence() persistence.SessionTemplate {
	return persistence.SessionTemplate{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		Type:          f.Type,
		CourseID:      copyStringPtr(f.CourseID),
		InstructorID:  f.InstructorID,
		RoomID:        f.RoomID,
		Capacity:      f.Capacity,
		Timezone:      f.Timezone,
		Start:         f.Start,
		End:           f.End,
		Pattern:       f.Pattern,
		Weekdays:      append([]time.Weekday(nil), f.Weekdays...),
		RecurrenceEnd: copyTimePtr(f.RecurrenceEnd),
		Exceptions:    append([]time.Time(nil), f.Exceptions...),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Input returns the fixture as an application.SessionInput.
func (f TemplateFixture) Input() application.SessionInput {
	return application.SessionInput{
		Title:          f.Title,
		Description:    f.Description,
		Type:           application.SessionType(f.Type),
		CourseID:       copyStringPtr(f.CourseID),
		InstructorID:   f.InstructorID,
		RoomID:         f.RoomID,
		Capacity:       f.Capacity,
		Timezone:       f.Timezone,
		Start:          f.Start,
		End:            f.End,
		Pattern:        f.Pattern,
		Weekdays:       append([]time.Weekday(nil), f.Weekdays...),
		RecurrenceEnd:  copyTimePtr(f.RecurrenceEnd),
		Exceptions:     append([]time.Time(nil), f.Exceptions...),
		ParticipantIDs: append([]string(nil), f.ParticipantIDs...),
	}
}

// -------------------------- Occurrence fixtures --------------------------

// OccurrenceFixture represents a deterministic occurrence record.
type OccurrenceFixture struct {
	ID             string
	TemplateID     string
	RoomID         string
	InstructorID   string
	Start          time.Time
	End            time.Time
	Status         timetable.Status
	ParticipantIDs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OccurrenceOption configures the generated occurrence fixture.
type OccurrenceOption func(*OccurrenceFixture)

// NewOccurrenceFixture returns a deterministic occurrence fixture. Successive
// fixtures occupy disjoint hour-long windows so they never conflict unless a
// test overrides the window.
func NewOccurrenceFixture(opts ...OccurrenceOption) OccurrenceFixture {
	idx := atomic.AddUint64(&occurrenceCounter, 1)
	id := fmt.Sprintf("occurrence-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * 2 * time.Hour)
	fixture := OccurrenceFixture{
		ID:           id,
		TemplateID:   fmt.Sprintf("template-%03d", idx),
		RoomID:       fmt.Sprintf("room-%03d", idx),
		InstructorID: fmt.Sprintf("instructor-%03d", idx),
		Start:        start,
		End:          start.Add(time.Hour),
		Status:       timetable.StatusScheduled,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithOccurrenceID overrides the generated occurrence ID.
func WithOccurrenceID(id string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.ID = id
	}
}

// WithOccurrenceTemplate sets the owning template ID.
func WithOccurrenceTemplate(id string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.TemplateID = id
	}
}

// WithOccurrenceRoom sets the room ID.
func WithOccurrenceRoom(id string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.RoomID = id
	}
}

// WithOccurrenceInstructor sets the instructor ID.
func WithOccurrenceInstructor(id string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.InstructorID = id
	}
}

// WithOccurrenceWindow sets the start and end times.
func WithOccurrenceWindow(start, end time.Time) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.Start = start
		f.End = end
	}
}

// WithOccurrenceStatus sets the lifecycle status.
func WithOccurrenceStatus(status timetable.Status) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.Status = status
	}
}

// WithOccurrenceParticipants sets the participant roster.
func WithOccurrenceParticipants(participants ...string) OccurrenceOption {
	return func(f *OccurrenceFixture) {
		f.ParticipantIDs = append([]string(nil), participants...)
	}
}

// Persistence returns the fixture as a persistence.Occurrence value.
func (f OccurrenceFixture) Persistence() persistence.Occurrence {
	return persistence.Occurrence{
		ID:             f.ID,
		TemplateID:     f.TemplateID,
		RoomID:         f.RoomID,
		InstructorID:   f.InstructorID,
		Start:          f.Start,
		End:            f.End,
		Status:         f.Status,
		ParticipantIDs: append([]string(nil), f.ParticipantIDs...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// helper to deep copy optional strings.
func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
