package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

// Store is an in-memory Schedule Store used for deterministic tests and
// single-process deployments. A single RWMutex serializes every commit, so
// the overlap re-check and the insert happen inside one critical section.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]persistence.Room
	participants map[string]persistence.Participant
	courses      map[string]persistence.Course
	enrollments  map[string][]string
	templates    map[string]persistence.SessionTemplate
	occurrences  map[string]persistence.Occurrence
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]persistence.Room),
		participants: make(map[string]persistence.Participant),
		courses:      make(map[string]persistence.Course),
		enrollments:  make(map[string][]string),
		templates:    make(map[string]persistence.SessionTemplate),
		occurrences:  make(map[string]persistence.Occurrence),
	}
}

// --- ScheduleStore implementation ---

// FindActiveByRoom returns non-cancelled occurrences in the room intersecting w.
func (s *Store) FindActiveByRoom(ctx context.Context, roomID string, w timetable.Window) ([]persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Occurrence
	for _, occ := range s.occurrences {
		if occ.RoomID != roomID || !occ.Status.Active() {
			continue
		}
		if occ.Window().Overlaps(w) {
			out = append(out, cloneOccurrence(occ))
		}
	}
	sortOccurrences(out)
	return out, nil
}

// FindActiveByParticipant returns non-cancelled occurrences involving the
// participant whose windows intersect w.
func (s *Store) FindActiveByParticipant(ctx context.Context, participantID string, w timetable.Window) ([]persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Occurrence
	for _, occ := range s.occurrences {
		if !occ.Status.Active() || !occ.Window().Overlaps(w) {
			continue
		}
		if occurrenceInvolves(occ, participantID) {
			out = append(out, cloneOccurrence(occ))
		}
	}
	sortOccurrences(out)
	return out, nil
}

// Commit re-checks and inserts a single occurrence.
func (s *Store) Commit(ctx context.Context, occ persistence.Occurrence) (string, error) {
	ids, err := s.CommitBatch(ctx, []persistence.Occurrence{occ})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CommitBatch inserts the batch inside one critical section. Each occurrence
// is re-checked against the latest stored state plus the earlier members of
// the same batch; any conflict aborts the whole batch with *ConflictError
// carrying the full conflict set.
func (s *Store) CommitBatch(ctx context.Context, occs []persistence.Occurrence) ([]string, error) {
	if len(occs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, occ := range occs {
		if occ.ID == "" || !occ.End.After(occ.Start) {
			return nil, persistence.ErrConstraintViolation
		}
		if _, exists := s.occurrences[occ.ID]; exists {
			return nil, persistence.ErrDuplicate
		}
	}

	var conflicts []timetable.Conflict
	staged := make([]timetable.Booking, 0, len(occs))
	for _, occ := range occs {
		existing := s.activeBookingsLocked(occ.Window(), occ.ID)
		existing = append(existing, staged...)
		conflicts = append(conflicts, timetable.DetectConflicts(existing, occ.Booking())...)
		staged = append(staged, occ.Booking())
	}
	if len(conflicts) > 0 {
		return nil, &persistence.ConflictError{Conflicts: conflicts}
	}

	ids := make([]string, 0, len(occs))
	for _, occ := range occs {
		s.occurrences[occ.ID] = cloneOccurrence(occ)
		ids = append(ids, occ.ID)
	}
	return ids, nil
}

// ReplaceByTemplate cancels the template's reschedulable occurrences and
// commits the replacement batch inside the same critical section. The
// retiring occurrences do not participate in the overlap re-check; a conflict
// aborts everything and leaves their statuses untouched.
func (s *Store) ReplaceByTemplate(ctx context.Context, templateID string, occs []persistence.Occurrence) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, occ := range occs {
		if occ.ID == "" || !occ.End.After(occ.Start) {
			return nil, persistence.ErrConstraintViolation
		}
		if _, exists := s.occurrences[occ.ID]; exists {
			return nil, persistence.ErrDuplicate
		}
	}

	retiring := make(map[string]struct{})
	for id, occ := range s.occurrences {
		if occ.TemplateID == templateID && timetable.CanReschedule(occ.Status) {
			retiring[id] = struct{}{}
		}
	}

	var conflicts []timetable.Conflict
	staged := make([]timetable.Booking, 0, len(occs))
	for _, occ := range occs {
		var existing []timetable.Booking
		for id, stored := range s.occurrences {
			if id == occ.ID || !stored.Status.Active() {
				continue
			}
			if _, gone := retiring[id]; gone {
				continue
			}
			if stored.Window().Overlaps(occ.Window()) {
				existing = append(existing, stored.Booking())
			}
		}
		existing = append(existing, staged...)
		conflicts = append(conflicts, timetable.DetectConflicts(existing, occ.Booking())...)
		staged = append(staged, occ.Booking())
	}
	if len(conflicts) > 0 {
		return nil, &persistence.ConflictError{Conflicts: conflicts}
	}

	now := time.Now().UTC()
	for id := range retiring {
		occ := s.occurrences[id]
		occ.Status = timetable.StatusCancelled
		occ.UpdatedAt = now
		s.occurrences[id] = occ
	}
	ids := make([]string, 0, len(occs))
	for _, occ := range occs {
		s.occurrences[occ.ID] = cloneOccurrence(occ)
		ids = append(ids, occ.ID)
	}
	return ids, nil
}

// GetOccurrence loads one occurrence.
func (s *Store) GetOccurrence(ctx context.Context, id string) (persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return persistence.Occurrence{}, persistence.ErrNotFound
	}
	return cloneOccurrence(occ), nil
}

// UpdateStatus applies a lifecycle transition against the stored status.
func (s *Store) UpdateStatus(ctx context.Context, id string, next timetable.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := timetable.Transition(occ.Status, next); err != nil {
		return err
	}
	occ.Status = next
	occ.UpdatedAt = time.Now().UTC()
	s.occurrences[id] = occ
	return nil
}

// UpdateWindow moves an occurrence after re-running the overlap checks,
// excluding the occurrence itself, inside the same critical section.
func (s *Store) UpdateWindow(ctx context.Context, id string, w timetable.Window) error {
	if !w.End.After(w.Start) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return persistence.ErrNotFound
	}

	moved := occ
	moved.Start = w.Start
	moved.End = w.End

	existing := s.activeBookingsLocked(w, id)
	if conflicts := timetable.DetectConflicts(existing, moved.Booking()); len(conflicts) > 0 {
		return &persistence.ConflictError{Conflicts: conflicts}
	}

	moved.UpdatedAt = time.Now().UTC()
	s.occurrences[id] = moved
	return nil
}

// ListByTimeRange returns occurrences intersecting w, start ascending.
func (s *Store) ListByTimeRange(ctx context.Context, w timetable.Window) ([]persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Occurrence
	for _, occ := range s.occurrences {
		if occ.Window().Overlaps(w) {
			out = append(out, cloneOccurrence(occ))
		}
	}
	sortOccurrences(out)
	return out, nil
}

// ListByRoomDate returns the room's occurrences on the given calendar day,
// evaluated in the day's own location.
func (s *Store) ListByRoomDate(ctx context.Context, roomID string, day time.Time) ([]persistence.Occurrence, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	window := timetable.Window{Start: start, End: start.AddDate(0, 0, 1)}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Occurrence
	for _, occ := range s.occurrences {
		if occ.RoomID == roomID && occ.Window().Overlaps(window) {
			out = append(out, cloneOccurrence(occ))
		}
	}
	sortOccurrences(out)
	return out, nil
}

// ListByStatus returns occurrences currently in any of the given states.
func (s *Store) ListByStatus(ctx context.Context, statuses ...timetable.Status) ([]persistence.Occurrence, error) {
	wanted := make(map[timetable.Status]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Occurrence
	for _, occ := range s.occurrences {
		if _, ok := wanted[occ.Status]; ok {
			out = append(out, cloneOccurrence(occ))
		}
	}
	sortOccurrences(out)
	return out, nil
}

// ListByTemplate returns every occurrence generated from the template.
func (s *Store) ListByTemplate(ctx context.Context, templateID string) ([]persistence.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Occurrence
	for _, occ := range s.occurrences {
		if occ.TemplateID == templateID {
			out = append(out, cloneOccurrence(occ))
		}
	}
	sortOccurrences(out)
	return out, nil
}

// UpsertAttendance stores one participant's record, overwriting any prior one.
func (s *Store) UpsertAttendance(ctx context.Context, occurrenceID string, rec timetable.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occ, ok := s.occurrences[occurrenceID]
	if !ok {
		return persistence.ErrNotFound
	}
	occ.Attendance = timetable.UpsertRecord(occ.Attendance, rec)
	occ.UpdatedAt = time.Now().UTC()
	s.occurrences[occurrenceID] = occ
	return nil
}

func (s *Store) activeBookingsLocked(w timetable.Window, excludeID string) []timetable.Booking {
	var out []timetable.Booking
	for _, occ := range s.occurrences {
		if occ.ID == excludeID || !occ.Status.Active() {
			continue
		}
		if occ.Window().Overlaps(w) {
			out = append(out, occ.Booking())
		}
	}
	return out
}

// --- TemplateRepository implementation ---

// CreateTemplate stores a new session template.
func (s *Store) CreateTemplate(ctx context.Context, tpl persistence.SessionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[tpl.ID]; exists {
		return persistence.ErrDuplicate
	}
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

// UpdateTemplate replaces an existing session template.
func (s *Store) UpdateTemplate(ctx context.Context, tpl persistence.SessionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[tpl.ID]; !exists {
		return persistence.ErrNotFound
	}
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

// GetTemplate retrieves a template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (persistence.SessionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[id]
	if !ok {
		return persistence.SessionTemplate{}, persistence.ErrNotFound
	}
	return cloneTemplate(tpl), nil
}

// ListTemplates returns all templates ordered by creation time.
func (s *Store) ListTemplates(ctx context.Context) ([]persistence.SessionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.SessionTemplate, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, cloneTemplate(tpl))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteTemplate removes a template by id.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return persistence.ErrDuplicate
	}
	s.rooms[room.ID] = room
	return nil
}

// UpdateRoom replaces an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; !exists {
		return persistence.ErrNotFound
	}
	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by id.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns all rooms ordered by creation time.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteRoom removes a room by id.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

// --- ParticipantRepository implementation ---

// CreateParticipant stores a new participant identity.
func (s *Store) CreateParticipant(ctx context.Context, p persistence.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[p.ID]; exists {
		return persistence.ErrDuplicate
	}
	s.participants[p.ID] = p
	return nil
}

// UpdateParticipant replaces an existing participant identity.
func (s *Store) UpdateParticipant(ctx context.Context, p persistence.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[p.ID]; !exists {
		return persistence.ErrNotFound
	}
	s.participants[p.ID] = p
	return nil
}

// GetParticipant retrieves a participant by id.
func (s *Store) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return persistence.Participant{}, persistence.ErrNotFound
	}
	return p, nil
}

// ListParticipants returns all participants ordered by creation time.
func (s *Store) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteParticipant removes a participant by id.
func (s *Store) DeleteParticipant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.participants, id)
	return nil
}

// MissingParticipantIDs reports which ids are unknown to the directory.
func (s *Store) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := s.participants[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// --- CourseDirectory implementation ---

// AddCourse registers a course with its enrolled roster. Used for seeding.
func (s *Store) AddCourse(course persistence.Course, roster []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.courses[course.ID] = course
	s.enrollments[course.ID] = append([]string(nil), roster...)
}

// Roster returns the participant ids enrolled in the course.
func (s *Store) Roster(ctx context.Context, courseID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.courses[courseID]; !ok {
		return nil, persistence.ErrNotFound
	}
	roster := s.enrollments[courseID]
	out := make([]string, len(roster))
	copy(out, roster)
	return out, nil
}

func occurrenceInvolves(occ persistence.Occurrence, participantID string) bool {
	if occ.InstructorID == participantID {
		return true
	}
	for _, id := range occ.ParticipantIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

func sortOccurrences(occs []persistence.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].Start.Equal(occs[j].Start) {
			return occs[i].ID < occs[j].ID
		}
		return occs[i].Start.Before(occs[j].Start)
	})
}

func cloneOccurrence(occ persistence.Occurrence) persistence.Occurrence {
	out := occ
	out.ParticipantIDs = append([]string(nil), occ.ParticipantIDs...)
	out.Attendance = append([]timetable.AttendanceRecord(nil), occ.Attendance...)
	return out
}

func cloneTemplate(tpl persistence.SessionTemplate) persistence.SessionTemplate {
	out := tpl
	out.Weekdays = append([]time.Weekday(nil), tpl.Weekdays...)
	out.Exceptions = append([]time.Time(nil), tpl.Exceptions...)
	return out
}
