package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/recurrence"
	"github.com/example/campus-scheduler/internal/timetable"
)

// SessionService orchestrates validation, recurrence expansion, conflict
// detection, and persistence for session series.
type SessionService struct {
	templates    persistence.TemplateRepository
	store        persistence.ScheduleStore
	rooms        persistence.RoomRepository
	participants persistence.ParticipantRepository
	courses      persistence.CourseDirectory
	idGenerator  func() string
	now          func() time.Time
	expansionCap int
	logger       *slog.Logger
	conflicts    *conflictCache
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(
	templates persistence.TemplateRepository,
	store persistence.ScheduleStore,
	rooms persistence.RoomRepository,
	participants persistence.ParticipantRepository,
	courses persistence.CourseDirectory,
	idGenerator func() string,
	now func() time.Time,
) *SessionService {
	return NewSessionServiceWithOptions(templates, store, rooms, participants, courses, idGenerator, now, 0, nil)
}

// NewSessionServiceWithOptions constructs a session service with an explicit
// expansion cap and logger.
func NewSessionServiceWithOptions(
	templates persistence.TemplateRepository,
	store persistence.ScheduleStore,
	rooms persistence.RoomRepository,
	participants persistence.ParticipantRepository,
	courses persistence.CourseDirectory,
	idGenerator func() string,
	now func() time.Time,
	expansionCap int,
	logger *slog.Logger,
) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if expansionCap <= 0 {
		expansionCap = recurrence.DefaultCap
	}
	return &SessionService{
		templates:    templates,
		store:        store,
		rooms:        rooms,
		participants: participants,
		courses:      courses,
		idGenerator:  idGenerator,
		now:          now,
		expansionCap: expansionCap,
		logger:       defaultLogger(logger),
		conflicts:    newConflictCache(0, 0, now),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateSession validates the series definition, expands its recurrence,
// resolves the roster, runs the advisory conflict pass, and commits template
// plus occurrences. The commit itself re-checks overlaps atomically, so even
// a forced create cannot double-book a room or participant.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (result SessionResult, err error) {
	if s == nil {
		return SessionResult{}, fmt.Errorf("SessionService is nil")
	}
	if s.templates == nil || s.store == nil {
		return SessionResult{}, fmt.Errorf("session repositories not configured")
	}

	logger := s.loggerWith(ctx, "CreateSession", "title", params.Input.Title)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("template_id", result.Template.ID, "occurrence_count", len(result.Occurrences)).
			InfoContext(ctx, "session created")
	}()

	input := params.Input
	if vErr := validateSessionCore(input); vErr.HasErrors() {
		return SessionResult{}, vErr
	}

	base, err := timetable.NormalizeWindow(input.Start, input.End, input.Timezone)
	if err != nil {
		return SessionResult{}, err
	}

	windows, err := s.expandWindows(base, input)
	if err != nil {
		return SessionResult{}, err
	}
	if len(windows) == 0 {
		vErr := &ValidationError{}
		vErr.add("recurrence", "rule produces no occurrences")
		return SessionResult{}, vErr
	}

	roster, err := s.resolveRoster(ctx, input)
	if err != nil {
		return SessionResult{}, err
	}
	if err := s.ensureParticipantsExist(ctx, append(append([]string{}, roster...), input.InstructorID)); err != nil {
		return SessionResult{}, err
	}
	if err := s.ensureRoomExists(ctx, input.RoomID); err != nil {
		return SessionResult{}, err
	}

	createdAt := s.now()
	template := persistence.SessionTemplate{
		ID:            s.idGenerator(),
		Title:         strings.TrimSpace(input.Title),
		Description:   input.Description,
		Type:          string(input.Type),
		CourseID:      input.CourseID,
		InstructorID:  input.InstructorID,
		RoomID:        input.RoomID,
		Capacity:      input.Capacity,
		Timezone:      input.Timezone,
		Start:         base.Start,
		End:           base.End,
		Pattern:       input.Pattern,
		Weekdays:      input.Weekdays,
		RecurrenceEnd: input.RecurrenceEnd,
		Exceptions:    input.Exceptions,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}

	occurrences := s.buildOccurrences(template, roster, windows, createdAt)

	warnings, err := s.advisoryConflicts(ctx, occurrences)
	if err != nil {
		return SessionResult{}, err
	}
	if len(warnings) > 0 && !params.Force {
		return SessionResult{}, &persistence.ConflictError{Conflicts: warnings}
	}

	if err := s.templates.CreateTemplate(ctx, template); err != nil {
		return SessionResult{}, mapRepoError(err)
	}

	if _, err := s.store.CommitBatch(ctx, occurrences); err != nil {
		// Compensate: the template must not survive a failed expansion commit.
		if delErr := s.templates.DeleteTemplate(ctx, template.ID); delErr != nil {
			logger.ErrorContext(ctx, "failed to roll back template after commit failure",
				"template_id", template.ID, "error", delErr)
		}
		return SessionResult{}, mapRepoError(err)
	}

	s.conflicts.Invalidate()
	return SessionResult{Template: template, Occurrences: occurrences, Warnings: warnings}, nil
}

// UpdateSession replaces a series definition. Occurrences still in a
// reschedulable state are cancelled; only windows starting after now are
// regenerated, so completed and in-progress history is preserved.
func (s *SessionService) UpdateSession(ctx context.Context, params UpdateSessionParams) (result SessionResult, err error) {
	if s == nil {
		return SessionResult{}, fmt.Errorf("SessionService is nil")
	}
	if s.templates == nil || s.store == nil {
		return SessionResult{}, fmt.Errorf("session repositories not configured")
	}

	logger := s.loggerWith(ctx, "UpdateSession", "template_id", params.TemplateID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("occurrence_count", len(result.Occurrences)).InfoContext(ctx, "session updated")
	}()

	existing, err := s.templates.GetTemplate(ctx, params.TemplateID)
	if err != nil {
		return SessionResult{}, mapRepoError(err)
	}

	input := params.Input
	if vErr := validateSessionCore(input); vErr.HasErrors() {
		return SessionResult{}, vErr
	}

	base, err := timetable.NormalizeWindow(input.Start, input.End, input.Timezone)
	if err != nil {
		return SessionResult{}, err
	}

	windows, err := s.expandWindows(base, input)
	if err != nil {
		return SessionResult{}, err
	}

	roster, err := s.resolveRoster(ctx, input)
	if err != nil {
		return SessionResult{}, err
	}
	if err := s.ensureParticipantsExist(ctx, append(append([]string{}, roster...), input.InstructorID)); err != nil {
		return SessionResult{}, err
	}
	if err := s.ensureRoomExists(ctx, input.RoomID); err != nil {
		return SessionResult{}, err
	}

	now := s.now()
	future := make([]timetable.Window, 0, len(windows))
	for _, w := range windows {
		if w.Start.After(now) {
			future = append(future, w)
		}
	}

	updated := existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.Description = input.Description
	updated.Type = string(input.Type)
	updated.CourseID = input.CourseID
	updated.InstructorID = input.InstructorID
	updated.RoomID = input.RoomID
	updated.Capacity = input.Capacity
	updated.Timezone = input.Timezone
	updated.Start = base.Start
	updated.End = base.End
	updated.Pattern = input.Pattern
	updated.Weekdays = input.Weekdays
	updated.RecurrenceEnd = input.RecurrenceEnd
	updated.Exceptions = input.Exceptions
	updated.UpdatedAt = now

	occurrences := s.buildOccurrences(updated, roster, future, now)

	// The advisory pass sees the series' own reschedulable occurrences as
	// retiring, so an update does not conflict with the shape it replaces.
	warnings, err := s.advisoryConflicts(ctx, occurrences)
	if err != nil {
		return SessionResult{}, err
	}
	if len(warnings) > 0 && !params.Force {
		return SessionResult{}, &persistence.ConflictError{Conflicts: warnings}
	}

	if err := s.templates.UpdateTemplate(ctx, updated); err != nil {
		return SessionResult{}, mapRepoError(err)
	}
	if _, err := s.store.ReplaceByTemplate(ctx, params.TemplateID, occurrences); err != nil {
		// Compensate: the template definition must match the surviving series.
		if rbErr := s.templates.UpdateTemplate(ctx, existing); rbErr != nil {
			logger.ErrorContext(ctx, "failed to roll back template after replace failure",
				"template_id", existing.ID, "error", rbErr)
		}
		return SessionResult{}, mapRepoError(err)
	}

	s.conflicts.Invalidate()
	return SessionResult{Template: updated, Occurrences: occurrences, Warnings: warnings}, nil
}

// GetSession loads a template with all occurrences generated from it.
func (s *SessionService) GetSession(ctx context.Context, templateID string) (SessionResult, error) {
	if s == nil {
		return SessionResult{}, fmt.Errorf("SessionService is nil")
	}
	template, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return SessionResult{}, mapRepoError(err)
	}
	occurrences, err := s.store.ListByTemplate(ctx, templateID)
	if err != nil {
		return SessionResult{}, mapRepoError(err)
	}
	return SessionResult{Template: template, Occurrences: occurrences}, nil
}

// ListSessions enumerates all session templates.
func (s *SessionService) ListSessions(ctx context.Context) ([]persistence.SessionTemplate, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}
	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapRepoError(err)
	}
	return templates, nil
}

// ProbeConflicts runs the conflict detector for a hypothetical booking without
// persisting anything. Results are cached briefly because timetable views
// issue the same probes repeatedly.
func (s *SessionService) ProbeConflicts(ctx context.Context, probe ConflictProbe) ([]timetable.Conflict, error) {
	if s == nil {
		return nil, fmt.Errorf("SessionService is nil")
	}

	w, err := timetable.NormalizeWindow(probe.Start, probe.End, probe.Timezone)
	if err != nil {
		return nil, err
	}

	key := buildConflictCacheKey(probe, w)
	if cached, ok := s.conflicts.Get(key); ok {
		return cached, nil
	}

	candidate := persistence.Occurrence{
		ID:             "probe",
		RoomID:         probe.RoomID,
		ParticipantIDs: uniqueStrings(probe.ParticipantIDs),
		Start:          w.Start,
		End:            w.End,
	}
	existing, err := s.activeBookings(ctx, candidate, nil)
	if err != nil {
		return nil, err
	}

	found := timetable.DetectConflicts(existing, candidate.Booking())
	s.conflicts.Store(key, found)
	return found, nil
}

// advisoryConflicts checks every occurrence of a batch against committed state
// and against the earlier members of the batch itself.
func (s *SessionService) advisoryConflicts(ctx context.Context, occs []persistence.Occurrence) ([]timetable.Conflict, error) {
	var warnings []timetable.Conflict
	staged := make([]timetable.Booking, 0, len(occs))

	for _, occ := range occs {
		existing, err := s.activeBookings(ctx, occ, staged)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, timetable.DetectConflicts(existing, occ.Booking())...)
		staged = append(staged, occ.Booking())
	}
	return warnings, nil
}

// activeBookings gathers the committed occurrences the candidate could collide
// with, plus any staged in-batch bookings whose windows intersect.
func (s *SessionService) activeBookings(ctx context.Context, candidate persistence.Occurrence, staged []timetable.Booking) ([]timetable.Booking, error) {
	w := candidate.Window()
	seen := make(map[string]struct{})
	var bookings []timetable.Booking

	add := func(occs []persistence.Occurrence) {
		for _, occ := range occs {
			if occ.ID == candidate.ID {
				continue
			}
			// An update replaces the template's reschedulable occurrences, so
			// they must not collide with their own successors.
			if candidate.TemplateID != "" && occ.TemplateID == candidate.TemplateID && timetable.CanReschedule(occ.Status) {
				continue
			}
			if _, dup := seen[occ.ID]; dup {
				continue
			}
			seen[occ.ID] = struct{}{}
			bookings = append(bookings, occ.Booking())
		}
	}

	byRoom, err := s.store.FindActiveByRoom(ctx, candidate.RoomID, w)
	if err != nil {
		return nil, mapRepoError(err)
	}
	add(byRoom)

	for _, participantID := range candidate.Booking().ParticipantIDs {
		byParticipant, err := s.store.FindActiveByParticipant(ctx, participantID, w)
		if err != nil {
			return nil, mapRepoError(err)
		}
		add(byParticipant)
	}

	for _, b := range staged {
		if b.ID == candidate.ID {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		if !b.Window.Overlaps(w) {
			continue
		}
		seen[b.ID] = struct{}{}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

func (s *SessionService) expandWindows(base timetable.Window, input SessionInput) ([]timetable.Window, error) {
	rule := recurrence.Rule{
		Pattern:    recurrence.Pattern(input.Pattern),
		Weekdays:   input.Weekdays,
		EndDate:    input.RecurrenceEnd,
		Exceptions: input.Exceptions,
	}
	seq, err := recurrence.Expand(base, rule, s.expansionCap)
	if err != nil {
		return nil, err
	}
	return seq.Windows()
}

func (s *SessionService) buildOccurrences(template persistence.SessionTemplate, roster []string, windows []timetable.Window, createdAt time.Time) []persistence.Occurrence {
	occurrences := make([]persistence.Occurrence, 0, len(windows))
	for _, w := range windows {
		occurrences = append(occurrences, persistence.Occurrence{
			ID:             s.idGenerator(),
			TemplateID:     template.ID,
			RoomID:         template.RoomID,
			InstructorID:   template.InstructorID,
			Start:          w.Start,
			End:            w.End,
			Status:         timetable.StatusScheduled,
			ParticipantIDs: sortStrings(roster),
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		})
	}
	return occurrences
}

// resolveRoster merges explicit participant ids with the enrolled roster of
// the referenced course, if any.
func (s *SessionService) resolveRoster(ctx context.Context, input SessionInput) ([]string, error) {
	roster := uniqueStrings(input.ParticipantIDs)
	if input.CourseID == nil || s.courses == nil {
		return roster, nil
	}

	enrolled, err := s.courses.Roster(ctx, *input.CourseID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("course_id", "course does not exist")
			return nil, vErr
		}
		return nil, err
	}
	return uniqueStrings(append(roster, enrolled...)), nil
}

func (s *SessionService) ensureParticipantsExist(ctx context.Context, ids []string) error {
	if s.participants == nil {
		return nil
	}
	missing, err := s.participants.MissingParticipantIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add("participants", fmt.Sprintf("unknown participant ids: %s", strings.Join(missing, ", ")))
	return vErr
}

func (s *SessionService) ensureRoomExists(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("room_id", "room does not exist")
			return vErr
		}
		return err
	}
	return nil
}

func validateSessionCore(input SessionInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if !input.Type.Valid() {
		vErr.add("type", "unknown session type")
	}
	if input.InstructorID == "" {
		vErr.add("instructor_id", "instructor is required")
	}
	if input.RoomID == "" {
		vErr.add("room_id", "room is required")
	}
	if input.Capacity < 0 {
		vErr.add("capacity", "capacity must not be negative")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}

	return vErr
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func sortStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	var cErr *persistence.ConflictError
	if errors.As(err, &cErr) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("references", "related records are missing")
		return vErr
	}
	return err
}
