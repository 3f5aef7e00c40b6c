package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

// OccurrenceService drives the lifecycle of individual occurrences:
// rescheduling, manual transitions, the clock sweep, attendance, and the
// timetable queries.
type OccurrenceService struct {
	store        persistence.ScheduleStore
	now          func() time.Time
	reminderLead time.Duration
	logger       *slog.Logger
}

// NewOccurrenceService wires dependencies for occurrence operations.
func NewOccurrenceService(store persistence.ScheduleStore, now func() time.Time, reminderLead time.Duration, logger *slog.Logger) *OccurrenceService {
	if now == nil {
		now = time.Now
	}
	if reminderLead <= 0 {
		reminderLead = 24 * time.Hour
	}
	return &OccurrenceService{
		store:        store,
		now:          now,
		reminderLead: reminderLead,
		logger:       defaultLogger(logger),
	}
}

func (s *OccurrenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "OccurrenceService", operation, attrs...)
}

// Reschedule moves one occurrence to a new window. Only scheduled and
// postponed occurrences qualify; a postponed occurrence re-enters the
// scheduled state once the new window passes the overlap re-check.
func (s *OccurrenceService) Reschedule(ctx context.Context, params RescheduleParams) (occ persistence.Occurrence, err error) {
	if s == nil {
		return persistence.Occurrence{}, fmt.Errorf("OccurrenceService is nil")
	}
	if s.store == nil {
		return persistence.Occurrence{}, fmt.Errorf("schedule store not configured")
	}

	logger := s.loggerWith(ctx, "Reschedule", "occurrence_id", params.OccurrenceID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reschedule occurrence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "occurrence rescheduled")
	}()

	w, err := timetable.NormalizeWindow(params.Start, params.End, params.Timezone)
	if err != nil {
		return persistence.Occurrence{}, err
	}

	current, err := s.store.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return persistence.Occurrence{}, mapRepoError(err)
	}
	if !timetable.CanReschedule(current.Status) {
		return persistence.Occurrence{}, fmt.Errorf("%w: cannot reschedule %s occurrence",
			timetable.ErrInvalidTransition, current.Status)
	}

	if err := s.store.UpdateWindow(ctx, params.OccurrenceID, w); err != nil {
		return persistence.Occurrence{}, mapRepoError(err)
	}

	if current.Status == timetable.StatusPostponed {
		if err := s.store.UpdateStatus(ctx, params.OccurrenceID, timetable.StatusScheduled); err != nil {
			return persistence.Occurrence{}, mapRepoError(err)
		}
	}

	occ, err = s.store.GetOccurrence(ctx, params.OccurrenceID)
	if err != nil {
		return persistence.Occurrence{}, mapRepoError(err)
	}
	return occ, nil
}

// Postpone takes an occurrence off the timetable without losing its series
// membership. It returns to scheduled through a reschedule.
func (s *OccurrenceService) Postpone(ctx context.Context, occurrenceID string) error {
	return s.transition(ctx, "Postpone", occurrenceID, timetable.StatusPostponed)
}

// Cancel permanently retires an occurrence. Cancelled occurrences are kept
// for audit and never conflict with new bookings.
func (s *OccurrenceService) Cancel(ctx context.Context, occurrenceID string) error {
	return s.transition(ctx, "Cancel", occurrenceID, timetable.StatusCancelled)
}

// Complete marks an ongoing occurrence as finished.
func (s *OccurrenceService) Complete(ctx context.Context, occurrenceID string) error {
	return s.transition(ctx, "Complete", occurrenceID, timetable.StatusCompleted)
}

func (s *OccurrenceService) transition(ctx context.Context, operation, occurrenceID string, next timetable.Status) error {
	if s == nil {
		return fmt.Errorf("OccurrenceService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("schedule store not configured")
	}

	logger := s.loggerWith(ctx, operation, "occurrence_id", occurrenceID, "next_status", string(next))

	if err := s.store.UpdateStatus(ctx, occurrenceID, next); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to transition occurrence", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "occurrence transitioned")
	return nil
}

// Sweep advances scheduled and ongoing occurrences whose windows the clock
// has passed. Transitions apply stepwise, so an occurrence whose window is
// already over moves through ongoing before reaching completed. Returns the
// number of transitions applied.
func (s *OccurrenceService) Sweep(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("OccurrenceService is nil")
	}
	if s.store == nil {
		return 0, fmt.Errorf("schedule store not configured")
	}

	logger := s.loggerWith(ctx, "Sweep")
	now := s.now()

	candidates, err := s.store.ListByStatus(ctx, timetable.StatusScheduled, timetable.StatusOngoing)
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "failed to list sweep candidates", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}

	applied := 0
	for _, occ := range candidates {
		status := occ.Status
		for {
			next, ok := timetable.NextByClock(status, occ.Window(), now)
			if !ok {
				break
			}
			if err := s.store.UpdateStatus(ctx, occ.ID, next); err != nil {
				err = mapRepoError(err)
				logger.ErrorContext(ctx, "failed to advance occurrence",
					"occurrence_id", occ.ID, "error", err, "error_kind", ErrorKind(err))
				return applied, err
			}
			status = next
			applied++
		}
	}

	if applied > 0 {
		logger.With("transitions", applied).InfoContext(ctx, "sweep advanced occurrences")
	}
	return applied, nil
}

// RecordAttendance stores one participant's attendance for an occurrence.
// Only ongoing and completed occurrences accept attendance, and the
// participant must belong to the occurrence roster or be its instructor.
func (s *OccurrenceService) RecordAttendance(ctx context.Context, occurrenceID string, input AttendanceInput) (err error) {
	if s == nil {
		return fmt.Errorf("OccurrenceService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("schedule store not configured")
	}

	logger := s.loggerWith(ctx, "RecordAttendance",
		"occurrence_id", occurrenceID,
		"participant_id", input.ParticipantID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record attendance", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "attendance recorded")
	}()

	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return mapRepoError(err)
	}

	rec := timetable.AttendanceRecord{
		ParticipantID: input.ParticipantID,
		Status:        input.Status,
		CheckIn:       input.CheckIn,
		CheckOut:      input.CheckOut,
		Note:          input.Note,
	}
	if err := timetable.ValidateAttendance(occ.Status, occ.Booking().ParticipantIDs, rec); err != nil {
		return err
	}

	return mapRepoError(s.store.UpsertAttendance(ctx, occurrenceID, rec))
}

// AttendanceSummary returns the attendance roll of one occurrence with its
// derived rate.
func (s *OccurrenceService) AttendanceSummary(ctx context.Context, occurrenceID string) (AttendanceSummary, error) {
	if s == nil {
		return AttendanceSummary{}, fmt.Errorf("OccurrenceService is nil")
	}
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return AttendanceSummary{}, mapRepoError(err)
	}
	return AttendanceSummary{
		OccurrenceID: occ.ID,
		Records:      occ.Attendance,
		Rate:         timetable.Rate(occ.Attendance),
	}, nil
}

// GetOccurrence loads one occurrence.
func (s *OccurrenceService) GetOccurrence(ctx context.Context, occurrenceID string) (persistence.Occurrence, error) {
	if s == nil {
		return persistence.Occurrence{}, fmt.Errorf("OccurrenceService is nil")
	}
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return persistence.Occurrence{}, mapRepoError(err)
	}
	return occ, nil
}

// FindByTimeRange returns occurrences intersecting the given window, in
// ascending start order.
func (s *OccurrenceService) FindByTimeRange(ctx context.Context, start, end time.Time, tz string) ([]persistence.Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("OccurrenceService is nil")
	}
	w, err := timetable.NormalizeWindow(start, end, tz)
	if err != nil {
		return nil, err
	}
	occs, err := s.store.ListByTimeRange(ctx, w)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapRepoError(err)
	}
	return occs, nil
}

// FindByRoomDate returns the room's occurrences on the given calendar day.
func (s *OccurrenceService) FindByRoomDate(ctx context.Context, roomID string, day time.Time) ([]persistence.Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("OccurrenceService is nil")
	}
	occs, err := s.store.ListByRoomDate(ctx, roomID, day)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapRepoError(err)
	}
	return occs, nil
}

// ReminderEligible returns scheduled occurrences starting within the reminder
// lead window from now.
func (s *OccurrenceService) ReminderEligible(ctx context.Context) ([]persistence.Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("OccurrenceService is nil")
	}
	now := s.now()

	scheduled, err := s.store.ListByStatus(ctx, timetable.StatusScheduled)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapRepoError(err)
	}

	horizon := now.Add(s.reminderLead)
	eligible := make([]persistence.Occurrence, 0, len(scheduled))
	for _, occ := range scheduled {
		if occ.Start.Before(now) || occ.Start.After(horizon) {
			continue
		}
		eligible = append(eligible, occ)
	}
	return eligible, nil
}
