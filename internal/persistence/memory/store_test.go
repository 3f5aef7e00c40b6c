package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

func occurrenceAt(id string, hour int) persistence.Occurrence {
	start := time.Date(2024, 3, 4, hour, 0, 0, 0, time.UTC)
	return persistence.Occurrence{
		ID:             id,
		TemplateID:     "template-1",
		RoomID:         "room-1",
		InstructorID:   "instructor-1",
		Start:          start,
		End:            start.Add(time.Hour),
		Status:         timetable.StatusScheduled,
		ParticipantIDs: []string{"alice"},
	}
}

func TestStore_CommitAndGet(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	id, err := store.Commit(ctx, occurrenceAt("occ-1", 9))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id != "occ-1" {
		t.Fatalf("expected occ-1, got %s", id)
	}

	occ, err := store.GetOccurrence(ctx, "occ-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if occ.Status != timetable.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", occ.Status)
	}

	if _, err := store.GetOccurrence(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CommitRejectsRoomOverlap(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	overlapping := occurrenceAt("occ-2", 9)
	overlapping.ParticipantIDs = []string{"bob"}
	overlapping.InstructorID = "instructor-2"

	_, err := store.Commit(ctx, overlapping)
	var cErr *persistence.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(cErr.Conflicts) != 1 || cErr.Conflicts[0].Kind != timetable.ConflictKindRoom {
		t.Fatalf("expected one room conflict, got %v", cErr.Conflicts)
	}

	if _, err := store.GetOccurrence(ctx, "occ-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("rejected commit must leave no trace, got %v", err)
	}
}

func TestStore_CommitAllowsBackToBack(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := store.Commit(ctx, occurrenceAt("occ-2", 10)); err != nil {
		t.Fatalf("back-to-back occurrences must commit, got %v", err)
	}
}

func TestStore_CommitIgnoresCancelledOccurrences(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "occ-1", timetable.StatusCancelled); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if _, err := store.Commit(ctx, occurrenceAt("occ-2", 9)); err != nil {
		t.Fatalf("cancelled occurrences release their slot, got %v", err)
	}
}

func TestStore_CommitBatchIsAtomic(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	// The second member conflicts with the first inside the same batch.
	batch := []persistence.Occurrence{occurrenceAt("occ-1", 9), occurrenceAt("occ-2", 9)}

	_, err := store.CommitBatch(ctx, batch)
	var cErr *persistence.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	for _, id := range []string{"occ-1", "occ-2"} {
		if _, err := store.GetOccurrence(ctx, id); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("an aborted batch must commit nothing, %s err=%v", id, err)
		}
	}
}

func TestStore_CommitBatchValidatesMembers(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	missingID := occurrenceAt("", 9)
	if _, err := store.CommitBatch(ctx, []persistence.Occurrence{missingID}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for empty id, got %v", err)
	}

	inverted := occurrenceAt("occ-1", 9)
	inverted.End = inverted.Start
	if _, err := store.CommitBatch(ctx, []persistence.Occurrence{inverted}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for empty window, got %v", err)
	}

	if _, err := store.Commit(ctx, occurrenceAt("occ-dup", 11)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := store.CommitBatch(ctx, []persistence.Occurrence{occurrenceAt("occ-dup", 13)}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestStore_ReplaceByTemplateSwapsSeries(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := store.Commit(ctx, occurrenceAt("occ-2", 11)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "occ-2", timetable.StatusPostponed); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := store.Commit(ctx, occurrenceAt("occ-3", 13)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "occ-3", timetable.StatusOngoing); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "occ-3", timetable.StatusCompleted); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// The replacement reuses occ-1's slot; the retiring rows must not count
	// against it.
	if _, err := store.ReplaceByTemplate(ctx, "template-1", []persistence.Occurrence{occurrenceAt("occ-4", 9)}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	wantStatus := map[string]timetable.Status{
		"occ-1": timetable.StatusCancelled,
		"occ-2": timetable.StatusCancelled,
		"occ-3": timetable.StatusCompleted,
		"occ-4": timetable.StatusScheduled,
	}
	for id, want := range wantStatus {
		occ, err := store.GetOccurrence(ctx, id)
		if err != nil {
			t.Fatalf("expected success for %s, got %v", id, err)
		}
		if occ.Status != want {
			t.Fatalf("%s: expected %s, got %s", id, want, occ.Status)
		}
	}
}

func TestStore_ReplaceByTemplateAbortsOnConflict(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	blocker := occurrenceAt("occ-blocker", 11)
	blocker.TemplateID = "template-2"
	blocker.InstructorID = "instructor-2"
	blocker.ParticipantIDs = []string{"bob"}
	if _, err := store.Commit(ctx, blocker); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// The replacement double-books room-1 against the other template.
	_, err := store.ReplaceByTemplate(ctx, "template-1", []persistence.Occurrence{occurrenceAt("occ-2", 11)})
	var cErr *persistence.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	occ, err := store.GetOccurrence(ctx, "occ-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if occ.Status != timetable.StatusScheduled {
		t.Fatalf("an aborted replace must leave the prior series scheduled, got %s", occ.Status)
	}
	if _, err := store.GetOccurrence(ctx, "occ-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("an aborted replace must commit nothing, got %v", err)
	}
}

func TestStore_ConcurrentConflictingCommits(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			occ := occurrenceAt("occ-"+string(rune('a'+i)), 9)
			_, errs[i] = store.Commit(ctx, occ)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var cErr *persistence.ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one of the racing commits must win, got %d", succeeded)
	}
}

func TestStore_UpdateWindowExcludesSelf(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// Shifting within the occurrence's own original window must succeed: an
	// occurrence never conflicts with itself.
	shifted := timetable.Window{
		Start: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
	}
	if err := store.UpdateWindow(ctx, "occ-1", shifted); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	occ, err := store.GetOccurrence(ctx, "occ-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !occ.Start.Equal(shifted.Start) || !occ.End.Equal(shifted.End) {
		t.Fatalf("expected window to move, got %v-%v", occ.Start, occ.End)
	}
}

func TestStore_UpdateWindowRejectsNewConflict(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	other := occurrenceAt("occ-2", 11)
	other.ParticipantIDs = []string{"bob"}
	other.InstructorID = "instructor-2"
	other.RoomID = "room-2"
	if _, err := store.Commit(ctx, other); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	conflicting := occurrenceAt("occ-3", 13)
	conflicting.RoomID = "room-2"
	conflicting.ParticipantIDs = nil
	conflicting.InstructorID = "instructor-3"
	if _, err := store.Commit(ctx, conflicting); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// Moving occ-2 into occ-3's slot double-books room-2.
	roomTarget := timetable.Window{
		Start: time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC),
	}
	err := store.UpdateWindow(ctx, "occ-2", roomTarget)
	var cErr *persistence.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// The rejected move leaves the occurrence untouched.
	occ, err := store.GetOccurrence(ctx, "occ-2")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if occ.Start.Hour() != 11 {
		t.Fatalf("rejected move must not change the window, got %v", occ.Start)
	}
}

func TestStore_UpdateStatusEnforcesTransitions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if err := store.UpdateStatus(ctx, "occ-1", timetable.StatusCompleted); !errors.Is(err, timetable.ErrInvalidTransition) {
		t.Fatalf("scheduled cannot complete directly, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "occ-1", timetable.StatusOngoing); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "occ-1", timetable.StatusCompleted); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "missing", timetable.StatusOngoing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListByTimeRangeAndTemplate(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	for hour, id := range map[int]string{9: "occ-b", 11: "occ-c", 7: "occ-a"} {
		occ := occurrenceAt(id, hour)
		if _, err := store.Commit(ctx, occ); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	}

	w := timetable.Window{
		Start: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
	}
	listed, err := store.ListByTimeRange(ctx, w)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected two occurrences in range, got %d", len(listed))
	}
	if listed[0].ID != "occ-b" || listed[1].ID != "occ-c" {
		t.Fatalf("expected ascending start order, got %s then %s", listed[0].ID, listed[1].ID)
	}

	byTemplate, err := store.ListByTemplate(ctx, "template-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(byTemplate) != 3 {
		t.Fatalf("expected three occurrences, got %d", len(byTemplate))
	}
}

func TestStore_ListByRoomDateUsesDayLocation(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	// 2024-03-04T23:30Z spills into March 5 in UTC+7.
	late := occurrenceAt("occ-late", 23)
	late.Start = time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	late.End = late.Start.Add(time.Hour)
	if _, err := store.Commit(ctx, late); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	hcm, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, hcm)
	listed, err := store.ListByRoomDate(ctx, "room-1", day)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected the late occurrence on March 5 in UTC+7, got %d", len(listed))
	}

	utcDay := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	listed, err = store.ListByRoomDate(ctx, "room-1", utcDay)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("occurrence crossing midnight UTC also appears on March 5 UTC, got %d", len(listed))
	}
}

func TestStore_UpsertAttendance(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	rec := timetable.AttendanceRecord{ParticipantID: "alice", Status: timetable.AttendancePresent}
	if err := store.UpsertAttendance(ctx, "occ-1", rec); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	rec.Status = timetable.AttendanceLate
	if err := store.UpsertAttendance(ctx, "occ-1", rec); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	occ, err := store.GetOccurrence(ctx, "occ-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(occ.Attendance) != 1 {
		t.Fatalf("re-submission must not duplicate, got %d records", len(occ.Attendance))
	}
	if occ.Attendance[0].Status != timetable.AttendanceLate {
		t.Fatalf("expected overwritten record, got %s", occ.Attendance[0].Status)
	}

	if err := store.UpsertAttendance(ctx, "missing", rec); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_FindActiveByParticipantIncludesInstructor(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	if _, err := store.Commit(ctx, occurrenceAt("occ-1", 9)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	w := timetable.Window{
		Start: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	byInstructor, err := store.FindActiveByParticipant(ctx, "instructor-1", w)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(byInstructor) != 1 {
		t.Fatalf("instructor participates in the booking, got %d matches", len(byInstructor))
	}

	byStudent, err := store.FindActiveByParticipant(ctx, "alice", w)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(byStudent) != 1 {
		t.Fatalf("enrolled participant must match, got %d", len(byStudent))
	}

	byStranger, err := store.FindActiveByParticipant(ctx, "mallory", w)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(byStranger) != 0 {
		t.Fatalf("uninvolved participant must not match, got %d", len(byStranger))
	}
}
