package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

type sessionServiceStub struct {
	createFn func(ctx context.Context, params application.CreateSessionParams) (application.SessionResult, error)
	updateFn func(ctx context.Context, params application.UpdateSessionParams) (application.SessionResult, error)
	getFn    func(ctx context.Context, templateID string) (application.SessionResult, error)
	listFn   func(ctx context.Context) ([]persistence.SessionTemplate, error)
	probeFn  func(ctx context.Context, probe application.ConflictProbe) ([]timetable.Conflict, error)
}

func (s *sessionServiceStub) CreateSession(ctx context.Context, params application.CreateSessionParams) (application.SessionResult, error) {
	return s.createFn(ctx, params)
}

func (s *sessionServiceStub) UpdateSession(ctx context.Context, params application.UpdateSessionParams) (application.SessionResult, error) {
	return s.updateFn(ctx, params)
}

func (s *sessionServiceStub) GetSession(ctx context.Context, templateID string) (application.SessionResult, error) {
	return s.getFn(ctx, templateID)
}

func (s *sessionServiceStub) ListSessions(ctx context.Context) ([]persistence.SessionTemplate, error) {
	return s.listFn(ctx)
}

func (s *sessionServiceStub) ProbeConflicts(ctx context.Context, probe application.ConflictProbe) ([]timetable.Conflict, error) {
	return s.probeFn(ctx, probe)
}

type occurrenceServiceStub struct {
	getFn        func(ctx context.Context, occurrenceID string) (persistence.Occurrence, error)
	rescheduleFn func(ctx context.Context, params application.RescheduleParams) (persistence.Occurrence, error)
	postponeFn   func(ctx context.Context, occurrenceID string) error
	cancelFn     func(ctx context.Context, occurrenceID string) error
	completeFn   func(ctx context.Context, occurrenceID string) error
	recordFn     func(ctx context.Context, occurrenceID string, input application.AttendanceInput) error
	summaryFn    func(ctx context.Context, occurrenceID string) (application.AttendanceSummary, error)
	findFn       func(ctx context.Context, start, end time.Time, tz string) ([]persistence.Occurrence, error)
	remindersFn  func(ctx context.Context) ([]persistence.Occurrence, error)
}

func (s *occurrenceServiceStub) GetOccurrence(ctx context.Context, occurrenceID string) (persistence.Occurrence, error) {
	return s.getFn(ctx, occurrenceID)
}

func (s *occurrenceServiceStub) Reschedule(ctx context.Context, params application.RescheduleParams) (persistence.Occurrence, error) {
	return s.rescheduleFn(ctx, params)
}

func (s *occurrenceServiceStub) Postpone(ctx context.Context, occurrenceID string) error {
	return s.postponeFn(ctx, occurrenceID)
}

func (s *occurrenceServiceStub) Cancel(ctx context.Context, occurrenceID string) error {
	return s.cancelFn(ctx, occurrenceID)
}

func (s *occurrenceServiceStub) Complete(ctx context.Context, occurrenceID string) error {
	return s.completeFn(ctx, occurrenceID)
}

func (s *occurrenceServiceStub) RecordAttendance(ctx context.Context, occurrenceID string, input application.AttendanceInput) error {
	return s.recordFn(ctx, occurrenceID, input)
}

func (s *occurrenceServiceStub) AttendanceSummary(ctx context.Context, occurrenceID string) (application.AttendanceSummary, error) {
	return s.summaryFn(ctx, occurrenceID)
}

func (s *occurrenceServiceStub) FindByTimeRange(ctx context.Context, start, end time.Time, tz string) ([]persistence.Occurrence, error) {
	return s.findFn(ctx, start, end, tz)
}

func (s *occurrenceServiceStub) ReminderEligible(ctx context.Context) ([]persistence.Occurrence, error) {
	return s.remindersFn(ctx)
}

type roomTimetableStub struct {
	findFn func(ctx context.Context, roomID string, day time.Time) ([]persistence.Occurrence, error)
}

func (s *roomTimetableStub) FindByRoomDate(ctx context.Context, roomID string, day time.Time) ([]persistence.Occurrence, error) {
	return s.findFn(ctx, roomID, day)
}

func sampleOccurrence() persistence.Occurrence {
	return persistence.Occurrence{
		ID:             "occ-1",
		TemplateID:     "tpl-1",
		RoomID:         "room-1",
		InstructorID:   "teach-1",
		Start:          time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Status:         timetable.StatusScheduled,
		ParticipantIDs: []string{"alice"},
	}
}

func TestSessionHandler_Create(t *testing.T) {
	t.Parallel()

	var captured application.CreateSessionParams
	stub := &sessionServiceStub{
		createFn: func(_ context.Context, params application.CreateSessionParams) (application.SessionResult, error) {
			captured = params
			return application.SessionResult{
				Template:    persistence.SessionTemplate{ID: "tpl-1", Title: params.Input.Title, Type: string(params.Input.Type)},
				Occurrences: []persistence.Occurrence{sampleOccurrence()},
			}, nil
		},
	}
	handler := NewSessionHandler(stub, nil)

	body := `{
		"title": "Algorithms",
		"type": "class",
		"instructor_id": "teach-1",
		"room_id": "room-1",
		"timezone": "UTC",
		"start": "2024-03-04T09:00:00Z",
		"end": "2024-03-04T10:00:00Z",
		"pattern": "weekly",
		"weekdays": ["monday"],
		"recurrence_end": "2024-03-25",
		"force": true
	}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.Force {
		t.Fatalf("expected force flag to reach the service")
	}
	if captured.Input.Pattern != "weekly" || len(captured.Input.Weekdays) != 1 || captured.Input.Weekdays[0] != time.Monday {
		t.Fatalf("unexpected parsed input %+v", captured.Input)
	}
	if captured.Input.RecurrenceEnd == nil || captured.Input.RecurrenceEnd.Format("2006-01-02") != "2024-03-25" {
		t.Fatalf("unexpected recurrence end %v", captured.Input.RecurrenceEnd)
	}

	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Occurrences []struct {
			ID string `json:"id"`
		} `json:"occurrences"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Session.ID != "tpl-1" || len(resp.Occurrences) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSessionHandler_CreateMapsConflict(t *testing.T) {
	t.Parallel()

	stub := &sessionServiceStub{
		createFn: func(context.Context, application.CreateSessionParams) (application.SessionResult, error) {
			return application.SessionResult{}, &persistence.ConflictError{Conflicts: []timetable.Conflict{{
				Kind:             timetable.ConflictKindRoom,
				WithOccurrenceID: "occ-9",
				Overlap: timetable.Window{
					Start: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
					End:   time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
				},
			}}}
		},
	}
	handler := NewSessionHandler(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"title":"x"}`))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var resp struct {
		ErrorCode string `json:"error_code"`
		Conflicts []struct {
			Kind             string `json:"kind"`
			WithOccurrenceID string `json:"with_occurrence_id"`
		} `json:"conflicts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ErrorCode != "CONFLICT_DETECTED" {
		t.Fatalf("expected CONFLICT_DETECTED, got %q", resp.ErrorCode)
	}
	if len(resp.Conflicts) != 1 || resp.Conflicts[0].Kind != "room" || resp.Conflicts[0].WithOccurrenceID != "occ-9" {
		t.Fatalf("unexpected conflicts %+v", resp.Conflicts)
	}
}

func TestSessionHandler_CreateMapsValidation(t *testing.T) {
	t.Parallel()

	stub := &sessionServiceStub{
		createFn: func(context.Context, application.CreateSessionParams) (application.SessionResult, error) {
			return application.SessionResult{}, &application.ValidationError{FieldErrors: map[string]string{"title": "title is required"}}
		},
	}
	handler := NewSessionHandler(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Errors["title"] != "title is required" {
		t.Fatalf("unexpected errors %v", resp.Errors)
	}
}

func TestSessionHandler_CreateRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	handler := NewSessionHandler(&sessionServiceStub{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionHandler_GetNotFound(t *testing.T) {
	t.Parallel()

	stub := &sessionServiceStub{
		getFn: func(context.Context, string) (application.SessionResult, error) {
			return application.SessionResult{}, application.ErrNotFound
		},
	}
	router := NewRouter(RouterConfig{Sessions: NewSessionHandler(stub, nil)})

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionHandler_ProbeConflicts(t *testing.T) {
	t.Parallel()

	var captured application.ConflictProbe
	stub := &sessionServiceStub{
		probeFn: func(_ context.Context, probe application.ConflictProbe) ([]timetable.Conflict, error) {
			captured = probe
			return nil, nil
		},
	}
	router := NewRouter(RouterConfig{Sessions: NewSessionHandler(stub, nil)})

	target := "/conflicts?room=room-1&participants=alice,bob&tz=UTC" +
		"&start=2024-03-04T09:00:00Z&end=2024-03-04T10:00:00Z"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.RoomID != "room-1" {
		t.Fatalf("unexpected room %q", captured.RoomID)
	}
	if len(captured.ParticipantIDs) != 2 || captured.ParticipantIDs[0] != "alice" || captured.ParticipantIDs[1] != "bob" {
		t.Fatalf("unexpected participants %v", captured.ParticipantIDs)
	}
	if !captured.Start.Equal(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", captured.Start)
	}
}

func TestSessionHandler_ProbeConflictsRequiresTimeRange(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{Sessions: NewSessionHandler(&sessionServiceStub{}, nil)})

	req := httptest.NewRequest(http.MethodGet, "/conflicts?room=room-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOccurrenceHandler_CancelTransition(t *testing.T) {
	t.Parallel()

	cancelled := false
	stub := &occurrenceServiceStub{
		cancelFn: func(_ context.Context, occurrenceID string) error {
			if occurrenceID != "occ-1" {
				t.Fatalf("unexpected occurrence id %q", occurrenceID)
			}
			cancelled = true
			return nil
		},
		getFn: func(context.Context, string) (persistence.Occurrence, error) {
			occ := sampleOccurrence()
			occ.Status = timetable.StatusCancelled
			return occ, nil
		},
	}
	router := NewRouter(RouterConfig{Occurrences: NewOccurrenceHandler(stub, "", nil)})

	req := httptest.NewRequest(http.MethodPost, "/occurrences/occ-1/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !cancelled {
		t.Fatalf("expected cancel to reach the service")
	}

	var resp struct {
		Occurrence struct {
			Status string `json:"status"`
		} `json:"occurrence"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Occurrence.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %q", resp.Occurrence.Status)
	}
}

func TestOccurrenceHandler_InvalidTransitionMapsToConflict(t *testing.T) {
	t.Parallel()

	stub := &occurrenceServiceStub{
		completeFn: func(context.Context, string) error {
			return timetable.ErrInvalidTransition
		},
	}
	router := NewRouter(RouterConfig{Occurrences: NewOccurrenceHandler(stub, "", nil)})

	req := httptest.NewRequest(http.MethodPost, "/occurrences/occ-1/complete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestOccurrenceHandler_RecordAttendance(t *testing.T) {
	t.Parallel()

	var captured application.AttendanceInput
	stub := &occurrenceServiceStub{
		recordFn: func(_ context.Context, occurrenceID string, input application.AttendanceInput) error {
			if occurrenceID != "occ-1" {
				t.Fatalf("unexpected occurrence id %q", occurrenceID)
			}
			captured = input
			return nil
		},
	}
	router := NewRouter(RouterConfig{Occurrences: NewOccurrenceHandler(stub, "", nil)})

	body := `{"participant_id":"alice","status":"late","check_in":"2024-03-04T09:10:00Z","note":"traffic"}`
	req := httptest.NewRequest(http.MethodPut, "/occurrences/occ-1/attendance", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.ParticipantID != "alice" || captured.Status != timetable.AttendanceLate {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.CheckIn == nil || !captured.CheckIn.Equal(time.Date(2024, 3, 4, 9, 10, 0, 0, time.UTC)) {
		t.Fatalf("unexpected check in %v", captured.CheckIn)
	}
	if captured.Note != "traffic" {
		t.Fatalf("unexpected note %q", captured.Note)
	}
}

func TestOccurrenceHandler_AttendanceSummary(t *testing.T) {
	t.Parallel()

	stub := &occurrenceServiceStub{
		summaryFn: func(_ context.Context, occurrenceID string) (application.AttendanceSummary, error) {
			return application.AttendanceSummary{
				OccurrenceID: occurrenceID,
				Records: []timetable.AttendanceRecord{
					{ParticipantID: "alice", Status: timetable.AttendancePresent},
				},
				Rate: 100,
			}, nil
		},
	}
	router := NewRouter(RouterConfig{Occurrences: NewOccurrenceHandler(stub, "", nil)})

	req := httptest.NewRequest(http.MethodGet, "/occurrences/occ-1/attendance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		OccurrenceID string `json:"occurrence_id"`
		Rate         int    `json:"rate"`
		Records      []struct {
			ParticipantID string `json:"participant_id"`
			Status        string `json:"status"`
		} `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OccurrenceID != "occ-1" || resp.Rate != 100 || len(resp.Records) != 1 {
		t.Fatalf("unexpected summary %+v", resp)
	}
}

func TestRoomHandler_Timetable(t *testing.T) {
	t.Parallel()

	var capturedRoom string
	var capturedDay time.Time
	timetableStub := &roomTimetableStub{
		findFn: func(_ context.Context, roomID string, day time.Time) ([]persistence.Occurrence, error) {
			capturedRoom = roomID
			capturedDay = day
			return []persistence.Occurrence{sampleOccurrence()}, nil
		},
	}
	router := NewRouter(RouterConfig{Rooms: NewRoomHandler(nil, timetableStub, "", nil)})

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/timetable?date=2024-03-04&tz=Asia/Tokyo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if capturedRoom != "room-1" {
		t.Fatalf("unexpected room %q", capturedRoom)
	}
	if capturedDay.Location().String() != "Asia/Tokyo" {
		t.Fatalf("expected day anchored in Asia/Tokyo, got %v", capturedDay.Location())
	}
	if capturedDay.Year() != 2024 || capturedDay.Month() != time.March || capturedDay.Day() != 4 {
		t.Fatalf("unexpected day %v", capturedDay)
	}
}

func TestRoomHandler_TimetableFallsBackToConfiguredTimezone(t *testing.T) {
	t.Parallel()

	var capturedDay time.Time
	timetableStub := &roomTimetableStub{
		findFn: func(_ context.Context, _ string, day time.Time) ([]persistence.Occurrence, error) {
			capturedDay = day
			return nil, nil
		},
	}
	router := NewRouter(RouterConfig{Rooms: NewRoomHandler(nil, timetableStub, "Asia/Tokyo", nil)})

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/timetable?date=2024-03-04", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if capturedDay.Location().String() != "Asia/Tokyo" {
		t.Fatalf("expected day anchored in Asia/Tokyo, got %v", capturedDay.Location())
	}
}

func TestRoomHandler_TimetableRejectsBadDate(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{Rooms: NewRoomHandler(nil, &roomTimetableStub{}, "", nil)})

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/timetable?date=March-4th", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{Sessions: NewSessionHandler(&sessionServiceStub{}, nil)})

	req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("expected Allow header to list POST, got %q", allow)
	}
}
