package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

type occurrenceService interface {
	GetOccurrence(ctx context.Context, occurrenceID string) (persistence.Occurrence, error)
	Reschedule(ctx context.Context, params application.RescheduleParams) (persistence.Occurrence, error)
	Postpone(ctx context.Context, occurrenceID string) error
	Cancel(ctx context.Context, occurrenceID string) error
	Complete(ctx context.Context, occurrenceID string) error
	RecordAttendance(ctx context.Context, occurrenceID string, input application.AttendanceInput) error
	AttendanceSummary(ctx context.Context, occurrenceID string) (application.AttendanceSummary, error)
	FindByTimeRange(ctx context.Context, start, end time.Time, tz string) ([]persistence.Occurrence, error)
	ReminderEligible(ctx context.Context) ([]persistence.Occurrence, error)
}

type OccurrenceHandler struct {
	service   occurrenceService
	defaultTZ string
	responder responder
	logger    *slog.Logger
}

// NewOccurrenceHandler wires the occurrence endpoints. defaultTimezone names
// the zone time-range queries are interpreted in when the request omits tz.
func NewOccurrenceHandler(service occurrenceService, defaultTimezone string, logger *slog.Logger) *OccurrenceHandler {
	base := defaultLogger(logger)
	if strings.TrimSpace(defaultTimezone) == "" {
		defaultTimezone = "UTC"
	}
	return &OccurrenceHandler{service: service, defaultTZ: defaultTimezone, responder: newResponder(base), logger: base}
}

func (h *OccurrenceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "OccurrenceHandler", operation, attrs...)
}

func (h *OccurrenceHandler) occurrenceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := OccurrenceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidOccurrenceID)
		return "", false
	}
	return id, true
}

func (h *OccurrenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.occurrenceID(w, r)
	if !ok {
		return
	}

	occ, err := h.service.GetOccurrence(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrenceResponse{Occurrence: toOccurrenceDTO(occ)})
}

func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	tz := strings.TrimSpace(query.Get("tz"))
	if tz == "" {
		tz = h.defaultTZ
	}
	start := parseTimestamp(query.Get("start"), tz)
	end := parseTimestamp(query.Get("end"), tz)
	if start.IsZero() || end.IsZero() {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeRange)
		return
	}

	occs, err := h.service.FindByTimeRange(r.Context(), start, end, tz)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listOccurrencesResponse{Occurrences: toOccurrenceDTOs(occs)})
}

func (h *OccurrenceHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.occurrenceID(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Reschedule", "occurrence_id", id)

	occ, err := h.service.Reschedule(r.Context(), application.RescheduleParams{
		OccurrenceID: id,
		Start:        parseTimestamp(req.Start, req.Timezone),
		End:          parseTimestamp(req.End, req.Timezone),
		Timezone:     strings.TrimSpace(req.Timezone),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reschedule failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "occurrence rescheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrenceResponse{Occurrence: toOccurrenceDTO(occ)})
}

func (h *OccurrenceHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, "Postpone", func(ctx context.Context, id string) error {
		return h.service.Postpone(ctx, id)
	})
}

func (h *OccurrenceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, "Cancel", func(ctx context.Context, id string) error {
		return h.service.Cancel(ctx, id)
	})
}

func (h *OccurrenceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, "Complete", func(ctx context.Context, id string) error {
		return h.service.Complete(ctx, id)
	})
}

func (h *OccurrenceHandler) applyTransition(w http.ResponseWriter, r *http.Request, operation string, fn func(context.Context, string) error) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.occurrenceID(w, r)
	if !ok {
		return
	}

	logger := h.log(r.Context(), operation, "occurrence_id", id)

	if err := fn(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	occ, err := h.service.GetOccurrence(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "occurrence transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrenceResponse{Occurrence: toOccurrenceDTO(occ)})
}

func (h *OccurrenceHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.occurrenceID(w, r)
	if !ok {
		return
	}

	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "RecordAttendance",
		"occurrence_id", id,
		"participant_id", req.ParticipantID,
	)

	if err := h.service.RecordAttendance(r.Context(), id, req.toInput()); err != nil {
		logger.ErrorContext(r.Context(), "attendance recording failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "attendance recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *OccurrenceHandler) AttendanceSummary(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.occurrenceID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.AttendanceSummary(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAttendanceSummaryDTO(summary))
}

func (h *OccurrenceHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occs, err := h.service.ReminderEligible(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listOccurrencesResponse{Occurrences: toOccurrenceDTOs(occs)})
}

type rescheduleRequest struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

type attendanceRequest struct {
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Note          string `json:"note"`
}

func (r attendanceRequest) toInput() application.AttendanceInput {
	input := application.AttendanceInput{
		ParticipantID: strings.TrimSpace(r.ParticipantID),
		Status:        timetable.AttendanceStatus(strings.TrimSpace(r.Status)),
		Note:          r.Note,
	}
	if ts := parseTimestamp(r.CheckIn, ""); !ts.IsZero() {
		input.CheckIn = &ts
	}
	if ts := parseTimestamp(r.CheckOut, ""); !ts.IsZero() {
		input.CheckOut = &ts
	}
	return input
}

type occurrenceResponse struct {
	Occurrence occurrenceDTO `json:"occurrence"`
}

type listOccurrencesResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type occurrenceDTO struct {
	ID             string          `json:"id"`
	TemplateID     string          `json:"template_id"`
	RoomID         string          `json:"room_id"`
	InstructorID   string          `json:"instructor_id"`
	Start          string          `json:"start"`
	End            string          `json:"end"`
	Status         string          `json:"status"`
	ParticipantIDs []string        `json:"participant_ids"`
	Attendance     []attendanceDTO `json:"attendance,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type attendanceDTO struct {
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status"`
	CheckIn       string `json:"check_in,omitempty"`
	CheckOut      string `json:"check_out,omitempty"`
	Note          string `json:"note,omitempty"`
}

type attendanceSummaryDTO struct {
	OccurrenceID string          `json:"occurrence_id"`
	Records      []attendanceDTO `json:"records"`
	Rate         int             `json:"rate"`
}

func toOccurrenceDTO(occ persistence.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		ID:             occ.ID,
		TemplateID:     occ.TemplateID,
		RoomID:         occ.RoomID,
		InstructorID:   occ.InstructorID,
		Start:          occ.Start.UTC().Format(time.RFC3339Nano),
		End:            occ.End.UTC().Format(time.RFC3339Nano),
		Status:         string(occ.Status),
		ParticipantIDs: append([]string(nil), occ.ParticipantIDs...),
		Attendance:     toAttendanceDTOs(occ.Attendance),
		CreatedAt:      occ.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      occ.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toOccurrenceDTOs(occs []persistence.Occurrence) []occurrenceDTO {
	if len(occs) == 0 {
		return nil
	}
	out := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		out = append(out, toOccurrenceDTO(occ))
	}
	return out
}

func toAttendanceDTOs(records []timetable.AttendanceRecord) []attendanceDTO {
	if len(records) == 0 {
		return nil
	}
	out := make([]attendanceDTO, 0, len(records))
	for _, rec := range records {
		dto := attendanceDTO{
			ParticipantID: rec.ParticipantID,
			Status:        string(rec.Status),
			Note:          rec.Note,
		}
		if rec.CheckIn != nil {
			dto.CheckIn = rec.CheckIn.UTC().Format(time.RFC3339Nano)
		}
		if rec.CheckOut != nil {
			dto.CheckOut = rec.CheckOut.UTC().Format(time.RFC3339Nano)
		}
		out = append(out, dto)
	}
	return out
}

func toAttendanceSummaryDTO(summary application.AttendanceSummary) attendanceSummaryDTO {
	records := toAttendanceDTOs(summary.Records)
	if records == nil {
		records = []attendanceDTO{}
	}
	return attendanceSummaryDTO{
		OccurrenceID: summary.OccurrenceID,
		Records:      records,
		Rate:         summary.Rate,
	}
}
