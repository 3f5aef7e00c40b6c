package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (application.SessionResult, error)
	UpdateSession(ctx context.Context, params application.UpdateSessionParams) (application.SessionResult, error)
	GetSession(ctx context.Context, templateID string) (application.SessionResult, error)
	ListSessions(ctx context.Context) ([]persistence.SessionTemplate, error)
	ProbeConflicts(ctx context.Context, probe application.ConflictProbe) ([]timetable.Conflict, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "title", input.Title)

	result, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Input: input,
		Force: req.Force,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("template_id", result.Template.ID).InfoContext(r.Context(), "session created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSessionResponse(result))
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Update", "session_id", sessionID)

	result, err := h.service.UpdateSession(r.Context(), application.UpdateSessionParams{
		TemplateID: sessionID,
		Input:      input,
		Force:      req.Force,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(result))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	result, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(result))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	templates, err := h.service.ListSessions(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toTemplateDTOs(templates)})
}

// ProbeConflicts checks a hypothetical booking against committed state
// without persisting anything.
func (h *SessionHandler) ProbeConflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start := parseTimestamp(query.Get("start"), query.Get("tz"))
	end := parseTimestamp(query.Get("end"), query.Get("tz"))
	if start.IsZero() || end.IsZero() || strings.TrimSpace(query.Get("tz")) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeRange)
		return
	}

	probe := application.ConflictProbe{
		RoomID:         strings.TrimSpace(query.Get("room")),
		ParticipantIDs: parseCSV(query.Get("participants")),
		Start:          start,
		End:            end,
		Timezone:       strings.TrimSpace(query.Get("tz")),
	}

	conflicts, err := h.service.ProbeConflicts(r.Context(), probe)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictProbeResponse{Conflicts: toConflictDTOs(conflicts)})
}

type sessionRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Type           string   `json:"type"`
	CourseID       *string  `json:"course_id"`
	InstructorID   string   `json:"instructor_id"`
	RoomID         string   `json:"room_id"`
	Capacity       int      `json:"capacity"`
	Timezone       string   `json:"timezone"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Pattern        string   `json:"pattern"`
	Weekdays       []string `json:"weekdays"`
	RecurrenceEnd  string   `json:"recurrence_end"`
	Exceptions     []string `json:"exceptions"`
	ParticipantIDs []string `json:"participant_ids"`
	Force          bool     `json:"force"`
}

func (r sessionRequest) toInput() (application.SessionInput, error) {
	weekdays, err := parseWeekdayNames(r.Weekdays)
	if err != nil {
		return application.SessionInput{}, err
	}

	var recurrenceEnd *time.Time
	if value := strings.TrimSpace(r.RecurrenceEnd); value != "" {
		ts, err := time.Parse("2006-01-02", value)
		if err != nil {
			return application.SessionInput{}, fmt.Errorf("recurrence_end must be YYYY-MM-DD")
		}
		recurrenceEnd = &ts
	}

	exceptions := make([]time.Time, 0, len(r.Exceptions))
	for _, value := range r.Exceptions {
		ts, err := time.Parse("2006-01-02", strings.TrimSpace(value))
		if err != nil {
			return application.SessionInput{}, fmt.Errorf("exceptions must be YYYY-MM-DD dates")
		}
		exceptions = append(exceptions, ts)
	}

	return application.SessionInput{
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		Type:           application.SessionType(strings.TrimSpace(r.Type)),
		CourseID:       r.CourseID,
		InstructorID:   strings.TrimSpace(r.InstructorID),
		RoomID:         strings.TrimSpace(r.RoomID),
		Capacity:       r.Capacity,
		Timezone:       strings.TrimSpace(r.Timezone),
		Start:          parseTimestamp(r.Start, r.Timezone),
		End:            parseTimestamp(r.End, r.Timezone),
		Pattern:        strings.TrimSpace(r.Pattern),
		Weekdays:       weekdays,
		RecurrenceEnd:  recurrenceEnd,
		Exceptions:     exceptions,
		ParticipantIDs: append([]string(nil), r.ParticipantIDs...),
	}, nil
}

// parseTimestamp accepts RFC3339 timestamps, or naive local timestamps
// interpreted in the named timezone.
func parseTimestamp(value, tz string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	if loc, err := time.LoadLocation(strings.TrimSpace(tz)); err == nil {
		if ts, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc); err == nil {
			return ts
		}
		if ts, err := time.ParseInLocation("2006-01-02T15:04", value, loc); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func parseWeekdayNames(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "monday":
			out = append(out, time.Monday)
		case "tuesday":
			out = append(out, time.Tuesday)
		case "wednesday":
			out = append(out, time.Wednesday)
		case "thursday":
			out = append(out, time.Thursday)
		case "friday":
			out = append(out, time.Friday)
		case "saturday":
			out = append(out, time.Saturday)
		case "sunday":
			out = append(out, time.Sunday)
		default:
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
	}
	return out, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

type sessionResponse struct {
	Session     templateDTO     `json:"session"`
	Occurrences []occurrenceDTO `json:"occurrences,omitempty"`
	Warnings    []conflictDTO   `json:"warnings,omitempty"`
}

type listSessionsResponse struct {
	Sessions []templateDTO `json:"sessions"`
}

type conflictProbeResponse struct {
	Conflicts []conflictDTO `json:"conflicts"`
}

func toSessionResponse(result application.SessionResult) sessionResponse {
	return sessionResponse{
		Session:     toTemplateDTO(result.Template),
		Occurrences: toOccurrenceDTOs(result.Occurrences),
		Warnings:    toConflictDTOs(result.Warnings),
	}
}

type templateDTO struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Type           string   `json:"type"`
	CourseID       *string  `json:"course_id,omitempty"`
	InstructorID   string   `json:"instructor_id"`
	RoomID         string   `json:"room_id"`
	Capacity       int      `json:"capacity,omitempty"`
	Timezone       string   `json:"timezone"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Pattern        string   `json:"pattern,omitempty"`
	Weekdays       []string `json:"weekdays,omitempty"`
	RecurrenceEnd  string   `json:"recurrence_end,omitempty"`
	Exceptions     []string `json:"exceptions,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toTemplateDTO(tpl persistence.SessionTemplate) templateDTO {
	dto := templateDTO{
		ID:           tpl.ID,
		Title:        tpl.Title,
		Description:  tpl.Description,
		Type:         tpl.Type,
		CourseID:     tpl.CourseID,
		InstructorID: tpl.InstructorID,
		RoomID:       tpl.RoomID,
		Capacity:     tpl.Capacity,
		Timezone:     tpl.Timezone,
		Start:        tpl.Start.Format(time.RFC3339),
		End:          tpl.End.Format(time.RFC3339),
		Pattern:      tpl.Pattern,
		CreatedAt:    tpl.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    tpl.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, day := range tpl.Weekdays {
		dto.Weekdays = append(dto.Weekdays, strings.ToLower(day.String()))
	}
	if tpl.RecurrenceEnd != nil {
		dto.RecurrenceEnd = tpl.RecurrenceEnd.Format("2006-01-02")
	}
	for _, exception := range tpl.Exceptions {
		dto.Exceptions = append(dto.Exceptions, exception.Format("2006-01-02"))
	}
	return dto
}

func toTemplateDTOs(templates []persistence.SessionTemplate) []templateDTO {
	if len(templates) == 0 {
		return nil
	}
	out := make([]templateDTO, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, toTemplateDTO(tpl))
	}
	return out
}
