package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/application"
	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/recurrence"
	"github.com/example/campus-scheduler/internal/timetable"
)

var (
	errBadRequestBody       = errors.New("invalid request body")
	errInvalidSessionID     = errors.New("invalid session id")
	errInvalidOccurrenceID  = errors.New("invalid occurrence id")
	errInvalidRoomID        = errors.New("invalid room id")
	errInvalidParticipantID = errors.New("invalid participant id")
	errInvalidTimeRange     = errors.New("start, end, and tz query parameters are required")
	errInvalidDate          = errors.New("date query parameter must be YYYY-MM-DD")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application and core errors to HTTP statuses:
// validation and malformed input map to 422, lifecycle and conflict errors to
// 409 with the conflict set attached, unknown resources to 404.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var cErr *persistence.ConflictError
	if errors.As(err, &cErr) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CONFLICT_DETECTED",
			Message:   "the requested booking conflicts with existing occurrences",
			Conflicts: toConflictDTOs(cErr.Conflicts),
		})
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "validation failed",
			Errors:  vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "resource not found"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "resource already exists"})
	case errors.Is(err, timetable.ErrInvalidWindow),
		errors.Is(err, timetable.ErrInvalidTimezone),
		errors.Is(err, timetable.ErrInvalidAttendanceStatus),
		errors.Is(err, recurrence.ErrInvalidRule),
		errors.Is(err, recurrence.ErrLimitExceeded):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{Message: err.Error()})
	case errors.Is(err, timetable.ErrUnknownParticipant):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{Message: err.Error()})
	case errors.Is(err, timetable.ErrInvalidTransition),
		errors.Is(err, timetable.ErrInvalidOccurrenceState):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: err.Error()})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	Kind             string `json:"kind"`
	WithOccurrenceID string `json:"with_occurrence_id"`
	ParticipantID    string `json:"participant_id,omitempty"`
	OverlapStart     string `json:"overlap_start"`
	OverlapEnd       string `json:"overlap_end"`
}

func toConflictDTOs(conflicts []timetable.Conflict) []conflictDTO {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			Kind:             string(c.Kind),
			WithOccurrenceID: c.WithOccurrenceID,
			ParticipantID:    c.ParticipantID,
			OverlapStart:     c.Overlap.Start.UTC().Format(time.RFC3339Nano),
			OverlapEnd:       c.Overlap.End.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
