package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/campus-scheduler/internal/logging"
	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/recurrence"
	"github.com/example/campus-scheduler/internal/timetable"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, timetable.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, timetable.ErrInvalidTimezone):
		return "invalid_timezone"
	case errors.Is(err, timetable.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, timetable.ErrInvalidOccurrenceState):
		return "invalid_occurrence_state"
	case errors.Is(err, timetable.ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, timetable.ErrInvalidAttendanceStatus):
		return "invalid_attendance_status"
	case errors.Is(err, recurrence.ErrInvalidRule):
		return "invalid_recurrence"
	case errors.Is(err, recurrence.ErrLimitExceeded):
		return "recurrence_limit_exceeded"
	}

	var cErr *persistence.ConflictError
	if errors.As(err, &cErr) {
		return "conflict"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
