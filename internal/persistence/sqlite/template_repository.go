package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
)

// TemplateRepository stores session templates in SQLite.
type TemplateRepository struct {
	pool *ConnectionPool
}

// NewTemplateRepository creates a new SQLite template repository.
func NewTemplateRepository(pool *ConnectionPool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

const templateColumns = `id, title, description, type, course_id, instructor_id, room_id,
	capacity, timezone, start_time, end_time, pattern, weekdays, recurrence_end, exceptions,
	created_at, updated_at`

// CreateTemplate inserts a template.
func (r *TemplateRepository) CreateTemplate(ctx context.Context, tpl persistence.SessionTemplate) error {
	if tpl.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	if tpl.UpdatedAt.IsZero() {
		tpl.UpdatedAt = tpl.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO session_templates (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, templateColumns),
		tpl.ID, tpl.Title, tpl.Description, tpl.Type, tpl.CourseID, tpl.InstructorID, tpl.RoomID,
		tpl.Capacity, tpl.Timezone, formatLocalTime(tpl.Start), formatLocalTime(tpl.End),
		tpl.Pattern, encodeWeekdays(tpl.Weekdays), nullableDate(tpl.RecurrenceEnd),
		encodeDates(tpl.Exceptions), formatTime(tpl.CreatedAt), formatTime(tpl.UpdatedAt),
	)
	return mapSQLError(err)
}

// UpdateTemplate replaces the stored definition.
func (r *TemplateRepository) UpdateTemplate(ctx context.Context, tpl persistence.SessionTemplate) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE session_templates SET
			title = ?, description = ?, type = ?, course_id = ?, instructor_id = ?, room_id = ?,
			capacity = ?, timezone = ?, start_time = ?, end_time = ?, pattern = ?, weekdays = ?,
			recurrence_end = ?, exceptions = ?, updated_at = ?
		WHERE id = ?`,
		tpl.Title, tpl.Description, tpl.Type, tpl.CourseID, tpl.InstructorID, tpl.RoomID,
		tpl.Capacity, tpl.Timezone, formatLocalTime(tpl.Start), formatLocalTime(tpl.End),
		tpl.Pattern, encodeWeekdays(tpl.Weekdays), nullableDate(tpl.RecurrenceEnd),
		encodeDates(tpl.Exceptions), formatTime(time.Now()), tpl.ID,
	)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetTemplate loads one template by id.
func (r *TemplateRepository) GetTemplate(ctx context.Context, id string) (persistence.SessionTemplate, error) {
	row := r.pool.DB().QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM session_templates WHERE id = ?", templateColumns), id)
	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return persistence.SessionTemplate{}, persistence.ErrNotFound
	}
	return tpl, err
}

// ListTemplates returns all templates ordered by creation time.
func (r *TemplateRepository) ListTemplates(ctx context.Context) ([]persistence.SessionTemplate, error) {
	rows, err := r.pool.DB().QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM session_templates ORDER BY created_at ASC, id ASC", templateColumns))
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var templates []persistence.SessionTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template.
func (r *TemplateRepository) DeleteTemplate(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, "DELETE FROM session_templates WHERE id = ?", id)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (persistence.SessionTemplate, error) {
	var tpl persistence.SessionTemplate
	var courseID sql.NullString
	var startStr, endStr, weekdaysStr, exceptionsStr, createdStr, updatedStr string
	var recurrenceEnd sql.NullString

	err := row.Scan(
		&tpl.ID, &tpl.Title, &tpl.Description, &tpl.Type, &courseID, &tpl.InstructorID, &tpl.RoomID,
		&tpl.Capacity, &tpl.Timezone, &startStr, &endStr, &tpl.Pattern, &weekdaysStr, &recurrenceEnd,
		&exceptionsStr, &createdStr, &updatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.SessionTemplate{}, err
		}
		return persistence.SessionTemplate{}, mapSQLError(err)
	}

	if courseID.Valid {
		tpl.CourseID = &courseID.String
	}

	// Template times are stored with their zone offset and re-anchored to the
	// named timezone so wall-clock fields survive DST boundaries.
	loc, err := time.LoadLocation(tpl.Timezone)
	if err != nil {
		return persistence.SessionTemplate{}, fmt.Errorf("failed to load template timezone: %w", err)
	}
	if tpl.Start, err = parseLocalTime(startStr, loc); err != nil {
		return persistence.SessionTemplate{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if tpl.End, err = parseLocalTime(endStr, loc); err != nil {
		return persistence.SessionTemplate{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if tpl.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.SessionTemplate{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if tpl.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.SessionTemplate{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	if tpl.Weekdays, err = decodeWeekdays(weekdaysStr); err != nil {
		return persistence.SessionTemplate{}, err
	}
	if tpl.Exceptions, err = decodeDates(exceptionsStr); err != nil {
		return persistence.SessionTemplate{}, err
	}
	if recurrenceEnd.Valid {
		end, err := decodeDate(recurrenceEnd.String)
		if err != nil {
			return persistence.SessionTemplate{}, err
		}
		tpl.RecurrenceEnd = &end
	}
	return tpl, nil
}

func formatLocalTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseLocalTime(value string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(value string) ([]time.Weekday, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("failed to decode weekdays: %w", err)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

const dateLayout = "2006-01-02"

func encodeDates(dates []time.Time) string {
	if len(dates) == 0 {
		return ""
	}
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(dateLayout)
	}
	return strings.Join(parts, ",")
}

func decodeDates(value string) ([]time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	dates := make([]time.Time, 0, len(parts))
	for _, part := range parts {
		d, err := decodeDate(part)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func decodeDate(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode date: %w", err)
	}
	return d, nil
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}
