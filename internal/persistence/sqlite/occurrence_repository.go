package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
	"github.com/example/campus-scheduler/internal/timetable"
)

// OccurrenceRepository implements persistence.ScheduleStore using SQLite.
// Commits run their overlap re-check and inserts inside one transaction; the
// single writer connection makes the transaction the serialization point the
// contract requires.
type OccurrenceRepository struct {
	pool *ConnectionPool
}

// NewOccurrenceRepository creates a new SQLite occurrence repository.
func NewOccurrenceRepository(pool *ConnectionPool) *OccurrenceRepository {
	return &OccurrenceRepository{pool: pool}
}

// Timestamps are stored as second-precision RFC3339 UTC strings so string
// comparison in SQL matches instant comparison.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

// Commit re-checks and inserts a single occurrence.
func (r *OccurrenceRepository) Commit(ctx context.Context, occ persistence.Occurrence) (string, error) {
	ids, err := r.CommitBatch(ctx, []persistence.Occurrence{occ})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CommitBatch inserts the batch inside one transaction. Every occurrence is
// re-checked against the latest committed state; earlier members of the batch
// are inserted first and therefore visible to the checks of later ones. Any
// conflict aborts the whole batch with *persistence.ConflictError.
func (r *OccurrenceRepository) CommitBatch(ctx context.Context, occs []persistence.Occurrence) ([]string, error) {
	if len(occs) == 0 {
		return nil, nil
	}
	for _, occ := range occs {
		if occ.ID == "" || !occ.End.After(occ.Start) {
			return nil, persistence.ErrConstraintViolation
		}
	}

	var ids []string
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		ids, err = commitBatchTx(tx, occs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ReplaceByTemplate cancels the template's reschedulable occurrences and
// commits the replacement batch in the same transaction. The cancelled rows
// drop out of the overlap re-check; any conflict rolls the whole transaction
// back, statuses included.
func (r *OccurrenceRepository) ReplaceByTemplate(ctx context.Context, templateID string, occs []persistence.Occurrence) ([]string, error) {
	for _, occ := range occs {
		if occ.ID == "" || !occ.End.After(occ.Start) {
			return nil, persistence.ErrConstraintViolation
		}
	}

	var ids []string
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"UPDATE occurrences SET status = ?, updated_at = ? WHERE template_id = ? AND status IN (?, ?)",
			string(timetable.StatusCancelled), formatTime(time.Now()), templateID,
			string(timetable.StatusScheduled), string(timetable.StatusPostponed),
		)
		if err != nil {
			return mapSQLError(err)
		}
		ids, err = commitBatchTx(tx, occs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// commitBatchTx re-checks and inserts the batch. Earlier members are inserted
// first and therefore visible to the checks of later ones; any conflict is
// returned as *persistence.ConflictError after the full set is gathered.
func commitBatchTx(tx *sql.Tx, occs []persistence.Occurrence) ([]string, error) {
	ids := make([]string, 0, len(occs))
	var conflicts []timetable.Conflict
	for _, occ := range occs {
		existing, err := overlappingBookingsTx(tx, occ, occ.ID)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, timetable.DetectConflicts(existing, occ.Booking())...)

		if err := insertOccurrenceTx(tx, occ); err != nil {
			return nil, err
		}
		ids = append(ids, occ.ID)
	}
	if len(conflicts) > 0 {
		return nil, &persistence.ConflictError{Conflicts: conflicts}
	}
	return ids, nil
}

// UpdateWindow moves an occurrence to a new window after re-running the
// overlap checks, excluding the occurrence itself, in one transaction.
func (r *OccurrenceRepository) UpdateWindow(ctx context.Context, id string, w timetable.Window) error {
	if !w.End.After(w.Start) {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		occ, err := getOccurrenceTx(tx, id)
		if err != nil {
			return err
		}
		occ.Start = w.Start
		occ.End = w.End

		existing, err := overlappingBookingsTx(tx, occ, id)
		if err != nil {
			return err
		}
		if found := timetable.DetectConflicts(existing, occ.Booking()); len(found) > 0 {
			return &persistence.ConflictError{Conflicts: found}
		}

		result, err := tx.Exec(
			"UPDATE occurrences SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?",
			formatTime(w.Start), formatTime(w.End), formatTime(time.Now()), id,
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
	})
}

// UpdateStatus applies a lifecycle transition against the stored status.
func (r *OccurrenceRepository) UpdateStatus(ctx context.Context, id string, next timetable.Status) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow("SELECT status FROM occurrences WHERE id = ?", id).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return persistence.ErrNotFound
			}
			return mapSQLError(err)
		}
		if err := timetable.Transition(timetable.Status(current), next); err != nil {
			return err
		}
		_, err = tx.Exec(
			"UPDATE occurrences SET status = ?, updated_at = ? WHERE id = ?",
			string(next), formatTime(time.Now()), id,
		)
		return mapSQLError(err)
	})
}

// GetOccurrence loads one occurrence with participants and attendance.
func (r *OccurrenceRepository) GetOccurrence(ctx context.Context, id string) (persistence.Occurrence, error) {
	occs, err := r.queryOccurrences(ctx, "WHERE o.id = ?", id)
	if err != nil {
		return persistence.Occurrence{}, err
	}
	if len(occs) == 0 {
		return persistence.Occurrence{}, persistence.ErrNotFound
	}
	return occs[0], nil
}

// FindActiveByRoom returns non-cancelled occurrences in the room intersecting w.
func (r *OccurrenceRepository) FindActiveByRoom(ctx context.Context, roomID string, w timetable.Window) ([]persistence.Occurrence, error) {
	return r.queryOccurrences(ctx,
		"WHERE o.room_id = ? AND o.status != ? AND o.start_time < ? AND ? < o.end_time",
		roomID, string(timetable.StatusCancelled), formatTime(w.End), formatTime(w.Start),
	)
}

// FindActiveByParticipant returns non-cancelled occurrences involving the
// participant (as student or instructor) whose windows intersect w.
func (r *OccurrenceRepository) FindActiveByParticipant(ctx context.Context, participantID string, w timetable.Window) ([]persistence.Occurrence, error) {
	return r.queryOccurrences(ctx,
		`WHERE o.status != ? AND o.start_time < ? AND ? < o.end_time
		   AND (o.instructor_id = ? OR EXISTS (
		        SELECT 1 FROM occurrence_participants op
		         WHERE op.occurrence_id = o.id AND op.participant_id = ?))`,
		string(timetable.StatusCancelled), formatTime(w.End), formatTime(w.Start),
		participantID, participantID,
	)
}

// ListByTimeRange returns occurrences intersecting w, start ascending.
func (r *OccurrenceRepository) ListByTimeRange(ctx context.Context, w timetable.Window) ([]persistence.Occurrence, error) {
	return r.queryOccurrences(ctx,
		"WHERE o.start_time < ? AND ? < o.end_time",
		formatTime(w.End), formatTime(w.Start),
	)
}

// ListByRoomDate returns the room's occurrences on the given calendar day,
// evaluated in the day's own location.
func (r *OccurrenceRepository) ListByRoomDate(ctx context.Context, roomID string, day time.Time) ([]persistence.Occurrence, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return r.queryOccurrences(ctx,
		"WHERE o.room_id = ? AND o.start_time < ? AND ? < o.end_time",
		roomID, formatTime(end), formatTime(start),
	)
}

// ListByStatus returns occurrences currently in any of the given states.
func (r *OccurrenceRepository) ListByStatus(ctx context.Context, statuses ...timetable.Status) ([]persistence.Occurrence, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = string(st)
	}
	return r.queryOccurrences(ctx,
		fmt.Sprintf("WHERE o.status IN (%s)", strings.Join(placeholders, ",")),
		args...,
	)
}

// ListByTemplate returns every occurrence generated from the template.
func (r *OccurrenceRepository) ListByTemplate(ctx context.Context, templateID string) ([]persistence.Occurrence, error) {
	return r.queryOccurrences(ctx, "WHERE o.template_id = ?", templateID)
}

// UpsertAttendance stores one participant's record for an occurrence,
// overwriting any prior record for the same participant.
func (r *OccurrenceRepository) UpsertAttendance(ctx context.Context, occurrenceID string, rec timetable.AttendanceRecord) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow("SELECT 1 FROM occurrences WHERE id = ?", occurrenceID).Scan(&exists)
		if err != nil {
			if err == sql.ErrNoRows {
				return persistence.ErrNotFound
			}
			return mapSQLError(err)
		}

		var checkIn, checkOut sql.NullString
		if rec.CheckIn != nil {
			checkIn = sql.NullString{String: formatTime(*rec.CheckIn), Valid: true}
		}
		if rec.CheckOut != nil {
			checkOut = sql.NullString{String: formatTime(*rec.CheckOut), Valid: true}
		}

		_, err = tx.Exec(`
			INSERT INTO attendance_records (occurrence_id, participant_id, status, check_in, check_out, note)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (occurrence_id, participant_id) DO UPDATE SET
				status = excluded.status,
				check_in = excluded.check_in,
				check_out = excluded.check_out,
				note = excluded.note`,
			occurrenceID, rec.ParticipantID, string(rec.Status), checkIn, checkOut, rec.Note,
		)
		if err != nil {
			return mapSQLError(err)
		}

		_, err = tx.Exec(
			"UPDATE occurrences SET updated_at = ? WHERE id = ?",
			formatTime(time.Now()), occurrenceID,
		)
		return mapSQLError(err)
	})
}

// overlappingBookingsTx loads the active occurrences the candidate could
// collide with: same room or any shared participant, window intersecting.
func overlappingBookingsTx(tx *sql.Tx, candidate persistence.Occurrence, excludeID string) ([]timetable.Booking, error) {
	booking := candidate.Booking()

	participantPlaceholders := make([]string, len(booking.ParticipantIDs))
	args := []any{
		string(timetable.StatusCancelled),
		formatTime(candidate.End),
		formatTime(candidate.Start),
		candidate.RoomID,
	}
	for i, id := range booking.ParticipantIDs {
		participantPlaceholders[i] = "?"
		args = append(args, id)
	}
	participantClause := "0"
	instructorClause := "0"
	if len(booking.ParticipantIDs) > 0 {
		in := strings.Join(participantPlaceholders, ",")
		participantClause = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM occurrence_participants op WHERE op.occurrence_id = o.id AND op.participant_id IN (%s))", in)
		instructorClause = fmt.Sprintf("o.instructor_id IN (%s)", in)
		// instructor ids appear twice in the argument list
		for _, id := range booking.ParticipantIDs {
			args = append(args, id)
		}
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.room_id, o.instructor_id, o.start_time, o.end_time
		  FROM occurrences o
		 WHERE o.status != ? AND o.start_time < ? AND ? < o.end_time
		   AND (o.room_id = ? OR %s OR %s)`, participantClause, instructorClause)

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var bookings []timetable.Booking
	var ids []string
	for rows.Next() {
		var id, roomID, instructorID, startStr, endStr string
		if err := rows.Scan(&id, &roomID, &instructorID, &startStr, &endStr); err != nil {
			return nil, mapSQLError(err)
		}
		if id == excludeID {
			continue
		}
		start, err := parseTime(startStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start_time: %w", err)
		}
		end, err := parseTime(endStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end_time: %w", err)
		}
		bookings = append(bookings, timetable.Booking{
			ID:             id,
			RoomID:         roomID,
			ParticipantIDs: []string{instructorID},
			Window:         timetable.Window{Start: start, End: end},
		})
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}

	// Attach the full participant list of each overlapping occurrence so the
	// detector can attribute participant conflicts.
	for i, id := range ids {
		participants, err := loadParticipantsTx(tx, id)
		if err != nil {
			return nil, err
		}
		bookings[i].ParticipantIDs = append(bookings[i].ParticipantIDs, participants...)
	}
	return bookings, nil
}

func insertOccurrenceTx(tx *sql.Tx, occ persistence.Occurrence) error {
	now := time.Now().UTC()
	if occ.CreatedAt.IsZero() {
		occ.CreatedAt = now
	}
	if occ.UpdatedAt.IsZero() {
		occ.UpdatedAt = occ.CreatedAt
	}
	status := occ.Status
	if status == "" {
		status = timetable.StatusScheduled
	}

	_, err := tx.Exec(`
		INSERT INTO occurrences (id, template_id, room_id, instructor_id, start_time, end_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		occ.ID, occ.TemplateID, occ.RoomID, occ.InstructorID,
		formatTime(occ.Start), formatTime(occ.End), string(status),
		formatTime(occ.CreatedAt), formatTime(occ.UpdatedAt),
	)
	if err != nil {
		return mapSQLError(err)
	}

	for _, participant := range uniqueStrings(occ.ParticipantIDs) {
		if _, err := tx.Exec(
			"INSERT INTO occurrence_participants (occurrence_id, participant_id) VALUES (?, ?)",
			occ.ID, participant,
		); err != nil {
			return mapSQLError(err)
		}
	}
	return nil
}

func getOccurrenceTx(tx *sql.Tx, id string) (persistence.Occurrence, error) {
	var occ persistence.Occurrence
	var startStr, endStr, status, createdStr, updatedStr string

	err := tx.QueryRow(`
		SELECT id, template_id, room_id, instructor_id, start_time, end_time, status, created_at, updated_at
		  FROM occurrences WHERE id = ?`, id).Scan(
		&occ.ID, &occ.TemplateID, &occ.RoomID, &occ.InstructorID,
		&startStr, &endStr, &status, &createdStr, &updatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Occurrence{}, persistence.ErrNotFound
		}
		return persistence.Occurrence{}, mapSQLError(err)
	}

	occ.Status = timetable.Status(status)
	if occ.Start, err = parseTime(startStr); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if occ.End, err = parseTime(endStr); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if occ.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if occ.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Occurrence{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	occ.ParticipantIDs, err = loadParticipantsTx(tx, id)
	if err != nil {
		return persistence.Occurrence{}, err
	}
	return occ, nil
}

func loadParticipantsTx(tx *sql.Tx, occurrenceID string) ([]string, error) {
	rows, err := tx.Query(
		"SELECT participant_id FROM occurrence_participants WHERE occurrence_id = ? ORDER BY participant_id ASC",
		occurrenceID,
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var participants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLError(err)
		}
		participants = append(participants, id)
	}
	return participants, rows.Err()
}

func (r *OccurrenceRepository) queryOccurrences(ctx context.Context, where string, args ...any) ([]persistence.Occurrence, error) {
	query := fmt.Sprintf(`
		SELECT o.id, o.template_id, o.room_id, o.instructor_id, o.start_time, o.end_time, o.status, o.created_at, o.updated_at
		  FROM occurrences o
		 %s
		 ORDER BY o.start_time ASC, o.id ASC`, where)

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var occs []persistence.Occurrence
	for rows.Next() {
		var occ persistence.Occurrence
		var startStr, endStr, status, createdStr, updatedStr string
		if err := rows.Scan(
			&occ.ID, &occ.TemplateID, &occ.RoomID, &occ.InstructorID,
			&startStr, &endStr, &status, &createdStr, &updatedStr,
		); err != nil {
			return nil, mapSQLError(err)
		}
		occ.Status = timetable.Status(status)
		if occ.Start, err = parseTime(startStr); err != nil {
			return nil, fmt.Errorf("failed to parse start_time: %w", err)
		}
		if occ.End, err = parseTime(endStr); err != nil {
			return nil, fmt.Errorf("failed to parse end_time: %w", err)
		}
		if occ.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if occ.UpdatedAt, err = parseTime(updatedStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}

	for i := range occs {
		if err := r.hydrate(ctx, &occs[i]); err != nil {
			return nil, err
		}
	}
	return occs, nil
}

func (r *OccurrenceRepository) hydrate(ctx context.Context, occ *persistence.Occurrence) error {
	rows, err := r.pool.DB().QueryContext(ctx,
		"SELECT participant_id FROM occurrence_participants WHERE occurrence_id = ? ORDER BY participant_id ASC",
		occ.ID,
	)
	if err != nil {
		return mapSQLError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return mapSQLError(err)
		}
		occ.ParticipantIDs = append(occ.ParticipantIDs, id)
	}
	if err := rows.Err(); err != nil {
		return mapSQLError(err)
	}

	attRows, err := r.pool.DB().QueryContext(ctx, `
		SELECT participant_id, status, check_in, check_out, note
		  FROM attendance_records WHERE occurrence_id = ?
		 ORDER BY participant_id ASC`, occ.ID)
	if err != nil {
		return mapSQLError(err)
	}
	defer attRows.Close()

	for attRows.Next() {
		var rec timetable.AttendanceRecord
		var status string
		var checkIn, checkOut sql.NullString
		if err := attRows.Scan(&rec.ParticipantID, &status, &checkIn, &checkOut, &rec.Note); err != nil {
			return mapSQLError(err)
		}
		rec.Status = timetable.AttendanceStatus(status)
		if checkIn.Valid {
			ts, err := parseTime(checkIn.String)
			if err != nil {
				return fmt.Errorf("failed to parse check_in: %w", err)
			}
			rec.CheckIn = &ts
		}
		if checkOut.Valid {
			ts, err := parseTime(checkOut.String)
			if err != nil {
				return fmt.Errorf("failed to parse check_out: %w", err)
			}
			rec.CheckOut = &ts
		}
		occ.Attendance = append(occ.Attendance, rec)
	}
	return attRows.Err()
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
