package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
)

// ParticipantRepository stores participant identities in SQLite.
type ParticipantRepository struct {
	pool *ConnectionPool
}

// NewParticipantRepository creates a new SQLite participant repository.
func NewParticipantRepository(pool *ConnectionPool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// CreateParticipant inserts a participant.
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, p persistence.Participant) error {
	if p.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO participants (id, email, display_name, instructor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, boolToInt(p.Instructor),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return mapSQLError(err)
}

// UpdateParticipant replaces a participant's mutable fields.
func (r *ParticipantRepository) UpdateParticipant(ctx context.Context, p persistence.Participant) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE participants SET email = ?, display_name = ?, instructor = ?, updated_at = ?
		WHERE id = ?`,
		p.Email, p.DisplayName, boolToInt(p.Instructor), formatTime(time.Now()), p.ID,
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

// GetParticipant loads one participant by id.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id string) (persistence.Participant, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, email, display_name, instructor, created_at, updated_at
		FROM participants WHERE id = ?`, id)

	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return persistence.Participant{}, persistence.ErrNotFound
	}
	return p, err
}

// ListParticipants returns all participants ordered by display name.
func (r *ParticipantRepository) ListParticipants(ctx context.Context) ([]persistence.Participant, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, email, display_name, instructor, created_at, updated_at
		FROM participants ORDER BY display_name ASC, id ASC`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var participants []persistence.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// DeleteParticipant removes a participant identity.
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, "DELETE FROM participants WHERE id = ?", id)
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

// MissingParticipantIDs reports which of the given ids are unknown.
func (r *ParticipantRepository) MissingParticipantIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := r.pool.DB().QueryContext(ctx, fmt.Sprintf(
		"SELECT id FROM participants WHERE id IN (%s)", strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	known := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLError(err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}

	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func scanParticipant(row rowScanner) (persistence.Participant, error) {
	var p persistence.Participant
	var instructor int
	var createdStr, updatedStr string

	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &instructor, &createdStr, &updatedStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Participant{}, err
		}
		return persistence.Participant{}, mapSQLError(err)
	}
	p.Instructor = instructor != 0
	if p.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Participant{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Participant{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
