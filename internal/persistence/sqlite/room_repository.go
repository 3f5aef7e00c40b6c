package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
)

// RoomRepository stores the room catalog in SQLite.
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// CreateRoom inserts a room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO rooms (id, name, location, capacity, facilities, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.Location, room.Capacity, room.Facilities,
		formatTime(room.CreatedAt), formatTime(room.UpdatedAt),
	)
	return mapSQLError(err)
}

// UpdateRoom replaces a room's mutable fields.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE rooms SET name = ?, location = ?, capacity = ?, facilities = ?, updated_at = ?
		WHERE id = ?`,
		room.Name, room.Location, room.Capacity, room.Facilities,
		formatTime(time.Now()), room.ID,
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

// GetRoom loads one room by id.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, location, capacity, facilities, created_at, updated_at
		FROM rooms WHERE id = ?`, id)

	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, err
}

// ListRooms returns all rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, location, capacity, facilities, created_at, updated_at
		FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// DeleteRoom removes a room from the catalog.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
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

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var facilities sql.NullString
	var createdStr, updatedStr string

	err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &facilities, &createdStr, &updatedStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Room{}, err
		}
		return persistence.Room{}, mapSQLError(err)
	}
	if facilities.Valid {
		room.Facilities = &facilities.String
	}
	if room.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return room, nil
}
