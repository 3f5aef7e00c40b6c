package sqlite

import (
	"context"
	"fmt"
)

// Store bundles the SQLite-backed repositories behind one handle.
type Store struct {
	pool *ConnectionPool

	Occurrences  *OccurrenceRepository
	Templates    *TemplateRepository
	Rooms        *RoomRepository
	Participants *ParticipantRepository
	Courses      *CourseDirectory
}

// Open connects to the database identified by the DSN and wires the
// repositories. Call Migrate before first use.
func Open(dsn string) (*Store, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:         pool,
		Occurrences:  NewOccurrenceRepository(pool),
		Templates:    NewTemplateRepository(pool),
		Rooms:        NewRoomRepository(pool),
		Participants: NewParticipantRepository(pool),
		Courses:      NewCourseDirectory(pool),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		location   TEXT NOT NULL,
		capacity   INTEGER NOT NULL DEFAULT 0,
		facilities TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id           TEXT PRIMARY KEY,
		email        TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		instructor   INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		course_id      TEXT NOT NULL REFERENCES courses(id),
		participant_id TEXT NOT NULL REFERENCES participants(id),
		PRIMARY KEY (course_id, participant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS session_templates (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		type           TEXT NOT NULL,
		course_id      TEXT,
		instructor_id  TEXT NOT NULL,
		room_id        TEXT NOT NULL,
		capacity       INTEGER NOT NULL DEFAULT 0,
		timezone       TEXT NOT NULL,
		start_time     TEXT NOT NULL,
		end_time       TEXT NOT NULL,
		pattern        TEXT NOT NULL,
		weekdays       TEXT NOT NULL DEFAULT '',
		recurrence_end TEXT,
		exceptions     TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		CHECK (end_time > start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS occurrences (
		id            TEXT PRIMARY KEY,
		template_id   TEXT NOT NULL REFERENCES session_templates(id),
		room_id       TEXT NOT NULL,
		instructor_id TEXT NOT NULL,
		start_time    TEXT NOT NULL,
		end_time      TEXT NOT NULL,
		status        TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		CHECK (end_time > start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS occurrence_participants (
		occurrence_id  TEXT NOT NULL REFERENCES occurrences(id),
		participant_id TEXT NOT NULL,
		PRIMARY KEY (occurrence_id, participant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		occurrence_id  TEXT NOT NULL REFERENCES occurrences(id),
		participant_id TEXT NOT NULL,
		status         TEXT NOT NULL,
		check_in       TEXT,
		check_out      TEXT,
		note           TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (occurrence_id, participant_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_room_time
		ON occurrences (room_id, start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_template
		ON occurrences (template_id)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrence_participants_participant
		ON occurrence_participants (participant_id)`,
}
