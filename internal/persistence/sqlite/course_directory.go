package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/campus-scheduler/internal/persistence"
)

// CourseDirectory answers roster lookups from the courses and enrollments
// tables. The scheduler never mutates enrollments beyond the seeding helpers.
type CourseDirectory struct {
	pool *ConnectionPool
}

// NewCourseDirectory creates a new SQLite course directory.
func NewCourseDirectory(pool *ConnectionPool) *CourseDirectory {
	return &CourseDirectory{pool: pool}
}

// Roster returns the participant ids enrolled in the course.
func (d *CourseDirectory) Roster(ctx context.Context, courseID string) ([]string, error) {
	var exists int
	err := d.pool.DB().QueryRowContext(ctx,
		"SELECT 1 FROM courses WHERE id = ?", courseID).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, persistence.ErrNotFound
		}
		return nil, mapSQLError(err)
	}

	rows, err := d.pool.DB().QueryContext(ctx, `
		SELECT participant_id FROM enrollments
		WHERE course_id = ? ORDER BY participant_id ASC`, courseID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var roster []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLError(err)
		}
		roster = append(roster, id)
	}
	return roster, rows.Err()
}

// AddCourse registers a course and its roster. Used by seeding and tests.
func (d *CourseDirectory) AddCourse(ctx context.Context, course persistence.Course, roster []string) error {
	if course.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	if course.UpdatedAt.IsZero() {
		course.UpdatedAt = course.CreatedAt
	}

	return d.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO courses (id, code, title, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			course.ID, course.Code, course.Title,
			formatTime(course.CreatedAt), formatTime(course.UpdatedAt),
		)
		if err != nil {
			return mapSQLError(err)
		}
		for _, participantID := range roster {
			if _, err := tx.Exec(
				"INSERT INTO enrollments (course_id, participant_id) VALUES (?, ?)",
				course.ID, participantID,
			); err != nil {
				return mapSQLError(err)
			}
		}
		return nil
	})
}
