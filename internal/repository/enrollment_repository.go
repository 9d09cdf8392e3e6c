package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-admin-api/internal/models"
)

// EnrollmentRepository owns the student ↔ course join relation. The
// pair-unique row is the single source of truth; both directions are
// derived queries over it.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll inserts the join row. ON CONFLICT DO NOTHING makes a repeated
// enroll for the same pair a no-op, so concurrent requests cannot create
// duplicates.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentUserID, courseID string) error {
	const query = `INSERT INTO enrollments (student_user_id, course_id, enrolled_at)
        VALUES ($1, $2, $3) ON CONFLICT (student_user_id, course_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, studentUserID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// Unenroll removes the join row. Removing a non-existent row is a no-op.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, studentUserID, courseID string) error {
	const query = `DELETE FROM enrollments WHERE student_user_id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, query, studentUserID, courseID); err != nil {
		return fmt.Errorf("unenroll student: %w", err)
	}
	return nil
}

// IsEnrolled reports whether the pair exists.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentUserID, courseID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_user_id = $1 AND course_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentUserID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// ListCoursesByStudent returns the student's enrolled courses.
func (r *EnrollmentRepository) ListCoursesByStudent(ctx context.Context, studentUserID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
        JOIN enrollments e ON e.course_id = c.id
        WHERE e.student_user_id = $1 ORDER BY c.name ASC`, courseDetailColumns, courseDetailJoins)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, studentUserID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return courses, nil
}

// ListAvailableCourses returns the catalog minus the student's enrolled
// set, computed in SQL so the two sets are disjoint by construction.
func (r *EnrollmentRepository) ListAvailableCourses(ctx context.Context, studentUserID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
        WHERE c.id NOT IN (SELECT course_id FROM enrollments WHERE student_user_id = $1)
        ORDER BY c.name ASC`, courseDetailColumns, courseDetailJoins)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, studentUserID); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// ListRoster returns the students enrolled in a course.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT s.user_id AS student_user_id, s.student_id, s.first_name, s.last_name, u.email, e.enrolled_at
        FROM enrollments e
        JOIN students s ON s.user_id = e.student_user_id
        JOIN users u ON u.id = s.user_id
        WHERE e.course_id = $1
        ORDER BY s.last_name ASC, s.first_name ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return roster, nil
}
