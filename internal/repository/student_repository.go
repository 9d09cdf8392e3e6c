package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/university-admin-api/internal/models"
)

const studentDetailColumns = `s.user_id, s.student_id, s.first_name, s.last_name,
        u.username, u.email, u.active, u.created_at, u.updated_at`

const studentDetailJoins = `FROM students s JOIN users u ON u.id = s.user_id`

// StudentRepository manages reads and profile updates for students.
// Creation happens through UserRepository so identity and profile commit
// together.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR LOWER(s.student_id) LIKE $%d OR LOWER(u.username) LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base := fmt.Sprintf("%s WHERE %s", studentDetailJoins, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"student_id": "s.student_id",
		"last_name":  "s.last_name",
		"created_at": "u.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "u.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, studentDetailColumns, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByUserID fetches a student detail by its user ID.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.user_id = $1`, studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUsername fetches a student detail by account username.
func (r *StudentRepository) FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE u.username = $1`, studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, username); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByStudentID checks student number uniqueness optionally excluding a user.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string, excludeUserID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE student_id = $1"
	args := []interface{}{studentID}
	if excludeUserID != "" {
		query += " AND user_id <> $2"
		args = append(args, excludeUserID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// UpdateProfile writes the profile row and the account email together.
func (r *StudentRepository) UpdateProfile(ctx context.Context, student *models.Student, email string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student update: %w", err)
	}
	const profileSQL = `UPDATE students SET student_id = :student_id, first_name = :first_name, last_name = :last_name WHERE user_id = :user_id`
	if _, err := tx.NamedExecContext(ctx, profileSQL, student); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update student profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET email = $2, updated_at = $3 WHERE id = $1`, student.UserID, email, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update student email: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student update: %w", err)
	}
	return nil
}

// Delete removes the student account; the profile row and enrollment
// rows cascade with the users row.
func (r *StudentRepository) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM users WHERE id = $1 AND role = 'STUDENT'`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// ListDepartments returns the departments a student is affiliated with.
func (r *StudentRepository) ListDepartments(ctx context.Context, studentUserID string) ([]models.Department, error) {
	const query = `SELECT d.id, d.name, d.code, d.description, d.created_at, d.updated_at
        FROM student_departments sd
        JOIN departments d ON d.id = sd.department_id
        WHERE sd.student_user_id = $1
        ORDER BY d.name ASC`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, studentUserID); err != nil {
		return nil, fmt.Errorf("list student departments: %w", err)
	}
	return departments, nil
}

// AddDepartment records an advisory affiliation; duplicates are no-ops.
func (r *StudentRepository) AddDepartment(ctx context.Context, studentUserID, departmentID string) error {
	const query = `INSERT INTO student_departments (student_user_id, department_id)
        VALUES ($1, $2) ON CONFLICT (student_user_id, department_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, studentUserID, departmentID); err != nil {
		return fmt.Errorf("add student department: %w", err)
	}
	return nil
}

// RemoveDepartment drops an affiliation; missing rows are no-ops.
func (r *StudentRepository) RemoveDepartment(ctx context.Context, studentUserID, departmentID string) error {
	const query = `DELETE FROM student_departments WHERE student_user_id = $1 AND department_id = $2`
	if _, err := r.db.ExecContext(ctx, query, studentUserID, departmentID); err != nil {
		return fmt.Errorf("remove student department: %w", err)
	}
	return nil
}
