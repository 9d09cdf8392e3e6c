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

const teacherDetailColumns = `t.user_id, t.teacher_id, t.first_name, t.last_name, t.qualification, t.department_id,
        u.username, u.email, u.active, d.name AS department_name, u.created_at, u.updated_at`

const teacherDetailJoins = `FROM teachers t
        JOIN users u ON u.id = t.user_id
        LEFT JOIN departments d ON d.id = t.department_id`

// TeacherRepository manages reads and profile updates for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching the provided filters.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("t.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(t.first_name) LIKE $%d OR LOWER(t.last_name) LIKE $%d OR LOWER(t.teacher_id) LIKE $%d OR LOWER(u.username) LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base := fmt.Sprintf("%s WHERE %s", teacherDetailJoins, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"teacher_id": "t.teacher_id",
		"last_name":  "t.last_name",
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, teacherDetailColumns, base, column, order, size, offset)

	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByUserID fetches a teacher detail by its user ID.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE t.user_id = $1`, teacherDetailColumns, teacherDetailJoins)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUsername fetches a teacher detail by account username.
func (r *TeacherRepository) FindByUsername(ctx context.Context, username string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE u.username = $1`, teacherDetailColumns, teacherDetailJoins)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, username); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByTeacherID checks teacher number uniqueness optionally excluding a user.
func (r *TeacherRepository) ExistsByTeacherID(ctx context.Context, teacherID string, excludeUserID string) (bool, error) {
	query := "SELECT 1 FROM teachers WHERE teacher_id = $1"
	args := []interface{}{teacherID}
	if excludeUserID != "" {
		query += " AND user_id <> $2"
		args = append(args, excludeUserID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher id: %w", err)
	}
	return true, nil
}

// UpdateProfile writes the profile row and the account email together.
func (r *TeacherRepository) UpdateProfile(ctx context.Context, teacher *models.Teacher, email string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin teacher update: %w", err)
	}
	const profileSQL = `UPDATE teachers SET teacher_id = :teacher_id, first_name = :first_name, last_name = :last_name,
        qualification = :qualification, department_id = :department_id WHERE user_id = :user_id`
	if _, err := tx.NamedExecContext(ctx, profileSQL, teacher); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update teacher profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET email = $2, updated_at = $3 WHERE id = $1`, teacher.UserID, email, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update teacher email: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit teacher update: %w", err)
	}
	return nil
}

// Delete removes the teacher account. Owned courses are released, not
// deleted: their teacher_id becomes NULL inside the same transaction.
func (r *TeacherRepository) Delete(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin teacher delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE courses SET teacher_id = NULL, updated_at = $2 WHERE teacher_id = $1`, userID, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("release teacher courses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM teachers WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete teacher profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete teacher user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit teacher delete: %w", err)
	}
	return nil
}
