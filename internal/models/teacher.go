package models

import "time"

// Teacher holds the role-specific profile for a TEACHER user.
type Teacher struct {
	UserID        string  `db:"user_id" json:"user_id"`
	TeacherID     string  `db:"teacher_id" json:"teacher_id"`
	FirstName     string  `db:"first_name" json:"first_name"`
	LastName      string  `db:"last_name" json:"last_name"`
	Qualification string  `db:"qualification" json:"qualification"`
	DepartmentID  *string `db:"department_id" json:"department_id,omitempty"`
}

// TeacherDetail joins the profile with its identity and department columns.
type TeacherDetail struct {
	Teacher
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	Active         bool      `db:"active" json:"active"`
	DepartmentName *string   `db:"department_name" json:"department_name,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search       string
	DepartmentID string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
