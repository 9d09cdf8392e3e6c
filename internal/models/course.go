package models

import "time"

// Course represents a course offered by a department. A course may be
// unassigned (teacher_id NULL) after its owning teacher is deleted.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Description  string    `db:"description" json:"description"`
	Credits      int       `db:"credits" json:"credits"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with department and teacher context.
type CourseDetail struct {
	Course
	DepartmentName string  `db:"department_name" json:"department_name"`
	TeacherName    *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	Search       string
	DepartmentID string
	TeacherID    string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
