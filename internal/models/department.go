package models

import "time"

// Department represents an academic department.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentFilter captures supported filters for listing departments.
type DepartmentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// DepartmentReferences counts the rows that still point at a department.
// Deletion is refused while any count is non-zero.
type DepartmentReferences struct {
	Teachers int `db:"teachers" json:"teachers"`
	Courses  int `db:"courses" json:"courses"`
	Students int `db:"students" json:"students"`
}

func (r DepartmentReferences) Empty() bool {
	return r.Teachers == 0 && r.Courses == 0 && r.Students == 0
}
