package models

import "time"

// Student holds the role-specific profile for a STUDENT user.
type Student struct {
	UserID    string `db:"user_id" json:"user_id"`
	StudentID string `db:"student_id" json:"student_id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// StudentDetail joins the profile with its identity columns.
type StudentDetail struct {
	Student
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
