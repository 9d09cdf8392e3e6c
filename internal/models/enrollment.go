package models

import "time"

// Enrollment is one row of the student ↔ course join relation. The pair
// (student_user_id, course_id) is unique; both "enrolled courses of a
// student" and "students of a course" are derived queries over this table.
type Enrollment struct {
	StudentUserID string    `db:"student_user_id" json:"student_user_id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	EnrolledAt    time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// RosterEntry describes one enrolled student from the course side.
type RosterEntry struct {
	StudentUserID string    `db:"student_user_id" json:"student_user_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Email         string    `db:"email" json:"email"`
	EnrolledAt    time.Time `db:"enrolled_at" json:"enrolled_at"`
}
