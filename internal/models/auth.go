package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// RegisterRequest carries the single-shot registration payload. StudentID
// is required for STUDENT registrations, TeacherID for TEACHER ones; the
// role-specific check happens in the service, not via struct tags.
type RegisterRequest struct {
	Username      string   `json:"username" validate:"required,min=3"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,min=6"`
	Role          UserRole `json:"role" validate:"required,oneof=TEACHER STUDENT"`
	StudentID     string   `json:"student_id"`
	TeacherID     string   `json:"teacher_id"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Qualification string   `json:"qualification"`
}

// ChangePasswordRequest payload for updating the password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
