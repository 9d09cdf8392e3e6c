package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/university-admin-api/internal/models"
	appErrors "github.com/noah-isme/university-admin-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error)
	ExistsByStudentID(ctx context.Context, studentID string, excludeUserID string) (bool, error)
	UpdateProfile(ctx context.Context, student *models.Student, email string) error
	Delete(ctx context.Context, userID string) error
	ListDepartments(ctx context.Context, studentUserID string) ([]models.Department, error)
	AddDepartment(ctx context.Context, studentUserID, departmentID string) error
	RemoveDepartment(ctx context.Context, studentUserID, departmentID string) error
}

type studentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type studentEnrollmentRepository interface {
	Enroll(ctx context.Context, studentUserID, courseID string) error
	Unenroll(ctx context.Context, studentUserID, courseID string) error
	ListCoursesByStudent(ctx context.Context, studentUserID string) ([]models.CourseDetail, error)
	ListAvailableCourses(ctx context.Context, studentUserID string) ([]models.CourseDetail, error)
}

type studentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentDepartmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// UpdateStudentProfileRequest holds the self-service profile update payload.
// The current password must match; the password is only rehashed when a new
// one is supplied.
type UpdateStudentProfileRequest struct {
	StudentID       string `json:"student_id" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"omitempty,min=6"`
}

// AdminUpdateStudentRequest holds the admin-facing student update payload.
// A non-empty NewPassword resets the account password; a nil DepartmentIDs
// slice keeps the stored affiliations, a non-nil one replaces them.
type AdminUpdateStudentRequest struct {
	StudentID     string    `json:"student_id" validate:"required"`
	Email         string    `json:"email" validate:"required,email"`
	FirstName     string    `json:"first_name" validate:"required"`
	LastName      string    `json:"last_name" validate:"required"`
	NewPassword   string    `json:"new_password" validate:"omitempty,min=6"`
	DepartmentIDs *[]string `json:"department_ids"`
}

// StudentService handles student use-cases including enrollment.
type StudentService struct {
	repo        studentRepository
	users       studentUserRepository
	enrollments studentEnrollmentRepository
	courses     studentCourseRepository
	departments studentDepartmentLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, users studentUserRepository, enrollments studentEnrollmentRepository, courses studentCourseRepository, departments studentDepartmentLookup, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        repo,
		users:       users,
		enrollments: enrollments,
		courses:     courses,
		departments: departments,
		validator:   validate,
		logger:      logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get fetches a student by user id.
func (s *StudentService) Get(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// GetByUsername fetches a student by account username.
func (s *StudentService) GetByUsername(ctx context.Context, username string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// UpdateProfile applies a self-service profile update. The caller proves
// possession of the current password before any change is written.
func (s *StudentService) UpdateProfile(ctx context.Context, userID string, req UpdateStudentProfileRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	exists, err := s.repo.ExistsByStudentID(ctx, req.StudentID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already in use")
	}

	exists, err = s.users.ExistsByEmail(ctx, req.Email, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	student := &models.Student{
		UserID:    userID,
		StudentID: req.StudentID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := s.repo.UpdateProfile(ctx, student, req.Email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	if req.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
	}

	return s.Get(ctx, userID)
}

// AdminUpdate applies an administrative student update. Unlike the
// self-service flow it needs no current password and can replace the
// department affiliation set wholesale.
func (s *StudentService) AdminUpdate(ctx context.Context, userID string, req AdminUpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	if _, err := s.repo.FindByUserID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	exists, err := s.repo.ExistsByStudentID(ctx, req.StudentID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already in use")
	}

	exists, err = s.users.ExistsByEmail(ctx, req.Email, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	if req.DepartmentIDs != nil {
		for _, departmentID := range *req.DepartmentIDs {
			if _, err := s.departments.FindByID(ctx, departmentID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
			}
		}
	}

	student := &models.Student{
		UserID:    userID,
		StudentID: req.StudentID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := s.repo.UpdateProfile(ctx, student, req.Email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if req.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
		}
	}

	if req.DepartmentIDs != nil {
		if err := s.replaceDepartments(ctx, userID, *req.DepartmentIDs); err != nil {
			return nil, err
		}
	}

	s.logger.Info("student updated", zap.String("user_id", userID))
	return s.Get(ctx, userID)
}

func (s *StudentService) replaceDepartments(ctx context.Context, userID string, departmentIDs []string) error {
	current, err := s.repo.ListDepartments(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student departments")
	}

	wanted := make(map[string]bool, len(departmentIDs))
	for _, id := range departmentIDs {
		wanted[id] = true
	}
	existing := make(map[string]bool, len(current))
	for _, d := range current {
		existing[d.ID] = true
		if !wanted[d.ID] {
			if err := s.repo.RemoveDepartment(ctx, userID, d.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove department affiliation")
			}
		}
	}
	for id := range wanted {
		if !existing[id] {
			if err := s.repo.AddDepartment(ctx, userID, id); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add department affiliation")
			}
		}
	}
	return nil
}

// Delete removes a student account along with its enrollment rows.
func (s *StudentService) Delete(ctx context.Context, userID string) error {
	if _, err := s.repo.FindByUserID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("user_id", userID))
	return nil
}

// Enroll adds the student to a course. Enrolling twice in the same course
// is a no-op.
func (s *StudentService) Enroll(ctx context.Context, studentUserID, courseID string) error {
	if _, err := s.repo.FindByUserID(ctx, studentUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if err := s.enrollments.Enroll(ctx, studentUserID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}
	s.logger.Info("student enrolled", zap.String("student_user_id", studentUserID), zap.String("course_id", courseID))
	return nil
}

// Unenroll removes the student from a course. Unenrolling from a course the
// student is not in is a no-op.
func (s *StudentService) Unenroll(ctx context.Context, studentUserID, courseID string) error {
	if err := s.enrollments.Unenroll(ctx, studentUserID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll")
	}
	return nil
}

// EnrolledCourses lists the courses the student is enrolled in.
func (s *StudentService) EnrolledCourses(ctx context.Context, studentUserID string) ([]models.CourseDetail, error) {
	courses, err := s.enrollments.ListCoursesByStudent(ctx, studentUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled courses")
	}
	return courses, nil
}

// AvailableCourses lists the courses the student is not enrolled in.
func (s *StudentService) AvailableCourses(ctx context.Context, studentUserID string) ([]models.CourseDetail, error) {
	courses, err := s.enrollments.ListAvailableCourses(ctx, studentUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	return courses, nil
}

// Departments lists the departments a student is affiliated with.
func (s *StudentService) Departments(ctx context.Context, studentUserID string) ([]models.Department, error) {
	departments, err := s.repo.ListDepartments(ctx, studentUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student departments")
	}
	return departments, nil
}

// AddDepartment records a department affiliation for the student.
func (s *StudentService) AddDepartment(ctx context.Context, studentUserID, departmentID string) error {
	if _, err := s.repo.FindByUserID(ctx, studentUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if _, err := s.departments.FindByID(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
	}
	if err := s.repo.AddDepartment(ctx, studentUserID, departmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add department affiliation")
	}
	return nil
}

// RemoveDepartment drops a department affiliation for the student.
func (s *StudentService) RemoveDepartment(ctx context.Context, studentUserID, departmentID string) error {
	if err := s.repo.RemoveDepartment(ctx, studentUserID, departmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove department affiliation")
	}
	return nil
}
