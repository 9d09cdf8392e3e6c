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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
	FindByUsername(ctx context.Context, username string) (*models.TeacherDetail, error)
	ExistsByTeacherID(ctx context.Context, teacherID string, excludeUserID string) (bool, error)
	UpdateProfile(ctx context.Context, teacher *models.Teacher, email string) error
	Delete(ctx context.Context, userID string) error
}

type teacherUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type teacherDepartmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// UpdateTeacherRequest holds payload for updating a teacher profile. An
// empty DepartmentID pointer value clears the affiliation.
type UpdateTeacherRequest struct {
	TeacherID     string  `json:"teacher_id" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	FirstName     string  `json:"first_name" validate:"required"`
	LastName      string  `json:"last_name" validate:"required"`
	Qualification string  `json:"qualification"`
	DepartmentID  *string `json:"department_id"`
}

// UpdateTeacherProfileRequest holds the self-service profile update payload.
// The current password must match; the password is only rehashed when a new
// one is supplied.
type UpdateTeacherProfileRequest struct {
	TeacherID       string  `json:"teacher_id" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	FirstName       string  `json:"first_name" validate:"required"`
	LastName        string  `json:"last_name" validate:"required"`
	Qualification   string  `json:"qualification"`
	DepartmentID    *string `json:"department_id"`
	CurrentPassword string  `json:"current_password" validate:"required"`
	NewPassword     string  `json:"new_password" validate:"omitempty,min=6"`
}

// TeacherService handles teacher use-cases.
type TeacherService struct {
	repo        teacherRepository
	users       teacherUserRepository
	departments teacherDepartmentRepository
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, users teacherUserRepository, departments teacherDepartmentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, users: users, departments: departments, cache: cache, validator: validate, logger: logger}
}

// List returns teachers and pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
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
	return teachers, pagination, nil
}

// Get fetches a teacher by user id.
func (s *TeacherService) Get(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	return teacher, nil
}

// GetByUsername fetches a teacher by account username.
func (s *TeacherService) GetByUsername(ctx context.Context, username string) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	return teacher, nil
}

// Update modifies a teacher profile. Teacher number and email uniqueness
// checks exclude the teacher itself.
func (s *TeacherService) Update(ctx context.Context, userID string, req UpdateTeacherRequest) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	current, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}

	exists, err := s.repo.ExistsByTeacherID(ctx, req.TeacherID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher number already in use")
	}

	exists, err = s.users.ExistsByEmail(ctx, req.Email, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	departmentID := current.DepartmentID
	if req.DepartmentID != nil {
		if *req.DepartmentID == "" {
			departmentID = nil
		} else {
			if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
			}
			departmentID = req.DepartmentID
		}
	}

	teacher := &models.Teacher{
		UserID:        userID,
		TeacherID:     req.TeacherID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Qualification: req.Qualification,
		DepartmentID:  departmentID,
	}

	if err := s.repo.UpdateProfile(ctx, teacher, req.Email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}

	// Cached catalog rows carry the teacher name.
	s.cache.Invalidate(ctx, courseCatalogCacheKey)

	return s.Get(ctx, userID)
}

// UpdateProfile applies a self-service profile update. The caller proves
// possession of the current password before any change is written.
func (s *TeacherService) UpdateProfile(ctx context.Context, userID string, req UpdateTeacherProfileRequest) (*models.TeacherDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	updated, err := s.Update(ctx, userID, UpdateTeacherRequest{
		TeacherID:     req.TeacherID,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Qualification: req.Qualification,
		DepartmentID:  req.DepartmentID,
	})
	if err != nil {
		return nil, err
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

	return updated, nil
}

// Delete removes a teacher account. Courses owned by the teacher are
// released rather than deleted.
func (s *TeacherService) Delete(ctx context.Context, userID string) error {
	if _, err := s.repo.FindByUserID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	// Owned courses lose their teacher, so the cached catalog is stale.
	s.cache.Invalidate(ctx, courseCatalogCacheKey)
	s.logger.Info("teacher deleted", zap.String("user_id", userID))
	return nil
}
