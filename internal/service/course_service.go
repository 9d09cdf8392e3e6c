package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/university-admin-api/internal/models"
	appErrors "github.com/noah-isme/university-admin-api/pkg/errors"
)

const courseCatalogCacheKey = "courses:catalog"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	ListByDepartment(ctx context.Context, departmentID string) ([]models.CourseDetail, error)
	ListByTeacher(ctx context.Context, teacherUserID string) ([]models.CourseDetail, error)
}

type courseDepartmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

type courseTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
}

type courseRosterRepository interface {
	ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	Name         string  `json:"name" validate:"required,min=2"`
	Code         string  `json:"code" validate:"required,min=2"`
	Description  string  `json:"description"`
	Credits      int     `json:"credits" validate:"required,min=1,max=30"`
	DepartmentID string  `json:"department_id" validate:"required"`
	TeacherID    *string `json:"teacher_id"`
}

// UpdateCourseRequest holds payload for updating courses. Nil association
// fields leave the stored association untouched.
type UpdateCourseRequest struct {
	Name         string  `json:"name" validate:"required,min=2"`
	Code         string  `json:"code" validate:"required,min=2"`
	Description  string  `json:"description"`
	Credits      int     `json:"credits" validate:"required,min=1,max=30"`
	DepartmentID *string `json:"department_id"`
	TeacherID    *string `json:"teacher_id"`
}

// CourseService handles course use-cases, including the ownership-gated
// variants used by teacher self-service.
type CourseService struct {
	repo        courseRepository
	departments courseDepartmentRepository
	teachers    courseTeacherRepository
	roster      courseRosterRepository
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, departments courseDepartmentRepository, teachers courseTeacherRepository, roster courseRosterRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:        repo,
		departments: departments,
		teachers:    teachers,
		roster:      roster,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

type cachedCatalog struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination models.Pagination     `json:"pagination"`
}

// List returns courses and pagination metadata. The unfiltered first page
// is served from cache when caching is enabled.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	cacheable := s.isCatalogDefault(filter)
	if cacheable {
		var cached cachedCatalog
		hit, err := s.cache.Get(ctx, courseCatalogCacheKey, &cached)
		if err == nil && hit {
			pagination := cached.Pagination
			return cached.Courses, &pagination, nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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

	if cacheable {
		_ = s.cache.Set(ctx, courseCatalogCacheKey, cachedCatalog{Courses: courses, Pagination: *pagination}, 0)
	}
	return courses, pagination, nil
}

func (s *CourseService) isCatalogDefault(filter models.CourseFilter) bool {
	return filter.Search == "" && filter.DepartmentID == "" && filter.TeacherID == "" &&
		filter.Page <= 1 && filter.PageSize <= 0 && filter.SortBy == "" && filter.SortOrder == ""
}

// Get fetches a single course with its department and teacher context.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	return detail, nil
}

// ByDepartment returns the courses offered by a department.
func (s *CourseService) ByDepartment(ctx context.Context, departmentID string) ([]models.CourseDetail, error) {
	if _, err := s.departments.FindByID(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
	}
	courses, err := s.repo.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list department courses")
	}
	return courses, nil
}

// ByTeacher returns the courses owned by a teacher.
func (s *CourseService) ByTeacher(ctx context.Context, teacherUserID string) ([]models.CourseDetail, error) {
	courses, err := s.repo.ListByTeacher(ctx, teacherUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher courses")
	}
	return courses, nil
}

// Create registers a new course after resolving its associations and
// checking name and code uniqueness.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.checkUniqueness(ctx, req.Name, req.Code, ""); err != nil {
		return nil, err
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
	}
	if req.TeacherID != nil {
		if _, err := s.teachers.FindByUserID(ctx, *req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
		}
	}

	now := time.Now().UTC()
	course := &models.Course{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Code:         req.Code,
		Description:  req.Description,
		Credits:      req.Credits,
		DepartmentID: req.DepartmentID,
		TeacherID:    req.TeacherID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return course, nil
}

// CreateOwned registers a course owned by the acting teacher. The owner is
// taken from the actor identity, never from the payload.
func (s *CourseService) CreateOwned(ctx context.Context, actorUserID string, req CreateCourseRequest) (*models.Course, error) {
	req.TeacherID = &actorUserID
	return s.Create(ctx, req)
}

// Update modifies an existing course. Uniqueness checks exclude the course
// itself; nil association fields keep the stored values.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}

	if err := s.checkUniqueness(ctx, req.Name, req.Code, id); err != nil {
		return nil, err
	}

	if req.DepartmentID != nil {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department")
		}
		course.DepartmentID = *req.DepartmentID
	}
	if req.TeacherID != nil {
		if *req.TeacherID == "" {
			course.TeacherID = nil
		} else {
			if _, err := s.teachers.FindByUserID(ctx, *req.TeacherID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
			}
			course.TeacherID = req.TeacherID
		}
	}

	course.Name = req.Name
	course.Code = req.Code
	course.Description = req.Description
	course.Credits = req.Credits
	course.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// UpdateOwned modifies a course after verifying the actor owns it. Owned
// updates cannot reassign the course to another teacher.
func (s *CourseService) UpdateOwned(ctx context.Context, actorUserID, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.authorizeOwner(ctx, actorUserID, id); err != nil {
		return nil, err
	}
	req.TeacherID = nil
	return s.Update(ctx, id, req)
}

// Delete removes a course and its enrollment rows.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

// DeleteOwned removes a course after verifying the actor owns it.
func (s *CourseService) DeleteOwned(ctx context.Context, actorUserID, id string) error {
	if err := s.authorizeOwner(ctx, actorUserID, id); err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

// Roster returns the enrolled students of a course.
func (s *CourseService) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	roster, err := s.roster.ListRoster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course roster")
	}
	return roster, nil
}

// RosterOwned returns the roster after verifying the actor owns the course.
func (s *CourseService) RosterOwned(ctx context.Context, actorUserID, courseID string) ([]models.RosterEntry, error) {
	if err := s.authorizeOwner(ctx, actorUserID, courseID); err != nil {
		return nil, err
	}
	return s.Roster(ctx, courseID)
}

func (s *CourseService) authorizeOwner(ctx context.Context, actorUserID, courseID string) error {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch course")
	}
	if course.TeacherID == nil || *course.TeacherID != actorUserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course is not owned by the current teacher")
	}
	return nil
}

func (s *CourseService) checkUniqueness(ctx context.Context, name, code, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "course name already in use")
	}

	exists, err = s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "course code already in use")
	}
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	s.cache.Invalidate(ctx, courseCatalogCacheKey)
}
