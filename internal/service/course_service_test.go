package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/university-admin-api/internal/models"
	appErrors "github.com/noah-isme/university-admin-api/pkg/errors"
)

// mockCacheRepo records invalidations; reads always miss.
type mockCacheRepo struct {
	deleted []string
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.deleted = append(m.deleted, keys...)
	return nil
}

func newTestCache(repo *mockCacheRepo) *CacheService {
	return NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
}

type mockCourseRepo struct {
	courses map[string]models.Course
	deleted []string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	out := make([]models.CourseDetail, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, models.CourseDetail{Course: c})
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return &models.CourseDetail{Course: c}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	for id, c := range m.courses {
		if c.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	for id, c := range m.courses {
		if c.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCourseRepo) ListByDepartment(ctx context.Context, departmentID string) ([]models.CourseDetail, error) {
	var out []models.CourseDetail
	for _, c := range m.courses {
		if c.DepartmentID == departmentID {
			out = append(out, models.CourseDetail{Course: c})
		}
	}
	return out, nil
}

func (m *mockCourseRepo) ListByTeacher(ctx context.Context, teacherUserID string) ([]models.CourseDetail, error) {
	var out []models.CourseDetail
	for _, c := range m.courses {
		if c.TeacherID != nil && *c.TeacherID == teacherUserID {
			out = append(out, models.CourseDetail{Course: c})
		}
	}
	return out, nil
}

type mockDepartmentLookup struct {
	ids map[string]bool
}

func (m *mockDepartmentLookup) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if m.ids[id] {
		return &models.Department{ID: id}, nil
	}
	return nil, sql.ErrNoRows
}

type mockTeacherLookup struct {
	ids map[string]bool
}

func (m *mockTeacherLookup) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	if m.ids[userID] {
		return &models.TeacherDetail{Teacher: models.Teacher{UserID: userID}}, nil
	}
	return nil, sql.ErrNoRows
}

type mockRosterRepo struct {
	rosters map[string][]models.RosterEntry
}

func (m *mockRosterRepo) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	return m.rosters[courseID], nil
}

func newCourseService(repo *mockCourseRepo, departments *mockDepartmentLookup, teachers *mockTeacherLookup, roster *mockRosterRepo) *CourseService {
	if departments == nil {
		departments = &mockDepartmentLookup{ids: map[string]bool{"dept-1": true}}
	}
	if teachers == nil {
		teachers = &mockTeacherLookup{ids: map[string]bool{"teacher-1": true}}
	}
	if roster == nil {
		roster = &mockRosterRepo{}
	}
	return NewCourseService(repo, departments, teachers, roster, nil, validator.New(), zap.NewNop())
}

func TestCourseServiceCreate(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := newCourseService(repo, nil, nil, nil)

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, course.ID)
	assert.Nil(t, course.TeacherID)
}

func TestCourseServiceCreateUnknownDepartment(t *testing.T) {
	svc := newCourseService(&mockCourseRepo{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceCreateOwnedForcesActor(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := newCourseService(repo, nil, nil, nil)

	other := "teacher-1"
	course, err := svc.CreateOwned(context.Background(), "teacher-1", CreateCourseRequest{
		Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1", TeacherID: &other,
	})
	require.NoError(t, err)
	require.NotNil(t, course.TeacherID)
	assert.Equal(t, "teacher-1", *course.TeacherID)
}

func TestCourseServiceUpdateOwnedForbiddenForNonOwner(t *testing.T) {
	owner := "teacher-1"
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1", TeacherID: &owner},
	}}
	svc := newCourseService(repo, nil, nil, nil)

	_, err := svc.UpdateOwned(context.Background(), "teacher-2", "c1", UpdateCourseRequest{Name: "Algorithms", Code: "CS201", Credits: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateOwnedKeepsOwnership(t *testing.T) {
	owner := "teacher-1"
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1", TeacherID: &owner},
	}}
	svc := newCourseService(repo, nil, nil, nil)

	updated, err := svc.UpdateOwned(context.Background(), "teacher-1", "c1", UpdateCourseRequest{Name: "Advanced Algorithms", Code: "CS201", Credits: 4})
	require.NoError(t, err)
	require.NotNil(t, updated.TeacherID)
	assert.Equal(t, "teacher-1", *updated.TeacherID)
	assert.Equal(t, "Advanced Algorithms", updated.Name)
}

func TestCourseServiceUpdateClearTeacher(t *testing.T) {
	owner := "teacher-1"
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1", TeacherID: &owner},
	}}
	svc := newCourseService(repo, nil, nil, nil)

	empty := ""
	updated, err := svc.Update(context.Background(), "c1", UpdateCourseRequest{Name: "Algorithms", Code: "CS201", Credits: 4, TeacherID: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.TeacherID)
}

func TestCourseServiceDeleteOwnedUnassignedCourse(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1"},
	}}
	svc := newCourseService(repo, nil, nil, nil)

	// An unassigned course has no owner, so no teacher may manage it.
	err := svc.DeleteOwned(context.Background(), "teacher-1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceRosterOwned(t *testing.T) {
	owner := "teacher-1"
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1", Name: "Algorithms", Code: "CS201", Credits: 4, DepartmentID: "dept-1", TeacherID: &owner},
	}}
	roster := &mockRosterRepo{rosters: map[string][]models.RosterEntry{
		"c1": {{StudentUserID: "s1", StudentID: "STU-1", FirstName: "Ana", LastName: "Lopez"}},
	}}
	svc := newCourseService(repo, nil, nil, roster)

	entries, err := svc.RosterOwned(context.Background(), "teacher-1", "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "STU-1", entries[0].StudentID)
}
