package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/university-admin-api/internal/models"
	appErrors "github.com/noah-isme/university-admin-api/pkg/errors"
)

type mockStudentRepo struct {
	students     map[string]models.StudentDetail
	affiliations map[string]map[string]bool
	updated      []models.Student
	deleted      []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if s, ok := m.students[userID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUsername(ctx context.Context, username string) (*models.StudentDetail, error) {
	for _, s := range m.students {
		if s.Username == username {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByStudentID(ctx context.Context, studentID string, excludeUserID string) (bool, error) {
	for userID, s := range m.students {
		if s.StudentID == studentID && userID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) UpdateProfile(ctx context.Context, student *models.Student, email string) error {
	m.updated = append(m.updated, *student)
	s := m.students[student.UserID]
	s.Student = *student
	s.Email = email
	m.students[student.UserID] = s
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, userID string) error {
	delete(m.students, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

func (m *mockStudentRepo) ListDepartments(ctx context.Context, studentUserID string) ([]models.Department, error) {
	var out []models.Department
	for id := range m.affiliations[studentUserID] {
		out = append(out, models.Department{ID: id})
	}
	return out, nil
}

func (m *mockStudentRepo) AddDepartment(ctx context.Context, studentUserID, departmentID string) error {
	if m.affiliations == nil {
		m.affiliations = make(map[string]map[string]bool)
	}
	if m.affiliations[studentUserID] == nil {
		m.affiliations[studentUserID] = make(map[string]bool)
	}
	m.affiliations[studentUserID][departmentID] = true
	return nil
}

func (m *mockStudentRepo) RemoveDepartment(ctx context.Context, studentUserID, departmentID string) error {
	delete(m.affiliations[studentUserID], departmentID)
	return nil
}

type mockStudentUserRepo struct {
	users     map[string]models.User
	passwords map[string]string
}

func (m *mockStudentUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for id, u := range m.users {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	return nil
}

// mockEnrollmentRepo keeps the pair relation in memory; the course universe
// drives the enrolled/available split.
type mockEnrollmentRepo struct {
	universe []models.CourseDetail
	enrolled map[string]map[string]bool
}

func (m *mockEnrollmentRepo) pairs(studentUserID string) map[string]bool {
	if m.enrolled == nil {
		m.enrolled = make(map[string]map[string]bool)
	}
	if m.enrolled[studentUserID] == nil {
		m.enrolled[studentUserID] = make(map[string]bool)
	}
	return m.enrolled[studentUserID]
}

func (m *mockEnrollmentRepo) Enroll(ctx context.Context, studentUserID, courseID string) error {
	m.pairs(studentUserID)[courseID] = true
	return nil
}

func (m *mockEnrollmentRepo) Unenroll(ctx context.Context, studentUserID, courseID string) error {
	delete(m.pairs(studentUserID), courseID)
	return nil
}

func (m *mockEnrollmentRepo) ListCoursesByStudent(ctx context.Context, studentUserID string) ([]models.CourseDetail, error) {
	var out []models.CourseDetail
	for _, c := range m.universe {
		if m.pairs(studentUserID)[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListRoster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	var out []models.RosterEntry
	for studentUserID, courses := range m.enrolled {
		if courses[courseID] {
			out = append(out, models.RosterEntry{StudentUserID: studentUserID})
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListAvailableCourses(ctx context.Context, studentUserID string) ([]models.CourseDetail, error) {
	var out []models.CourseDetail
	for _, c := range m.universe {
		if !m.pairs(studentUserID)[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func courseUniverse(ids ...string) []models.CourseDetail {
	out := make([]models.CourseDetail, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.CourseDetail{Course: models.Course{ID: id}})
	}
	return out
}

func newStudentService(repo *mockStudentRepo, users *mockStudentUserRepo, enrollments *mockEnrollmentRepo, courses *mockCourseRepo) *StudentService {
	if users == nil {
		users = &mockStudentUserRepo{users: map[string]models.User{}}
	}
	if enrollments == nil {
		enrollments = &mockEnrollmentRepo{}
	}
	if courses == nil {
		courses = &mockCourseRepo{courses: map[string]models.Course{}}
	}
	departments := &mockDepartmentLookup{ids: map[string]bool{"dept-1": true, "dept-2": true}}
	return NewStudentService(repo, users, enrollments, courses, departments, validator.New(), zap.NewNop())
}

func seedStudent(repo *mockStudentRepo, userID, studentID, username string) {
	if repo.students == nil {
		repo.students = make(map[string]models.StudentDetail)
	}
	repo.students[userID] = models.StudentDetail{
		Student:  models.Student{UserID: userID, StudentID: studentID, FirstName: "Ana", LastName: "Lopez"},
		Username: username,
		Email:    username + "@example.edu",
		Active:   true,
	}
}

func TestStudentServiceEnrollIdempotent(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	enrollments := &mockEnrollmentRepo{universe: courseUniverse("c1")}
	courses := &mockCourseRepo{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	svc := newStudentService(repo, nil, enrollments, courses)

	require.NoError(t, svc.Enroll(context.Background(), "s1", "c1"))
	require.NoError(t, svc.Enroll(context.Background(), "s1", "c1"))

	enrolled, err := svc.EnrolledCourses(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, enrolled, 1)
}

func TestStudentServiceUnenrollAbsentIsNoop(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	svc := newStudentService(repo, nil, &mockEnrollmentRepo{universe: courseUniverse("c1")}, nil)

	require.NoError(t, svc.Unenroll(context.Background(), "s1", "c1"))
}

func TestStudentServiceEnrollUnknownCourse(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	svc := newStudentService(repo, nil, nil, nil)

	err := svc.Enroll(context.Background(), "s1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceEnrolledAndAvailablePartition(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	enrollments := &mockEnrollmentRepo{universe: courseUniverse("c1", "c2", "c3")}
	courses := &mockCourseRepo{courses: map[string]models.Course{"c1": {ID: "c1"}, "c2": {ID: "c2"}, "c3": {ID: "c3"}}}
	svc := newStudentService(repo, nil, enrollments, courses)

	require.NoError(t, svc.Enroll(context.Background(), "s1", "c2"))

	enrolled, err := svc.EnrolledCourses(context.Background(), "s1")
	require.NoError(t, err)
	available, err := svc.AvailableCourses(context.Background(), "s1")
	require.NoError(t, err)

	assert.Len(t, enrolled, 1)
	assert.Len(t, available, 2)
	seen := make(map[string]bool)
	for _, c := range append(enrolled, available...) {
		assert.False(t, seen[c.ID], "course %s listed twice", c.ID)
		seen[c.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestStudentServiceUpdateProfileWrongPassword(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockStudentUserRepo{users: map[string]models.User{
		"s1": {ID: "s1", Username: "ana", Email: "ana@example.edu", PasswordHash: string(hash)},
	}}
	svc := newStudentService(repo, users, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "s1", UpdateStudentProfileRequest{
		StudentID: "STU-1", Email: "ana@example.edu", FirstName: "Ana", LastName: "Lopez",
		CurrentPassword: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestStudentServiceUpdateProfileRehashOnlyWhenProvided(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockStudentUserRepo{users: map[string]models.User{
		"s1": {ID: "s1", Username: "ana", Email: "ana@example.edu", PasswordHash: string(hash)},
	}}
	svc := newStudentService(repo, users, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "s1", UpdateStudentProfileRequest{
		StudentID: "STU-1", Email: "new@example.edu", FirstName: "Ana", LastName: "Lopez",
		CurrentPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Empty(t, users.passwords, "password must not be rehashed without a new value")

	_, err = svc.UpdateProfile(context.Background(), "s1", UpdateStudentProfileRequest{
		StudentID: "STU-1", Email: "new@example.edu", FirstName: "Ana", LastName: "Lopez",
		CurrentPassword: "secret1", NewPassword: "secret2",
	})
	require.NoError(t, err)
	require.Contains(t, users.passwords, "s1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.passwords["s1"]), []byte("secret2")))
}

func TestStudentServiceUnenrollRemovesFromRoster(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	enrollments := &mockEnrollmentRepo{universe: courseUniverse("c1")}
	courseRepo := &mockCourseRepo{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	students := newStudentService(repo, nil, enrollments, courseRepo)
	courses := NewCourseService(courseRepo, &mockDepartmentLookup{}, &mockTeacherLookup{}, enrollments, nil, validator.New(), zap.NewNop())

	require.NoError(t, students.Enroll(context.Background(), "s1", "c1"))
	roster, err := courses.Roster(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "s1", roster[0].StudentUserID)

	// Unenrolling restores both directions of the association.
	require.NoError(t, students.Unenroll(context.Background(), "s1", "c1"))
	roster, err = courses.Roster(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, roster)
	enrolled, err := students.EnrolledCourses(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, enrolled)
}

func TestStudentServiceAdminUpdateReplacesAffiliations(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	require.NoError(t, repo.AddDepartment(context.Background(), "s1", "dept-1"))
	users := &mockStudentUserRepo{users: map[string]models.User{
		"s1": {ID: "s1", Username: "ana", Email: "ana@example.edu"},
	}}
	svc := newStudentService(repo, users, nil, nil)

	departments := []string{"dept-2"}
	_, err := svc.AdminUpdate(context.Background(), "s1", AdminUpdateStudentRequest{
		StudentID: "STU-1", Email: "ana@example.edu", FirstName: "Ana", LastName: "Lopez",
		DepartmentIDs: &departments,
	})
	require.NoError(t, err)
	assert.False(t, repo.affiliations["s1"]["dept-1"])
	assert.True(t, repo.affiliations["s1"]["dept-2"])
}

func TestStudentServiceAdminUpdateKeepsAffiliationsWhenOmitted(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	require.NoError(t, repo.AddDepartment(context.Background(), "s1", "dept-1"))
	users := &mockStudentUserRepo{users: map[string]models.User{
		"s1": {ID: "s1", Username: "ana", Email: "ana@example.edu"},
	}}
	svc := newStudentService(repo, users, nil, nil)

	_, err := svc.AdminUpdate(context.Background(), "s1", AdminUpdateStudentRequest{
		StudentID: "STU-1", Email: "ana@example.edu", FirstName: "Anna", LastName: "Lopez",
	})
	require.NoError(t, err)
	assert.True(t, repo.affiliations["s1"]["dept-1"])
	assert.Empty(t, users.passwords, "password must not be rehashed without a new value")
}

func TestStudentServiceAdminUpdateDuplicateNumber(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	seedStudent(repo, "s2", "STU-2", "ben")
	users := &mockStudentUserRepo{users: map[string]models.User{
		"s1": {ID: "s1", Username: "ana", Email: "ana@example.edu"},
	}}
	svc := newStudentService(repo, users, nil, nil)

	_, err := svc.AdminUpdate(context.Background(), "s1", AdminUpdateStudentRequest{
		StudentID: "STU-2", Email: "ana@example.edu", FirstName: "Ana", LastName: "Lopez",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestStudentServiceAdminUpdateResetsPassword(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	users := &mockStudentUserRepo{users: map[string]models.User{
		"s1": {ID: "s1", Username: "ana", Email: "ana@example.edu"},
	}}
	svc := newStudentService(repo, users, nil, nil)

	_, err := svc.AdminUpdate(context.Background(), "s1", AdminUpdateStudentRequest{
		StudentID: "STU-1", Email: "ana@example.edu", FirstName: "Ana", LastName: "Lopez",
		NewPassword: "secret2",
	})
	require.NoError(t, err)
	require.Contains(t, users.passwords, "s1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.passwords["s1"]), []byte("secret2")))
}

func TestStudentServiceDepartmentAffiliations(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	svc := newStudentService(repo, nil, nil, nil)

	require.NoError(t, svc.AddDepartment(context.Background(), "s1", "dept-1"))
	require.NoError(t, svc.AddDepartment(context.Background(), "s1", "dept-1"))

	departments, err := svc.Departments(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, departments, 1)

	require.NoError(t, svc.RemoveDepartment(context.Background(), "s1", "dept-1"))
	departments, err = svc.Departments(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, departments)
}

func TestStudentServiceAddUnknownDepartment(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	svc := newStudentService(repo, nil, nil, nil)

	err := svc.AddDepartment(context.Background(), "s1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &mockStudentRepo{}
	seedStudent(repo, "s1", "STU-1", "ana")
	svc := newStudentService(repo, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Contains(t, repo.deleted, "s1")

	err := svc.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
