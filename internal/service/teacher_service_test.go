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

type mockTeacherRepo struct {
	teachers map[string]models.TeacherDetail
	updated  []models.Teacher
	deleted  []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	out := make([]models.TeacherDetail, 0, len(m.teachers))
	for _, t := range m.teachers {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	if t, ok := m.teachers[userID]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) FindByUsername(ctx context.Context, username string) (*models.TeacherDetail, error) {
	for _, t := range m.teachers {
		if t.Username == username {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByTeacherID(ctx context.Context, teacherID string, excludeUserID string) (bool, error) {
	for userID, t := range m.teachers {
		if t.TeacherID == teacherID && userID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) UpdateProfile(ctx context.Context, teacher *models.Teacher, email string) error {
	m.updated = append(m.updated, *teacher)
	t := m.teachers[teacher.UserID]
	t.Teacher = *teacher
	t.Email = email
	m.teachers[teacher.UserID] = t
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, userID string) error {
	delete(m.teachers, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

func seedTeacher(repo *mockTeacherRepo, userID, teacherID, username string) {
	if repo.teachers == nil {
		repo.teachers = make(map[string]models.TeacherDetail)
	}
	repo.teachers[userID] = models.TeacherDetail{
		Teacher:  models.Teacher{UserID: userID, TeacherID: teacherID, FirstName: "John", LastName: "Smith"},
		Username: username,
		Email:    username + "@example.edu",
		Active:   true,
	}
}

func newTeacherService(repo *mockTeacherRepo, users *mockStudentUserRepo) *TeacherService {
	if users == nil {
		users = &mockStudentUserRepo{users: map[string]models.User{}}
	}
	departments := &mockDepartmentLookup{ids: map[string]bool{"dept-1": true}}
	return NewTeacherService(repo, users, departments, nil, validator.New(), zap.NewNop())
}

func TestTeacherServiceUpdateKeepsOwnNumber(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	svc := newTeacherService(repo, nil)

	updated, err := svc.Update(context.Background(), "t1", UpdateTeacherRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith", Qualification: "PhD",
	})
	require.NoError(t, err)
	assert.Equal(t, "PhD", updated.Qualification)
}

func TestTeacherServiceUpdateDuplicateNumber(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	seedTeacher(repo, "t2", "TCH-2", "mjones")
	svc := newTeacherService(repo, nil)

	_, err := svc.Update(context.Background(), "t1", UpdateTeacherRequest{
		TeacherID: "TCH-2", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdateDepartment(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	svc := newTeacherService(repo, nil)

	dept := "dept-1"
	updated, err := svc.Update(context.Background(), "t1", UpdateTeacherRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith", DepartmentID: &dept,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DepartmentID)
	assert.Equal(t, "dept-1", *updated.DepartmentID)

	// Clearing with an empty value drops the affiliation.
	empty := ""
	updated, err = svc.Update(context.Background(), "t1", UpdateTeacherRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith", DepartmentID: &empty,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.DepartmentID)
}

func TestTeacherServiceUpdateUnknownDepartment(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	svc := newTeacherService(repo, nil)

	dept := "missing"
	_, err := svc.Update(context.Background(), "t1", UpdateTeacherRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith", DepartmentID: &dept,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceDelete(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	svc := newTeacherService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "t1"))
	assert.Contains(t, repo.deleted, "t1")

	err := svc.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdateProfileWrongPassword(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockStudentUserRepo{users: map[string]models.User{
		"t1": {ID: "t1", Username: "jsmith", Email: "jsmith@example.edu", PasswordHash: string(hash)},
	}}
	svc := newTeacherService(repo, users)

	_, err := svc.UpdateProfile(context.Background(), "t1", UpdateTeacherProfileRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith",
		CurrentPassword: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestTeacherServiceUpdateProfileRehashOnlyWhenProvided(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockStudentUserRepo{users: map[string]models.User{
		"t1": {ID: "t1", Username: "jsmith", Email: "jsmith@example.edu", PasswordHash: string(hash)},
	}}
	svc := newTeacherService(repo, users)

	updated, err := svc.UpdateProfile(context.Background(), "t1", UpdateTeacherProfileRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith",
		Qualification: "PhD", CurrentPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "PhD", updated.Qualification)
	assert.Empty(t, users.passwords, "password must not be rehashed without a new value")

	_, err = svc.UpdateProfile(context.Background(), "t1", UpdateTeacherProfileRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "John", LastName: "Smith",
		CurrentPassword: "secret1", NewPassword: "secret2",
	})
	require.NoError(t, err)
	require.Contains(t, users.passwords, "t1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.passwords["t1"]), []byte("secret2")))
}

func TestTeacherServiceUpdateInvalidatesCourseCatalog(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	seedTeacher(repo, "t2", "TCH-2", "mjones")
	cacheRepo := &mockCacheRepo{}
	users := &mockStudentUserRepo{users: map[string]models.User{}}
	departments := &mockDepartmentLookup{ids: map[string]bool{"dept-1": true}}
	svc := NewTeacherService(repo, users, departments, newTestCache(cacheRepo), validator.New(), zap.NewNop())

	// Catalog rows embed the teacher name.
	_, err := svc.Update(context.Background(), "t1", UpdateTeacherRequest{
		TeacherID: "TCH-1", Email: "jsmith@example.edu", FirstName: "Jonathan", LastName: "Smith",
	})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.deleted, "courses:catalog")

	// Deleting a teacher releases owned courses.
	cacheRepo.deleted = nil
	require.NoError(t, svc.Delete(context.Background(), "t2"))
	assert.Contains(t, cacheRepo.deleted, "courses:catalog")
}

func TestTeacherServiceGetByUsername(t *testing.T) {
	repo := &mockTeacherRepo{}
	seedTeacher(repo, "t1", "TCH-1", "jsmith")
	svc := newTeacherService(repo, nil)

	teacher, err := svc.GetByUsername(context.Background(), "jsmith")
	require.NoError(t, err)
	assert.Equal(t, "t1", teacher.UserID)

	_, err = svc.GetByUsername(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
