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
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/university-admin-api/internal/models"
	appErrors "github.com/noah-isme/university-admin-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users     map[string]models.User
	students  map[string]models.Student
	teachers  map[string]models.Teacher
	passwords map[string]string
}

func newMockAuthUserRepo() *mockAuthUserRepo {
	return &mockAuthUserRepo{
		users:     make(map[string]models.User),
		students:  make(map[string]models.Student),
		teachers:  make(map[string]models.Teacher),
		passwords: make(map[string]string),
	}
}

func (m *mockAuthUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) ExistsByUsername(ctx context.Context, username string, excludeID string) (bool, error) {
	for id, u := range m.users {
		if u.Username == username && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for id, u := range m.users {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthUserRepo) CreateStudent(ctx context.Context, user *models.User, student *models.Student) error {
	m.users[user.ID] = *user
	m.students[student.UserID] = *student
	return nil
}

func (m *mockAuthUserRepo) CreateTeacher(ctx context.Context, user *models.User, teacher *models.Teacher) error {
	m.users[user.ID] = *user
	m.teachers[teacher.UserID] = *teacher
	return nil
}

func (m *mockAuthUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	u := m.users[id]
	u.PasswordHash = passwordHash
	m.users[id] = u
	m.passwords[id] = passwordHash
	return nil
}

type mockStudentIDIndex struct {
	taken map[string]string
}

func (m *mockStudentIDIndex) ExistsByStudentID(ctx context.Context, studentID string, excludeUserID string) (bool, error) {
	if userID, ok := m.taken[studentID]; ok {
		return excludeUserID == "" || userID != excludeUserID, nil
	}
	return false, nil
}

type mockTeacherIDIndex struct {
	taken map[string]string
}

func (m *mockTeacherIDIndex) ExistsByTeacherID(ctx context.Context, teacherID string, excludeUserID string) (bool, error) {
	if userID, ok := m.taken[teacherID]; ok {
		return excludeUserID == "" || userID != excludeUserID, nil
	}
	return false, nil
}

func newAuthService(users *mockAuthUserRepo, students *mockStudentIDIndex, teachers *mockTeacherIDIndex) *AuthService {
	if students == nil {
		students = &mockStudentIDIndex{taken: map[string]string{}}
	}
	if teachers == nil {
		teachers = &mockTeacherIDIndex{taken: map[string]string{}}
	}
	return NewAuthService(users, students, teachers, validator.New(), zap.NewNop(), AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "university-admin-api",
	})
}

func seedUser(repo *mockAuthUserRepo, id, username, password string, role models.UserRole, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	repo.users[id] = models.User{
		ID: id, Username: username, Email: username + "@example.edu",
		PasswordHash: string(hash), Role: role, Active: active,
	}
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	users := newMockAuthUserRepo()
	svc := newAuthService(users, nil, nil)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ana", Email: "ana@example.edu", Password: "secret1",
		Role: models.RoleStudent, StudentID: "STU-1", FirstName: "Ana", LastName: "Lopez",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Len(t, users.users, 1)
	assert.Len(t, users.students, 1)
}

func TestAuthServiceRegisterDuplicateUsernameWinsFirst(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "pw", models.RoleStudent, true)
	// The seeded user also holds the email and number the request wants;
	// the username conflict must be the one reported.
	u := users.users["u1"]
	u.Email = "ana@example.edu"
	users.users["u1"] = u
	students := &mockStudentIDIndex{taken: map[string]string{"STU-1": "u1"}}
	svc := newAuthService(users, students, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ana", Email: "ana@example.edu", Password: "secret1",
		Role: models.RoleStudent, StudentID: "STU-1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "username")
}

func TestAuthServiceRegisterStudentRequiresNumber(t *testing.T) {
	svc := newAuthService(newMockAuthUserRepo(), nil, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ana", Email: "ana@example.edu", Password: "secret1", Role: models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterAdminRejected(t *testing.T) {
	svc := newAuthService(newMockAuthUserRepo(), nil, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "root", Email: "root@example.edu", Password: "secret1", Role: models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "secret1", models.RoleStudent, true)
	svc := newAuthService(users, nil, nil)

	result, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "u1", result.User.ID)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "secret1", models.RoleStudent, true)
	svc := newAuthService(users, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownUserSameError(t *testing.T) {
	svc := newAuthService(newMockAuthUserRepo(), nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "secret1", models.RoleStudent, false)
	svc := newAuthService(users, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "secret1", models.RoleStudent, true)
	svc := newAuthService(users, nil, nil)

	result, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(result.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "secret1", models.RoleStudent, true)
	svc := newAuthService(users, nil, nil)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		CurrentPassword: "secret1", NewPassword: "secret2",
	})
	require.NoError(t, err)
	require.Contains(t, users.passwords, "u1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.passwords["u1"]), []byte("secret2")))
}

func TestAuthServiceChangePasswordWrongCurrent(t *testing.T) {
	users := newMockAuthUserRepo()
	seedUser(users, "u1", "ana", "secret1", models.RoleStudent, true)
	svc := newAuthService(users, nil, nil)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "secret2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.NotContains(t, users.passwords, "u1")
}
