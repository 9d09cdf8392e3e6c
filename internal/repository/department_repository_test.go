package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/university-admin-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDepartmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "code", "description", "created_at", "updated_at"}).
		AddRow("d1", "Computer Science", "CS", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, code, description, created_at, updated_at FROM departments WHERE id = $1")).
		WithArgs("d1").
		WillReturnRows(rows)

	department, err := repo.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "CS", department.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryExistsByNameExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM departments WHERE name = $1 AND id <> $2 LIMIT 1")).
		WithArgs("Computer Science", "d1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), "Computer Science", "d1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectExec("INSERT INTO departments").
		WithArgs(sqlmock.AnyArg(), "Computer Science", "CS", "CS dept", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	department := &models.Department{Name: "Computer Science", Code: "CS", Description: "CS dept"}
	require.NoError(t, repo.Create(context.Background(), department))
	assert.NotEmpty(t, department.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryReferences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	rows := sqlmock.NewRows([]string{"teachers", "courses", "students"}).AddRow(1, 3, 0)
	mock.ExpectQuery("SELECT").
		WithArgs("d1").
		WillReturnRows(rows)

	refs, err := repo.References(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, refs.Empty())
	assert.Equal(t, 3, refs.Courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM departments WHERE id = $1")).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
