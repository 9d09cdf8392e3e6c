package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/university-admin-api/internal/models"
	"github.com/noah-isme/university-admin-api/internal/service"
	"github.com/noah-isme/university-admin-api/pkg/response"
)

type departmentRepoStub struct {
	departments map[string]models.Department
	references  map[string]models.DepartmentReferences
}

func (m *departmentRepoStub) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	out := make([]models.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *departmentRepoStub) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *departmentRepoStub) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	for id, d := range m.departments {
		if d.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *departmentRepoStub) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	for id, d := range m.departments {
		if d.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *departmentRepoStub) Create(ctx context.Context, department *models.Department) error {
	if m.departments == nil {
		m.departments = make(map[string]models.Department)
	}
	m.departments[department.ID] = *department
	return nil
}

func (m *departmentRepoStub) Update(ctx context.Context, department *models.Department) error {
	m.departments[department.ID] = *department
	return nil
}

func (m *departmentRepoStub) References(ctx context.Context, id string) (*models.DepartmentReferences, error) {
	refs := m.references[id]
	return &refs, nil
}

func (m *departmentRepoStub) Delete(ctx context.Context, id string) error {
	delete(m.departments, id)
	return nil
}

func newDepartmentHandler(repo *departmentRepoStub) *DepartmentHandler {
	svc := service.NewDepartmentService(repo, nil, nil, nil)
	return NewDepartmentHandler(svc, nil)
}

func TestDepartmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDepartmentHandler(&departmentRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.CreateDepartmentRequest{Name: "Computer Science", Code: "CS"})
	req, _ := http.NewRequest(http.MethodPost, "/departments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotNil(t, envelope.Data)
}

func TestDepartmentHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDepartmentHandler(&departmentRepoStub{departments: map[string]models.Department{
		"d1": {ID: "d1", Name: "Computer Science", Code: "CS"},
	}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.CreateDepartmentRequest{Name: "Computer Science", Code: "CSE"})
	req, _ := http.NewRequest(http.MethodPost, "/departments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDepartmentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDepartmentHandler(&departmentRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/departments/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDepartmentHandlerDeleteReferenced(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDepartmentHandler(&departmentRepoStub{
		departments: map[string]models.Department{"d1": {ID: "d1", Name: "CS", Code: "CS"}},
		references:  map[string]models.DepartmentReferences{"d1": {Teachers: 1}},
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/departments/d1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "d1"}}

	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}
