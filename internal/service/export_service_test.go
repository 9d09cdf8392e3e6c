package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/university-admin-api/internal/models"
)

func TestExportServiceRenderRosterCSV(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	course := &models.CourseDetail{Course: models.Course{ID: "c1", Name: "Algorithms", Code: "CS201"}}
	roster := []models.RosterEntry{
		{StudentUserID: "s1", StudentID: "STU-1", FirstName: "Ana", LastName: "Lopez", Email: "ana@example.edu", EnrolledAt: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)},
	}

	result, err := svc.RenderRoster(context.Background(), course, roster, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "roster_CS201_"))

	body := string(result.Data)
	assert.Contains(t, body, "Student ID,First Name,Last Name,Email,Enrolled At")
	assert.Contains(t, body, "STU-1,Ana,Lopez,ana@example.edu,2025-09-01T08:00:00Z")
}

func TestExportServiceRenderRosterPDF(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	course := &models.CourseDetail{Course: models.Course{ID: "c1", Name: "Algorithms", Code: "CS201"}}

	result, err := svc.RenderRoster(context.Background(), course, nil, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.NotEmpty(t, result.Data)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	course := &models.CourseDetail{Course: models.Course{ID: "c1", Name: "Algorithms", Code: "CS201"}}

	_, err := svc.RenderRoster(context.Background(), course, nil, ExportFormat("xlsx"))
	require.Error(t, err)
}
