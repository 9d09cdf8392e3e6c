package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/university-admin-api/internal/models"
	"github.com/noah-isme/university-admin-api/pkg/export"
)

// ExportFormat identifies a supported roster export format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult holds a rendered export ready to be served.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders course rosters as downloadable files.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger}
}

var rosterHeaders = []string{"Student ID", "First Name", "Last Name", "Email", "Enrolled At"}

// RenderRoster renders the roster of a course in the requested format.
func (s *ExportService) RenderRoster(ctx context.Context, course *models.CourseDetail, roster []models.RosterEntry, format ExportFormat) (*ExportResult, error) {
	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(roster))}
	for _, entry := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":  entry.StudentID,
			"First Name":  entry.FirstName,
			"Last Name":   entry.LastName,
			"Email":       entry.Email,
			"Enrolled At": entry.EnrolledAt.UTC().Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, fmt.Errorf("render roster csv: %w", err)
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("roster_%s_%s.csv", course.Code, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case ExportFormatPDF:
		title := fmt.Sprintf("Roster - %s (%s)", course.Name, course.Code)
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, fmt.Errorf("render roster pdf: %w", err)
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("roster_%s_%s.pdf", course.Code, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
