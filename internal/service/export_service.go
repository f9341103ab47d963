package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/export"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/storage"
)

type enrollmentReader interface {
	List(filter models.EnrollmentFilter) []models.Enrollment
	Statistics(courses []models.Course) models.EnrollmentStatistics
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds registrar datasets and persists rendered files.
type ExportService struct {
	enrollments enrollmentReader
	catalog     courseCatalog
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments enrollmentReader, catalog courseCatalog, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		enrollments: enrollments,
		catalog:     catalog,
		storage:     files,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.CourseID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeRoster:
		return s.buildRosterDataset(job.Params, models.EnrollmentStatusEnrolled)
	case models.ReportTypeWaitlist:
		return s.buildRosterDataset(job.Params, models.EnrollmentStatusWaitlisted)
	case models.ReportTypeStatistics:
		return s.buildStatisticsDataset()
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildRosterDataset(params models.ReportJobParams, status models.EnrollmentStatus) (export.Dataset, string, error) {
	records := s.enrollments.List(models.EnrollmentFilter{
		CourseID: params.CourseID,
		TermID:   params.TermID,
		Status:   status,
	})
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]string{
			"Enrollment ID": rec.ID,
			"Student ID":    rec.StudentID,
			"Course ID":     rec.CourseID,
			"Term ID":       rec.TermID,
			"Status":        string(rec.Status),
			"Enrolled At":   rec.EnrolledAt.Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Enrollment ID", "Student ID", "Course ID", "Term ID", "Status", "Enrolled At"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Course Roster %s", params.CourseID)
	if status == models.EnrollmentStatusWaitlisted {
		title = fmt.Sprintf("Waitlist %s", params.CourseID)
	}
	return dataset, title, nil
}

func (s *ExportService) buildStatisticsDataset() (export.Dataset, string, error) {
	stats := s.enrollments.Statistics(s.catalog.All())
	rows := make([]map[string]string, 0, len(stats.Courses))
	for _, cs := range stats.Courses {
		over := "no"
		if cs.OverCapacity {
			over = "yes"
		}
		rows = append(rows, map[string]string{
			"Course":          cs.Code,
			"Capacity":        fmt.Sprintf("%d", cs.Capacity),
			"Enrolled":        fmt.Sprintf("%d", cs.Enrolled),
			"Waitlisted":      fmt.Sprintf("%d", cs.Waitlisted),
			"Enrollment Rate": fmt.Sprintf("%.2f", cs.EnrollmentRate),
			"Over Capacity":   over,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Course", "Capacity", "Enrolled", "Waitlisted", "Enrollment Rate", "Over Capacity"},
		Rows:    rows,
	}
	return dataset, "Enrollment Statistics", nil
}
