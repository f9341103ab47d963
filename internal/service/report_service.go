package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
	"github.com/SatvikPraveen/SmartCampus-sub000/pkg/jobs"
)

const statsCacheKey = "registrar:stats:v1"

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (string, string, time.Time, error)
	Open(relPath string) (*os.File, error)
}

type reportJobStore interface {
	Create(job models.ReportJob) error
	FindByID(id string) (*models.ReportJob, error)
	Update(id string, params repository.UpdateReportJobParams) error
}

// SubmitReportRequest describes a report generation request.
type SubmitReportRequest struct {
	Type     string `json:"type" validate:"required,oneof=roster waitlist statistics"`
	CourseID string `json:"course_id" validate:"omitempty,min=1"`
	TermID   string `json:"term_id" validate:"omitempty,min=1"`
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportService coordinates asynchronous exports and the statistics endpoint.
type ReportService struct {
	jobsRepo    reportJobStore
	exporter    exportGenerator
	enrollments *EnrollmentService
	catalog     courseCatalog
	cache       *CacheService
	queue       *jobs.Queue
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewReportService constructs a ReportService. Call StartWorkers before
// submitting jobs.
func NewReportService(jobsRepo reportJobStore, exporter exportGenerator, enrollments *EnrollmentService, catalog courseCatalog, cache *CacheService, validate *validator.Validate, logger *zap.Logger, queueCfg jobs.QueueConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		jobsRepo:    jobsRepo,
		exporter:    exporter,
		enrollments: enrollments,
		catalog:     catalog,
		cache:       cache,
		validate:    validate,
		logger:      logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("reports", s.process, queueCfg)
	return s
}

// StartWorkers launches the background workers.
func (s *ReportService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains and stops the background workers.
func (s *ReportService) StopWorkers() {
	s.queue.Stop()
}

// Submit validates and enqueues a report job, returning its queued record.
func (s *ReportService) Submit(ctx context.Context, req SubmitReportRequest) (*models.ReportJob, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	reportType := models.ReportType(req.Type)
	if (reportType == models.ReportTypeRoster || reportType == models.ReportTypeWaitlist) && req.CourseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course_id required for %s reports", req.Type))
	}

	job := models.ReportJob{
		ID:     uuid.NewString(),
		Type:   reportType,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{
			CourseID: req.CourseID,
			TermID:   req.TermID,
			Format:   models.ReportFormat(req.Format),
		},
	}
	if err := s.jobsRepo.Create(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job.ID}); err != nil {
		s.markFailed(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(job.Params.Format)))
	created, err := s.jobsRepo.FindByID(job.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return created, nil
}

// GetJob returns job status by ID.
func (s *ReportService) GetJob(id string) (*models.ReportJob, error) {
	job, err := s.jobsRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

// OpenDownload validates the signed token and opens the export artifact.
func (s *ReportService) OpenDownload(token string) (*os.File, *models.ReportJob, error) {
	jobID, relPath, _, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid or expired download token")
	}
	job, err := s.GetJob(jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.ReportStatusFinished {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("report job %s is not finished", jobID))
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export artifact not found")
	}
	return file, job, nil
}

// Statistics returns the enrollment statistics snapshot, served from cache
// when enabled. The second return reports whether the cache answered.
func (s *ReportService) Statistics(ctx context.Context) (models.EnrollmentStatistics, bool, error) {
	var cached models.EnrollmentStatistics
	if s.cache.Get(ctx, statsCacheKey, &cached) {
		return cached, true, nil
	}
	stats := s.enrollments.Statistics(ctx)
	s.cache.Set(ctx, statsCacheKey, stats)
	return stats, false, nil
}

// InvalidateStatistics drops the cached snapshot after mutating operations.
func (s *ReportService) InvalidateStatistics(ctx context.Context) {
	s.cache.Invalidate(ctx, statsCacheKey)
}

func (s *ReportService) process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	if jobID == "" {
		jobID = queued.ID
	}
	job, err := s.jobsRepo.FindByID(jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := s.jobsRepo.Update(jobID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := s.exporter.Generate(ctx, job)
	if err != nil {
		s.markFailed(jobID, err)
		return err
	}

	finished := models.ReportStatusFinished
	done := 100
	now := time.Now().UTC()
	update := repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &done,
		FilePath:   &result.RelativePath,
		ResultURL:  &result.URL,
		FinishedAt: &now,
	}
	if err := s.jobsRepo.Update(jobID, update); err != nil {
		return err
	}
	s.logger.Info("report job finished",
		zap.String("job_id", jobID),
		zap.String("file", result.RelativePath))
	return nil
}

func (s *ReportService) markFailed(jobID string, cause error) {
	failed := models.ReportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.jobsRepo.Update(jobID, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	s.logger.Warn("report job failed", zap.String("job_id", jobID), zap.Error(cause))
}
