package repository

import (
	"sync"
	"time"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

// UpdateReportJobParams carries partial report job updates.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	FilePath     *string
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// ReportJobRepository tracks export jobs in memory. Jobs are transient
// bookkeeping; the artifacts themselves live on disk.
type ReportJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]models.ReportJob
}

// NewReportJobRepository constructs an empty job store.
func NewReportJobRepository() *ReportJobRepository {
	return &ReportJobRepository{jobs: make(map[string]models.ReportJob)}
}

// Create stores a new job.
func (r *ReportJobRepository) Create(job models.ReportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return ErrDuplicateID
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return nil
}

// FindByID returns a copy of the job.
func (r *ReportJobRepository) FindByID(id string) (*models.ReportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

// Update applies the non-nil fields to the stored job.
func (r *ReportJobRepository) Update(id string, params UpdateReportJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.FilePath != nil {
		job.FilePath = *params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	r.jobs[id] = job
	return nil
}
