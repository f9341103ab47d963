package models

import "time"

// ReportType enumerates supported asynchronous export categories.
type ReportType string

const (
	ReportTypeRoster     ReportType = "roster"
	ReportTypeWaitlist   ReportType = "waitlist"
	ReportTypeStatistics ReportType = "statistics"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob tracks background export job metadata.
type ReportJob struct {
	ID           string          `json:"id"`
	Type         ReportType      `json:"type"`
	Params       ReportJobParams `json:"params"`
	Status       ReportStatus    `json:"status"`
	Progress     int             `json:"progress"`
	FilePath     string          `json:"-"`
	ResultURL    *string         `json:"result_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped export options.
type ReportJobParams struct {
	CourseID string       `json:"course_id,omitempty"`
	TermID   string       `json:"term_id,omitempty"`
	Format   ReportFormat `json:"format"`
}
