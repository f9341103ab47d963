package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// EnrollmentStatistics aggregates registrar-wide figures for reporting.
// The numbers are recomputed on demand from a snapshot and are not
// linearized with in-flight enrollment operations.
type EnrollmentStatistics struct {
	TotalRecords int                      `json:"total_records"`
	ByStatus     map[EnrollmentStatus]int `json:"by_status"`
	ByTerm       map[string]int           `json:"by_term"`
	Courses      []CourseStats            `json:"courses"`
}
