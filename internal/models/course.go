package models

import "time"

// Course represents a course offering in the catalog.
type Course struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Title         string    `json:"title"`
	Department    string    `json:"department"`
	Credits       int       `json:"credits"`
	Capacity      int       `json:"capacity"`
	MaxWaitlist   int       `json:"max_waitlist"`
	Prerequisites []string  `json:"prerequisites"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	Department string
	Active     *bool
	Page       int
	PageSize   int
}

// CourseStats summarises the seat situation of one course.
type CourseStats struct {
	CourseID       string  `json:"course_id"`
	Code           string  `json:"code"`
	Capacity       int     `json:"capacity"`
	Enrolled       int     `json:"enrolled"`
	Waitlisted     int     `json:"waitlisted"`
	EnrollmentRate float64 `json:"enrollment_rate"`
	OverCapacity   bool    `json:"over_capacity"`
}
