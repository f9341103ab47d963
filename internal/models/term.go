package models

import "time"

// Semester identifies the part of the academic year a term covers.
type Semester string

// Recognised semesters.
const (
	SemesterSpring Semester = "SPRING"
	SemesterSummer Semester = "SUMMER"
	SemesterFall   Semester = "FALL"
	SemesterWinter Semester = "WINTER"
)

// Term models an academic term (semester plus year).
type Term struct {
	ID        string    `json:"id"`
	Semester  Semester  `json:"semester"`
	Year      int       `json:"year"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
