package models

import (
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment record.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "WITHDRAWN"
)

// EnrollmentType distinguishes how a record entered the system.
type EnrollmentType string

// Possible enrollment types.
const (
	EnrollmentTypeRegular    EnrollmentType = "REGULAR"
	EnrollmentTypeWaitlisted EnrollmentType = "WAITLISTED"
	EnrollmentTypeAudit      EnrollmentType = "AUDIT"
	EnrollmentTypeTransfer   EnrollmentType = "TRANSFER"
)

// validTransitions is the closed set of allowed status moves. DROPPED,
// COMPLETED and WITHDRAWN are terminal; records are never deleted.
var validTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusEnrolled:   {EnrollmentStatusDropped, EnrollmentStatusWithdrawn, EnrollmentStatusCompleted},
	EnrollmentStatusWaitlisted: {EnrollmentStatusEnrolled, EnrollmentStatusDropped, EnrollmentStatusWithdrawn},
}

// CanTransition reports whether moving from one status to another is allowed.
func (s EnrollmentStatus) CanTransition(to EnrollmentStatus) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Active reports whether the status occupies a seat or a waitlist slot.
func (s EnrollmentStatus) Active() bool {
	return s == EnrollmentStatusEnrolled || s == EnrollmentStatusWaitlisted
}

// Enrollment captures one student's relationship to one course offering in one term.
type Enrollment struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	CourseID   string           `json:"course_id"`
	TermID     string           `json:"term_id"`
	Type       EnrollmentType   `json:"type"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	Grade      *string          `json:"grade,omitempty"`
	DropReason *string          `json:"drop_reason,omitempty"`
	DroppedAt  *time.Time       `json:"dropped_at,omitempty"`
}

// Transition moves the record to a new status, rejecting invalid moves.
func (e *Enrollment) Transition(to EnrollmentStatus) error {
	if !e.Status.CanTransition(to) {
		return fmt.Errorf("invalid status transition %s -> %s", e.Status, to)
	}
	e.Status = to
	return nil
}

// EnrollmentFilter provides filters for listing enrollment records.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	TermID    string
	Status    EnrollmentStatus
}
