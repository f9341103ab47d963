package repository

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the in-memory stores. The service layer maps
// them onto the API error taxonomy.
var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyEnrolled   = errors.New("already enrolled")
	ErrAlreadyWaitlisted = errors.New("already waitlisted")
	ErrNotEnrolled       = errors.New("not enrolled")
	ErrNotWaitlisted     = errors.New("not waitlisted")
	ErrCourseFull        = errors.New("course full")
	ErrWaitlistFull      = errors.New("waitlist full")
	ErrLoadLimitExceeded = errors.New("student load limit exceeded")
	ErrSeatTaken         = errors.New("seat no longer available")
	ErrPrerequisiteCycle = errors.New("prerequisite cycle")
	ErrDuplicateID       = errors.New("duplicate identifier")
)

// PrerequisiteError reports which prerequisite courses are missing.
type PrerequisiteError struct {
	Missing []string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisites not met: missing %s", strings.Join(e.Missing, ", "))
}
