package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Status  int      `json:"status"`
	Details []string `json:"details,omitempty"`
	Err     error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. Enrollment failures are expected business outcomes,
// never fatal; they carry conflict/precondition semantics for the API layer.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrStudentNotFound      = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrCourseNotFound       = New("COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
	ErrTermNotFound         = New("TERM_NOT_FOUND", http.StatusNotFound, "term not found")
	ErrAlreadyEnrolled      = New("ALREADY_ENROLLED", http.StatusConflict, "student already enrolled in course for term")
	ErrAlreadyWaitlisted    = New("ALREADY_WAITLISTED", http.StatusConflict, "student already waitlisted for course in term")
	ErrNotEnrolled          = New("NOT_ENROLLED", http.StatusConflict, "student has no active enrollment in course")
	ErrNotWaitlisted        = New("NOT_WAITLISTED", http.StatusConflict, "student is not on the course waitlist")
	ErrCourseFull           = New("COURSE_FULL", http.StatusConflict, "course has no available seats")
	ErrWaitlistFull         = New("WAITLIST_FULL", http.StatusConflict, "course waitlist is full")
	ErrLoadLimitExceeded    = New("LOAD_LIMIT_EXCEEDED", http.StatusConflict, "student enrollment load limit reached")
	ErrPrerequisitesNotMet  = New("PREREQUISITES_NOT_MET", http.StatusPreconditionFailed, "prerequisites not satisfied")
	ErrPrerequisiteCycle    = New("PREREQUISITE_CYCLE", http.StatusUnprocessableEntity, "prerequisite set introduces a cycle")
	ErrTransferInconsistent = New("TRANSFER_INCONSISTENT", http.StatusConflict, "transfer failed and rollback could not restore the original enrollment")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying extra detail strings,
// e.g. the missing prerequisite course IDs.
func WithDetails(err *Error, details ...string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = append([]string{}, details...)
	return &clone
}
