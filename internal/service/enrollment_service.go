package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
)

type courseCatalog interface {
	FindByID(id string) (*models.Course, error)
	All() []models.Course
}

type studentRoster interface {
	FindByID(id string) (*models.Student, error)
}

type termRegistry interface {
	FindByID(id string) (*models.Term, error)
}

// EnrollRequest describes an enrollment or waitlist request.
type EnrollRequest struct {
	StudentID string                `json:"student_id" validate:"required"`
	CourseID  string                `json:"course_id" validate:"required"`
	TermID    string                `json:"term_id" validate:"required"`
	Type      models.EnrollmentType `json:"type,omitempty"`
}

// DropRequest describes a drop or withdrawal.
type DropRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Reason    string `json:"reason,omitempty"`
}

// TransferRequest describes moving a student between course offerings.
type TransferRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	FromCourseID string `json:"from_course_id" validate:"required"`
	ToCourseID   string `json:"to_course_id" validate:"required"`
	TermID       string `json:"term_id" validate:"required"`
}

// BulkEnrollRequest enrolls several students into one offering.
type BulkEnrollRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
	CourseID   string   `json:"course_id" validate:"required"`
	TermID     string   `json:"term_id" validate:"required"`
}

// CompleteRequest marks an enrollment completed at term close.
type CompleteRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	Grade     *string `json:"grade,omitempty"`
}

// BulkEnrollFailure records one failed entry of a bulk request.
type BulkEnrollFailure struct {
	StudentID string `json:"student_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// BulkEnrollResult summarises a bulk enrollment run.
type BulkEnrollResult struct {
	Requested int                 `json:"requested"`
	Enrolled  int                 `json:"enrolled"`
	Failures  []BulkEnrollFailure `json:"failures,omitempty"`
}

// EnrollmentService is the enrollment manager: it validates requests against
// the catalog and roster, drives the guarded mutations of the enrollment
// store and triggers waitlist promotion on drops.
type EnrollmentService struct {
	store     *repository.EnrollmentStore
	courses   courseCatalog
	students  studentRoster
	terms     termRegistry
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store *repository.EnrollmentStore, courses courseCatalog, students studentRoster, terms termRegistry, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &EnrollmentService{store: store, courses: courses, students: students, terms: terms, notifier: notifier, metrics: metrics, validator: validate, logger: logger}
}

// Enroll registers a student into a course offering, occupying a seat.
// Preconditions are checked in a fixed order so failures are deterministic:
// payload validity, collaborator existence, then inside the course critical
// section duplicate record, load cap, seat availability and prerequisites.
// A full course is never silently converted into a waitlist entry.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	course, err := s.resolveParticipants(req.StudentID, req.CourseID, req.TermID)
	if err != nil {
		return nil, err
	}
	rec := s.newRecord(req.StudentID, req.CourseID, req.TermID, enrollmentType(req.Type, models.EnrollmentTypeRegular))
	if err := s.store.Enroll(rec, course); err != nil {
		s.metrics.RecordEnrollmentOp("enroll", outcomeOf(err))
		return nil, mapStoreError(err)
	}
	s.metrics.RecordEnrollmentOp("enroll", "ok")
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", rec.ID),
		zap.String("student_id", rec.StudentID),
		zap.String("course_id", rec.CourseID),
		zap.String("term_id", rec.TermID))
	out := *rec
	return &out, nil
}

// AddToWaitlist appends the student to the end of the course waitlist.
// Prerequisites are not checked here; they may become satisfied before a
// seat frees up and are re-validated at promotion time.
func (s *EnrollmentService) AddToWaitlist(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}
	course, err := s.resolveParticipants(req.StudentID, req.CourseID, req.TermID)
	if err != nil {
		return nil, err
	}
	rec := s.newRecord(req.StudentID, req.CourseID, req.TermID, models.EnrollmentTypeWaitlisted)
	if err := s.store.AddToWaitlist(rec, course); err != nil {
		s.metrics.RecordEnrollmentOp("waitlist", outcomeOf(err))
		return nil, mapStoreError(err)
	}
	s.metrics.RecordEnrollmentOp("waitlist", "ok")
	s.logger.Info("student waitlisted",
		zap.String("enrollment_id", rec.ID),
		zap.String("student_id", rec.StudentID),
		zap.String("course_id", rec.CourseID))
	out := *rec
	return &out, nil
}

// RemoveFromWaitlist takes the student off the course waitlist.
func (s *EnrollmentService) RemoveFromWaitlist(ctx context.Context, req DropRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist removal payload")
	}
	rec, err := s.store.RemoveFromWaitlist(req.StudentID, req.CourseID, time.Now().UTC())
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &rec, nil
}

// Drop releases the student's seat and promotes the next eligible waitlist
// entry before returning; the promotion is part of the drop, not a deferred
// task, so callers can rely on the seat count immediately afterwards.
func (s *EnrollmentService) Drop(ctx context.Context, req DropRequest) (*models.Enrollment, error) {
	return s.release(ctx, req, false)
}

// Withdraw behaves like Drop but records the WITHDRAWN status.
func (s *EnrollmentService) Withdraw(ctx context.Context, req DropRequest) (*models.Enrollment, error) {
	return s.release(ctx, req, true)
}

func (s *EnrollmentService) release(ctx context.Context, req DropRequest, withdraw bool) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}
	course, err := s.findCourse(req.CourseID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var dropped models.Enrollment
	var promoted []models.Enrollment
	if withdraw {
		dropped, promoted, err = s.store.Withdraw(req.StudentID, course, req.Reason, now)
	} else {
		dropped, promoted, err = s.store.Drop(req.StudentID, course, req.Reason, now)
	}
	if err != nil {
		s.metrics.RecordEnrollmentOp("drop", outcomeOf(err))
		return nil, mapStoreError(err)
	}
	s.metrics.RecordEnrollmentOp("drop", "ok")
	s.notifyPromotions(course.ID, promoted)
	s.logger.Info("student dropped",
		zap.String("enrollment_id", dropped.ID),
		zap.String("student_id", dropped.StudentID),
		zap.String("course_id", dropped.CourseID),
		zap.Int("promoted", len(promoted)))
	return &dropped, nil
}

// ProcessWaitlist promotes up to n entries from the front of the course
// waitlist and returns the number actually promoted.
func (s *EnrollmentService) ProcessWaitlist(ctx context.Context, courseID string, n int) (int, error) {
	if courseID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}
	if n <= 0 {
		n = 1
	}
	course, err := s.findCourse(courseID)
	if err != nil {
		return 0, err
	}
	promoted := s.store.ProcessWaitlist(course, n, time.Now().UTC())
	s.notifyPromotions(course.ID, promoted)
	return len(promoted), nil
}

// Transfer composes drop-then-enroll with rollback: when the enrollment into
// the target course fails, the student is re-enrolled into the source course
// so the net effect is fully transferred or unchanged. Waitlist promotion in
// the source course is deferred until the target enroll resolves, so the
// vacated seat is still free for the rollback. Only a concurrent taker of
// that seat surfaces as TRANSFER_INCONSISTENT, telling the caller the
// student may be enrolled in neither course.
func (s *EnrollmentService) Transfer(ctx context.Context, req TransferRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	fromCourse, err := s.findCourse(req.FromCourseID)
	if err != nil {
		return nil, err
	}
	toCourse, err := s.findCourse(req.ToCourseID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	dropped, err := s.store.DropForTransfer(req.StudentID, fromCourse, "transfer to "+toCourse.Code, now)
	if err != nil {
		return nil, mapStoreError(err)
	}

	rec := s.newRecord(req.StudentID, req.ToCourseID, req.TermID, models.EnrollmentTypeTransfer)
	enrollErr := s.store.Enroll(rec, toCourse)
	if enrollErr == nil {
		promoted := s.store.ProcessWaitlist(fromCourse, 1, now)
		s.notifyPromotions(fromCourse.ID, promoted)
		s.metrics.RecordEnrollmentOp("transfer", "ok")
		s.logger.Info("student transferred",
			zap.String("student_id", req.StudentID),
			zap.String("from_course_id", req.FromCourseID),
			zap.String("to_course_id", req.ToCourseID))
		out := *rec
		return &out, nil
	}

	rollback := s.newRecord(req.StudentID, req.FromCourseID, dropped.TermID, dropped.Type)
	if rbErr := s.store.Reinstate(rollback, fromCourse); rbErr != nil {
		s.metrics.RecordEnrollmentOp("transfer", "inconsistent")
		s.logger.Warn("transfer rollback failed, student enrolled in neither course",
			zap.String("student_id", req.StudentID),
			zap.String("from_course_id", req.FromCourseID),
			zap.String("to_course_id", req.ToCourseID),
			zap.Error(rbErr))
		return nil, appErrors.Wrap(enrollErr, appErrors.ErrTransferInconsistent.Code, appErrors.ErrTransferInconsistent.Status, appErrors.ErrTransferInconsistent.Message)
	}
	s.metrics.RecordEnrollmentOp("transfer", outcomeOf(enrollErr))
	return nil, mapStoreError(enrollErr)
}

// BulkEnroll applies Enroll per student in input order, continuing past
// individual failures. There are no all-or-nothing semantics.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, req BulkEnrollRequest) (*BulkEnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enrollment payload")
	}
	result := &BulkEnrollResult{Requested: len(req.StudentIDs)}
	for _, studentID := range req.StudentIDs {
		_, err := s.Enroll(ctx, EnrollRequest{StudentID: studentID, CourseID: req.CourseID, TermID: req.TermID})
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Failures = append(result.Failures, BulkEnrollFailure{StudentID: studentID, Code: appErr.Code, Message: appErr.Message})
			continue
		}
		result.Enrolled++
	}
	return result, nil
}

// Complete marks the student's enrollment COMPLETED, recording an optional
// grade and extending the student's completed set used by prerequisite
// checks. Term close drives this externally; no waitlist promotion happens.
func (s *EnrollmentService) Complete(ctx context.Context, req CompleteRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	rec, err := s.store.Complete(req.StudentID, req.CourseID, req.Grade)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &rec, nil
}

// IsEnrolled reports whether the student holds a seat in the offering.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, studentID, courseID, termID string) bool {
	return s.store.IsEnrolled(studentID, courseID, termID)
}

// IsWaitlisted reports whether the student queues for the offering.
func (s *EnrollmentService) IsWaitlisted(ctx context.Context, studentID, courseID, termID string) bool {
	return s.store.IsWaitlisted(studentID, courseID, termID)
}

// CurrentEnrollmentCount returns the course's seat ledger count.
func (s *EnrollmentService) CurrentEnrollmentCount(ctx context.Context, courseID string) int {
	return s.store.EnrolledCount(courseID)
}

// CurrentWaitlistCount returns the course's waitlist length.
func (s *EnrollmentService) CurrentWaitlistCount(ctx context.Context, courseID string) int {
	return s.store.WaitlistCount(courseID)
}

// HasAvailableSeats reports whether an enrollment would currently find a seat.
func (s *EnrollmentService) HasAvailableSeats(ctx context.Context, courseID string) (bool, error) {
	course, err := s.findCourse(courseID)
	if err != nil {
		return false, err
	}
	return s.store.HasAvailableSeats(course), nil
}

// EnrollmentsForStudent returns the student's record history.
func (s *EnrollmentService) EnrollmentsForStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	return s.store.EnrollmentsForStudent(studentID), nil
}

// EnrollmentsForCourse returns all records for the course.
func (s *EnrollmentService) EnrollmentsForCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}
	return s.store.EnrollmentsForCourse(courseID), nil
}

// List returns enrollment records matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) []models.Enrollment {
	return s.store.List(filter)
}

// Statistics recomputes registrar-wide aggregates from a store snapshot.
func (s *EnrollmentService) Statistics(ctx context.Context) models.EnrollmentStatistics {
	return s.store.Statistics(s.courses.All())
}

func (s *EnrollmentService) newRecord(studentID, courseID, termID string, typ models.EnrollmentType) *models.Enrollment {
	return &models.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		TermID:     termID,
		Type:       typ,
		EnrolledAt: time.Now().UTC(),
	}
}

// resolveParticipants checks collaborator existence and activity before the
// store's critical section runs.
func (s *EnrollmentService) resolveParticipants(studentID, courseID, termID string) (*models.Course, error) {
	student, err := s.students.FindByID(studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	course, err := s.findCourse(courseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course inactive")
	}
	if _, err := s.terms.FindByID(termID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrTermNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return course, nil
}

func (s *EnrollmentService) findCourse(courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *EnrollmentService) notifyPromotions(courseID string, promoted []models.Enrollment) {
	for _, rec := range promoted {
		s.metrics.RecordWaitlistPromotion()
		s.notifier.WaitlistPromoted(rec)
		s.logger.Info("waitlist promotion",
			zap.String("enrollment_id", rec.ID),
			zap.String("student_id", rec.StudentID),
			zap.String("course_id", courseID))
	}
}

func enrollmentType(requested, fallback models.EnrollmentType) models.EnrollmentType {
	if requested == "" {
		return fallback
	}
	return requested
}

// mapStoreError converts store sentinels into the API error taxonomy.
func mapStoreError(err error) error {
	var prereq *repository.PrerequisiteError
	switch {
	case errors.As(err, &prereq):
		return appErrors.WithDetails(appErrors.ErrPrerequisitesNotMet, prereq.Missing...)
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	case errors.Is(err, repository.ErrAlreadyWaitlisted):
		return appErrors.Clone(appErrors.ErrAlreadyWaitlisted, "")
	case errors.Is(err, repository.ErrNotEnrolled):
		return appErrors.Clone(appErrors.ErrNotEnrolled, "")
	case errors.Is(err, repository.ErrNotWaitlisted):
		return appErrors.Clone(appErrors.ErrNotWaitlisted, "")
	case errors.Is(err, repository.ErrCourseFull):
		return appErrors.Clone(appErrors.ErrCourseFull, "")
	case errors.Is(err, repository.ErrWaitlistFull):
		return appErrors.Clone(appErrors.ErrWaitlistFull, "")
	case errors.Is(err, repository.ErrLoadLimitExceeded):
		return appErrors.Clone(appErrors.ErrLoadLimitExceeded, "")
	case errors.Is(err, repository.ErrSeatTaken):
		return appErrors.Clone(appErrors.ErrCourseFull, "seat no longer available")
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment operation failed")
	}
}

// outcomeOf labels a store error for metrics.
func outcomeOf(err error) string {
	appErr := appErrors.FromError(mapStoreError(err))
	return appErr.Code
}
