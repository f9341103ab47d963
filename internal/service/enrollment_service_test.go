package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
)

type fixture struct {
	svc      *EnrollmentService
	store    *repository.EnrollmentStore
	courses  *repository.CourseRepository
	students *repository.StudentRepository
	terms    *repository.TermRepository
	notified *recordingNotifier
}

type recordingNotifier struct {
	promoted []models.Enrollment
}

func (n *recordingNotifier) WaitlistPromoted(rec models.Enrollment) {
	n.promoted = append(n.promoted, rec)
}

func newFixture(t *testing.T, loadCap int) *fixture {
	t.Helper()
	store := repository.NewEnrollmentStore(repository.EnrollmentStoreConfig{StudentLoadCap: loadCap})
	courses := repository.NewCourseRepository()
	students := repository.NewStudentRepository()
	terms := repository.NewTermRepository()
	notifier := &recordingNotifier{}
	svc := NewEnrollmentService(store, courses, students, terms, notifier, nil, nil, zap.NewNop())
	return &fixture{svc: svc, store: store, courses: courses, students: students, terms: terms, notified: notifier}
}

func (f *fixture) seedStudent(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.students.Create(models.Student{ID: id, Name: "Student " + id, Email: id + "@campus.edu", Active: true}))
}

func (f *fixture) seedCourse(t *testing.T, id string, capacity, maxWaitlist int, prereqs ...string) {
	t.Helper()
	require.NoError(t, f.courses.Create(models.Course{
		ID:            id,
		Code:          "CS-" + id,
		Title:         "Course " + id,
		Capacity:      capacity,
		MaxWaitlist:   maxWaitlist,
		Prerequisites: prereqs,
		Active:        true,
	}))
}

func (f *fixture) seedTerm(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.terms.Create(models.Term{ID: id, Semester: models.SemesterFall, Year: 2026, IsActive: true}))
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, code, appErr.Code)
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedStudent(t, "s1")
	f.seedCourse(t, "c1", 2, 5)
	f.seedTerm(t, "term-1")

	rec, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, rec.Status)
	assert.Equal(t, models.EnrollmentTypeRegular, rec.Type)
	assert.NotEmpty(t, rec.ID)
	assert.True(t, f.svc.IsEnrolled(ctx, "s1", "c1", "term-1"))

	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	assertCode(t, err, "ALREADY_ENROLLED")
}

func TestEnrollmentServiceEnrollValidation(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, EnrollRequest{CourseID: "c1", TermID: "term-1"})
	assertCode(t, err, "VALIDATION_ERROR")

	f.seedCourse(t, "c1", 2, 5)
	f.seedTerm(t, "term-1")
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "ghost", CourseID: "c1", TermID: "term-1"})
	assertCode(t, err, "STUDENT_NOT_FOUND")

	f.seedStudent(t, "s1")
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "ghost", TermID: "term-1"})
	assertCode(t, err, "COURSE_NOT_FOUND")

	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "ghost"})
	assertCode(t, err, "TERM_NOT_FOUND")
}

func TestEnrollmentServiceCourseFullAndWaitlist(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedCourse(t, "c1", 1, 2)
	f.seedTerm(t, "term-1")
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		f.seedStudent(t, id)
	}

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	// A full course is never silently demoted to a waitlist entry.
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	assertCode(t, err, "COURSE_FULL")

	w, err := f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, w.Status)
	assert.Equal(t, models.EnrollmentTypeWaitlisted, w.Type)

	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s3", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s4", CourseID: "c1", TermID: "term-1"})
	assertCode(t, err, "WAITLIST_FULL")

	// Drop promotes the head of the queue before returning.
	_, err = f.svc.Drop(ctx, DropRequest{StudentID: "s1", CourseID: "c1", Reason: "schedule conflict"})
	require.NoError(t, err)
	assert.True(t, f.svc.IsEnrolled(ctx, "s2", "c1", "term-1"))
	assert.False(t, f.svc.IsWaitlisted(ctx, "s2", "c1", "term-1"))
	require.Len(t, f.notified.promoted, 1)
	assert.Equal(t, "s2", f.notified.promoted[0].StudentID)
}

func TestEnrollmentServiceLoadCap(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.seedStudent(t, "s1")
	f.seedTerm(t, "term-1")
	for _, id := range []string{"c1", "c2", "c3"} {
		f.seedCourse(t, id, 10, 5)
	}

	for _, id := range []string{"c1", "c2"} {
		_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: id, TermID: "term-1"})
		require.NoError(t, err)
	}
	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c3", TermID: "term-1"})
	assertCode(t, err, "LOAD_LIMIT_EXCEEDED")

	// Dropping one frees load for another.
	_, err = f.svc.Drop(ctx, DropRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c3", TermID: "term-1"})
	require.NoError(t, err)
}

func TestEnrollmentServicePrerequisites(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedStudent(t, "s1")
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c-intro", 10, 5)
	f.seedCourse(t, "c-adv", 10, 5, "c-intro")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c-adv", TermID: "term-1"})
	assertCode(t, err, "PREREQUISITES_NOT_MET")
	appErr := appErrors.FromError(err)
	assert.Equal(t, []string{"c-intro"}, appErr.Details)

	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c-intro", TermID: "term-1"})
	require.NoError(t, err)
	grade := "B+"
	_, err = f.svc.Complete(ctx, CompleteRequest{StudentID: "s1", CourseID: "c-intro", Grade: &grade})
	require.NoError(t, err)

	rec, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c-adv", TermID: "term-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, rec.Status)
}

func TestEnrollmentServiceWaitlistPromotionRevalidates(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c-intro", 10, 5)
	f.seedCourse(t, "c-adv", 1, 5, "c-intro")
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")

	// s1 holds the only seat; s2 joins the waitlist without the prerequisite.
	f.completePrerequisite(t, ctx, "s1", "c-intro")
	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c-adv", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s2", CourseID: "c-adv", TermID: "term-1"})
	require.NoError(t, err)

	// s2 completes the prerequisite while waiting and is eligible at promotion.
	f.completePrerequisite(t, ctx, "s2", "c-intro")
	_, err = f.svc.Drop(ctx, DropRequest{StudentID: "s1", CourseID: "c-adv"})
	require.NoError(t, err)
	assert.True(t, f.svc.IsEnrolled(ctx, "s2", "c-adv", "term-1"))
}

func (f *fixture) completePrerequisite(t *testing.T, ctx context.Context, studentID, courseID string) {
	t.Helper()
	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: studentID, CourseID: courseID, TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, CompleteRequest{StudentID: studentID, CourseID: courseID})
	require.NoError(t, err)
}

func TestEnrollmentServiceRemoveFromWaitlist(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 1, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	rec, err := f.svc.RemoveFromWaitlist(ctx, DropRequest{StudentID: "s2", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, rec.Status)

	_, err = f.svc.RemoveFromWaitlist(ctx, DropRequest{StudentID: "s2", CourseID: "c1"})
	assertCode(t, err, "NOT_WAITLISTED")
}

func TestEnrollmentServiceDropNotEnrolled(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedCourse(t, "c1", 5, 5)

	_, err := f.svc.Drop(ctx, DropRequest{StudentID: "s1", CourseID: "c1"})
	assertCode(t, err, "NOT_ENROLLED")
}

func TestEnrollmentServiceTransfer(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 5, 5)
	f.seedCourse(t, "c2", 5, 5)
	f.seedStudent(t, "s1")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	rec, err := f.svc.Transfer(ctx, TransferRequest{StudentID: "s1", FromCourseID: "c1", ToCourseID: "c2", TermID: "term-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentTypeTransfer, rec.Type)
	assert.False(t, f.svc.IsEnrolled(ctx, "s1", "c1", "term-1"))
	assert.True(t, f.svc.IsEnrolled(ctx, "s1", "c2", "term-1"))
	assert.Equal(t, 0, f.svc.CurrentEnrollmentCount(ctx, "c1"))
	assert.Equal(t, 1, f.svc.CurrentEnrollmentCount(ctx, "c2"))
}

func TestEnrollmentServiceTransferRollback(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 5, 5)
	f.seedCourse(t, "c2", 1, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c2", TermID: "term-1"})
	require.NoError(t, err)

	// Target is full: the transfer fails and the original seat is restored.
	_, err = f.svc.Transfer(ctx, TransferRequest{StudentID: "s1", FromCourseID: "c1", ToCourseID: "c2", TermID: "term-1"})
	assertCode(t, err, "COURSE_FULL")
	assert.True(t, f.svc.IsEnrolled(ctx, "s1", "c1", "term-1"))
	assert.Equal(t, 1, f.svc.CurrentEnrollmentCount(ctx, "c1"))
}

func TestEnrollmentServiceTransferFailureKeepsSourceSeat(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 1, 5)
	f.seedCourse(t, "c2", 1, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")
	f.seedStudent(t, "s3")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c2", TermID: "term-1"})
	require.NoError(t, err)
	// s3 queues for s1's seat, but promotion is deferred until the transfer
	// commits: the failed transfer must leave s1 seated and s3 waiting.
	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s3", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, TransferRequest{StudentID: "s1", FromCourseID: "c1", ToCourseID: "c2", TermID: "term-1"})
	assertCode(t, err, "COURSE_FULL")
	assert.True(t, f.svc.IsEnrolled(ctx, "s1", "c1", "term-1"))
	assert.False(t, f.svc.IsEnrolled(ctx, "s1", "c2", "term-1"))
	assert.True(t, f.svc.IsWaitlisted(ctx, "s3", "c1", "term-1"))
	assert.Equal(t, 1, f.svc.CurrentEnrollmentCount(ctx, "c1"))
	assert.Empty(t, f.notified.promoted)
}

func TestEnrollmentServiceTransferPromotesAfterCommit(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 1, 5)
	f.seedCourse(t, "c2", 1, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s3")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s3", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, TransferRequest{StudentID: "s1", FromCourseID: "c1", ToCourseID: "c2", TermID: "term-1"})
	require.NoError(t, err)
	assert.True(t, f.svc.IsEnrolled(ctx, "s1", "c2", "term-1"))
	assert.True(t, f.svc.IsEnrolled(ctx, "s3", "c1", "term-1"))
	require.Len(t, f.notified.promoted, 1)
	assert.Equal(t, "s3", f.notified.promoted[0].StudentID)
}

func TestEnrollmentServiceBulkEnroll(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 2, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")
	f.seedStudent(t, "s3")

	result, err := f.svc.BulkEnroll(ctx, BulkEnrollRequest{
		StudentIDs: []string{"s1", "s2", "s3", "ghost"},
		CourseID:   "c1",
		TermID:     "term-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Requested)
	assert.Equal(t, 2, result.Enrolled)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "s3", result.Failures[0].StudentID)
	assert.Equal(t, "COURSE_FULL", result.Failures[0].Code)
	assert.Equal(t, "ghost", result.Failures[1].StudentID)
	assert.Equal(t, "STUDENT_NOT_FOUND", result.Failures[1].Code)
}

func TestEnrollmentServiceProcessWaitlist(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 2, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")

	_, err := f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.AddToWaitlist(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	promoted, err := f.svc.ProcessWaitlist(ctx, "c1", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)
	assert.True(t, f.svc.IsEnrolled(ctx, "s1", "c1", "term-1"))
	assert.True(t, f.svc.IsEnrolled(ctx, "s2", "c1", "term-1"))
	assert.Len(t, f.notified.promoted, 2)
}

func TestEnrollmentServiceQueriesAndStatistics(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	f.seedTerm(t, "term-1")
	f.seedCourse(t, "c1", 2, 5)
	f.seedStudent(t, "s1")
	f.seedStudent(t, "s2")

	_, err := f.svc.Enroll(ctx, EnrollRequest{StudentID: "s1", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: "s2", CourseID: "c1", TermID: "term-1"})
	require.NoError(t, err)

	available, err := f.svc.HasAvailableSeats(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, available)

	records, err := f.svc.EnrollmentsForCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	stats := f.svc.Statistics(ctx)
	assert.Equal(t, 2, stats.TotalRecords)
	require.Len(t, stats.Courses, 1)
	assert.Equal(t, 2, stats.Courses[0].Enrolled)
	assert.InDelta(t, 1.0, stats.Courses[0].EnrollmentRate, 0.001)
}
