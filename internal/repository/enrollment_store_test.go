package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

func newTestStore() *EnrollmentStore {
	return NewEnrollmentStore(EnrollmentStoreConfig{
		DefaultCapacity:    30,
		DefaultMaxWaitlist: 10,
		StudentLoadCap:     6,
	})
}

func testCourse(id string, capacity, maxWaitlist int, prereqs ...string) *models.Course {
	return &models.Course{
		ID:            id,
		Code:          "CS-" + id,
		Title:         "Course " + id,
		Capacity:      capacity,
		MaxWaitlist:   maxWaitlist,
		Prerequisites: prereqs,
		Active:        true,
	}
}

func testRecord(id, studentID, courseID string, at time.Time) *models.Enrollment {
	return &models.Enrollment{
		ID:         id,
		StudentID:  studentID,
		CourseID:   courseID,
		TermID:     "term-1",
		Type:       models.EnrollmentTypeRegular,
		EnrolledAt: at,
	}
}

func TestEnrollmentStoreEnroll(t *testing.T) {
	store := newTestStore()
	course := testCourse("c1", 2, 5)
	now := time.Now()

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))
	assert.True(t, store.IsEnrolled("s1", "c1", "term-1"))
	assert.Equal(t, 1, store.EnrolledCount("c1"))

	err := store.Enroll(testRecord("e2", "s1", "c1", now), course)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	require.NoError(t, store.Enroll(testRecord("e3", "s2", "c1", now), course))
	err = store.Enroll(testRecord("e4", "s3", "c1", now), course)
	assert.ErrorIs(t, err, ErrCourseFull)
	assert.Equal(t, 2, store.EnrolledCount("c1"))
	assert.Equal(t, store.EnrolledCount("c1"), store.RecomputeEnrolledCount("c1"))
}

func TestEnrollmentStoreLoadCap(t *testing.T) {
	store := NewEnrollmentStore(EnrollmentStoreConfig{StudentLoadCap: 2})
	now := time.Now()

	for i := 1; i <= 2; i++ {
		courseID := fmt.Sprintf("c%d", i)
		course := testCourse(courseID, 10, 5)
		require.NoError(t, store.Enroll(testRecord(fmt.Sprintf("e%d", i), "s1", courseID, now), course))
	}

	err := store.Enroll(testRecord("e3", "s1", "c3", now), testCourse("c3", 10, 5))
	assert.ErrorIs(t, err, ErrLoadLimitExceeded)
}

func TestEnrollmentStorePrerequisites(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	advanced := testCourse("c-adv", 10, 5, "c-intro", "c-math")

	err := store.Enroll(testRecord("e1", "s1", "c-adv", now), advanced)
	var prereqErr *PrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	assert.Equal(t, []string{"c-intro", "c-math"}, prereqErr.Missing)

	// Complete one prerequisite; the other still blocks.
	intro := testCourse("c-intro", 10, 5)
	require.NoError(t, store.Enroll(testRecord("e2", "s1", "c-intro", now), intro))
	_, err = store.Complete("s1", "c-intro", nil)
	require.NoError(t, err)

	err = store.Enroll(testRecord("e3", "s1", "c-adv", now), advanced)
	require.ErrorAs(t, err, &prereqErr)
	assert.Equal(t, []string{"c-math"}, prereqErr.Missing)

	math := testCourse("c-math", 10, 5)
	require.NoError(t, store.Enroll(testRecord("e4", "s1", "c-math", now), math))
	_, err = store.Complete("s1", "c-math", nil)
	require.NoError(t, err)

	require.NoError(t, store.Enroll(testRecord("e5", "s1", "c-adv", now), advanced))
	assert.ElementsMatch(t, []string{"c-intro", "c-math"}, store.CompletedCourses("s1"))
}

func TestEnrollmentStoreWaitlistFIFO(t *testing.T) {
	store := newTestStore()
	course := testCourse("c1", 1, 3)
	now := time.Now()

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))

	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s2", "c1", now.Add(time.Second)), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w2", "s3", "c1", now.Add(2*time.Second)), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w3", "s4", "c1", now.Add(3*time.Second)), course))
	assert.Equal(t, 3, store.WaitlistCount("c1"))

	err := store.AddToWaitlist(testRecord("w4", "s5", "c1", now), course)
	assert.ErrorIs(t, err, ErrWaitlistFull)
	err = store.AddToWaitlist(testRecord("w5", "s2", "c1", now), course)
	assert.ErrorIs(t, err, ErrAlreadyWaitlisted)

	// Drop frees one seat; the first waitlisted student takes it.
	dropped, promoted, err := store.Drop("s1", course, "schedule conflict", now.Add(4*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	require.Len(t, promoted, 1)
	assert.Equal(t, "s2", promoted[0].StudentID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, promoted[0].Status)
	assert.Equal(t, 1, store.EnrolledCount("c1"))
	assert.Equal(t, 2, store.WaitlistCount("c1"))

	// Dropping the same record again is rejected.
	_, _, err = store.Drop("s1", course, "", now)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestEnrollmentStoreRemoveFromWaitlist(t *testing.T) {
	store := newTestStore()
	course := testCourse("c1", 1, 3)
	now := time.Now()

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s2", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w2", "s3", "c1", now.Add(time.Second)), course))

	rec, err := store.RemoveFromWaitlist("s2", "c1", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, rec.Status)
	assert.Equal(t, 1, store.WaitlistCount("c1"))

	_, err = store.RemoveFromWaitlist("s2", "c1", now)
	assert.ErrorIs(t, err, ErrNotWaitlisted)

	// The remaining entry is promoted on the next drop, the removed one never is.
	_, promoted, err := store.Drop("s1", course, "", now.Add(3*time.Second))
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, "s3", promoted[0].StudentID)
}

func TestEnrollmentStorePromotionSkipsIneligible(t *testing.T) {
	store := NewEnrollmentStore(EnrollmentStoreConfig{StudentLoadCap: 1})
	now := time.Now()
	course := testCourse("c1", 1, 3)

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s2", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w2", "s3", "c1", now.Add(time.Second)), course))

	// s2 hits the load cap elsewhere before a seat frees up.
	other := testCourse("c2", 10, 5)
	require.NoError(t, store.Enroll(testRecord("e2", "s2", "c2", now), other))

	_, promoted, err := store.Drop("s1", course, "", now.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, "s3", promoted[0].StudentID)

	// The ineligible entry was discarded, not re-queued.
	assert.Equal(t, 0, store.WaitlistCount("c1"))
	rec, err := store.FindByID("w1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, rec.Status)
	require.NotNil(t, rec.DropReason)
	assert.Equal(t, "waitlist promotion ineligible", *rec.DropReason)
}

func TestEnrollmentStoreProcessWaitlist(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	course := testCourse("c1", 2, 5)

	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s1", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w2", "s2", "c1", now.Add(time.Second)), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w3", "s3", "c1", now.Add(2*time.Second)), course))

	promoted := store.ProcessWaitlist(course, 5, now.Add(3*time.Second))
	require.Len(t, promoted, 2)
	assert.Equal(t, "s1", promoted[0].StudentID)
	assert.Equal(t, "s2", promoted[1].StudentID)
	assert.Equal(t, 2, store.EnrolledCount("c1"))
	assert.Equal(t, 1, store.WaitlistCount("c1"))

	// Course is full; further processing promotes nothing.
	assert.Empty(t, store.ProcessWaitlist(course, 5, now))
}

func TestEnrollmentStoreReinstate(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	course := testCourse("c1", 1, 2)

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s2", "c1", now), course))

	dropped, promoted, err := store.Drop("s1", course, "", now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, promoted, 1)

	// The freed seat went to the waitlisted student; reinstating collides.
	back := testRecord("e2", dropped.StudentID, "c1", now.Add(2*time.Second))
	err = store.Reinstate(back, course)
	assert.ErrorIs(t, err, ErrSeatTaken)
}

func TestEnrollmentStoreDropForTransferHoldsSeat(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	course := testCourse("c1", 1, 2)

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s2", "c1", now), course))

	dropped, err := store.DropForTransfer("s1", course, "transfer to CS-c2", now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "s1", dropped.StudentID)

	// The waitlist is untouched; the seat is held for the rollback.
	assert.Equal(t, 0, store.EnrolledCount("c1"))
	assert.Equal(t, 1, store.WaitlistCount("c1"))
	assert.False(t, store.IsEnrolled("s2", "c1", "term-1"))

	back := testRecord("e2", "s1", "c1", now.Add(2*time.Second))
	require.NoError(t, store.Reinstate(back, course))
	assert.True(t, store.IsEnrolled("s1", "c1", "term-1"))
	assert.Equal(t, 1, store.EnrolledCount("c1"))
	assert.Equal(t, 1, store.WaitlistCount("c1"))
}

func TestEnrollmentStoreReinstateAfterConcurrentTaker(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	course := testCourse("c1", 1, 2)

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))

	_, err := store.DropForTransfer("s1", course, "transfer to CS-c2", now.Add(time.Second))
	require.NoError(t, err)

	// A third party enrolls into the open seat before the rollback lands.
	require.NoError(t, store.Enroll(testRecord("e9", "s9", "c1", now.Add(2*time.Second)), course))

	back := testRecord("e2", "s1", "c1", now.Add(3*time.Second))
	assert.ErrorIs(t, store.Reinstate(back, course), ErrSeatTaken)
	assert.True(t, store.IsEnrolled("s9", "c1", "term-1"))
}

func TestEnrollmentStoreQueriesDoNotAllocateState(t *testing.T) {
	store := newTestStore()
	ghost := testCourse("ghost", 3, 2)

	assert.Equal(t, 0, store.EnrolledCount("ghost"))
	assert.Equal(t, 0, store.RecomputeEnrolledCount("ghost"))
	assert.Equal(t, 0, store.WaitlistCount("ghost"))
	assert.False(t, store.IsEnrolled("s1", "ghost", "term-1"))
	assert.False(t, store.IsWaitlisted("s1", "ghost", "term-1"))
	assert.True(t, store.HasAvailableSeats(ghost))
	assert.False(t, store.OverCapacity(ghost))
	assert.Empty(t, store.EnrollmentsForCourse("ghost"))
	_, err := store.RemoveFromWaitlist("s1", "ghost", time.Now())
	assert.ErrorIs(t, err, ErrNotWaitlisted)

	store.mu.RLock()
	defer store.mu.RUnlock()
	assert.Empty(t, store.courses)
}

func TestEnrollmentStoreComplete(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	course := testCourse("c1", 1, 2)

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), course))
	require.NoError(t, store.AddToWaitlist(testRecord("w1", "s2", "c1", now), course))

	grade := "A"
	rec, err := store.Complete("s1", "c1", &grade)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, rec.Status)
	require.NotNil(t, rec.Grade)
	assert.Equal(t, "A", *rec.Grade)
	assert.Equal(t, []string{"c1"}, store.CompletedCourses("s1"))

	// Completion frees the seat but does not promote; that is a term-close
	// bookkeeping step, not an in-term drop.
	assert.Equal(t, 0, store.EnrolledCount("c1"))
	assert.Equal(t, 1, store.WaitlistCount("c1"))

	_, err = store.Complete("s1", "c1", nil)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestEnrollmentStoreOverCapacity(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	course := testCourse("c1", 3, 5)

	for i := 1; i <= 3; i++ {
		rec := testRecord(fmt.Sprintf("e%d", i), fmt.Sprintf("s%d", i), "c1", now)
		require.NoError(t, store.Enroll(rec, course))
	}
	assert.False(t, store.OverCapacity(course))

	// Capacity reduced below the enrolled count: nobody is force-dropped, the
	// condition is simply visible, and new enrollments are rejected.
	course.Capacity = 2
	assert.True(t, store.OverCapacity(course))
	err := store.Enroll(testRecord("e4", "s4", "c1", now), course)
	assert.ErrorIs(t, err, ErrCourseFull)

	stats := store.Statistics([]models.Course{*course})
	require.Len(t, stats.Courses, 1)
	assert.True(t, stats.Courses[0].OverCapacity)
	assert.Equal(t, 3, stats.Courses[0].Enrolled)
}

func TestEnrollmentStoreListAndStatistics(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	c1 := testCourse("c1", 5, 5)
	c2 := testCourse("c2", 5, 5)

	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), c1))
	require.NoError(t, store.Enroll(testRecord("e2", "s2", "c1", now.Add(time.Second)), c1))
	require.NoError(t, store.Enroll(testRecord("e3", "s1", "c2", now.Add(2*time.Second)), c2))
	_, _, err := store.Drop("s2", c1, "", now.Add(3*time.Second))
	require.NoError(t, err)

	all := store.List(models.EnrollmentFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, "e1", all[0].ID)

	enrolled := store.List(models.EnrollmentFilter{Status: models.EnrollmentStatusEnrolled})
	assert.Len(t, enrolled, 2)

	byStudent := store.EnrollmentsForStudent("s1")
	assert.Len(t, byStudent, 2)

	stats := store.Statistics([]models.Course{*c1, *c2})
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.ByStatus[models.EnrollmentStatusEnrolled])
	assert.Equal(t, 1, stats.ByStatus[models.EnrollmentStatusDropped])
	assert.Equal(t, 3, stats.ByTerm["term-1"])
}

func TestEnrollmentStoreFindByID(t *testing.T) {
	store := newTestStore()
	now := time.Now()
	require.NoError(t, store.Enroll(testRecord("e1", "s1", "c1", now), testCourse("c1", 5, 5)))

	rec, err := store.FindByID("e1")
	require.NoError(t, err)
	assert.Equal(t, "s1", rec.StudentID)

	_, err = store.FindByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnrollmentStoreConcurrentEnrollNeverOverfills(t *testing.T) {
	store := NewEnrollmentStore(EnrollmentStoreConfig{StudentLoadCap: 100})
	course := testCourse("c1", 10, 5)
	now := time.Now()

	const attempts = 100
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord(fmt.Sprintf("e%d", i), fmt.Sprintf("s%d", i), "c1", now)
			errs[i] = store.Enroll(rec, course)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.True(t, errors.Is(err, ErrCourseFull))
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, store.EnrolledCount("c1"))
	assert.Equal(t, 10, store.RecomputeEnrolledCount("c1"))
}

func TestEnrollmentStoreConcurrentDropAndEnroll(t *testing.T) {
	store := NewEnrollmentStore(EnrollmentStoreConfig{StudentLoadCap: 100})
	course := testCourse("c1", 5, 50)
	now := time.Now()

	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("seed%d", i), fmt.Sprintf("holder%d", i), "c1", now)
		require.NoError(t, store.Enroll(rec, course))
	}
	for i := 0; i < 20; i++ {
		rec := testRecord(fmt.Sprintf("w%d", i), fmt.Sprintf("waiter%d", i), "c1", now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, store.AddToWaitlist(rec, course))
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _ = store.Drop(fmt.Sprintf("holder%d", i), course, "", time.Now())
		}(i)
	}
	wg.Wait()

	// Every drop promoted exactly one waiter; the ledger never exceeds capacity.
	assert.Equal(t, 5, store.EnrolledCount("c1"))
	assert.Equal(t, 5, store.RecomputeEnrolledCount("c1"))
	assert.Equal(t, 15, store.WaitlistCount("c1"))
}
