package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

// EnrollmentStoreConfig carries registrar policy defaults.
type EnrollmentStoreConfig struct {
	DefaultCapacity    int
	DefaultMaxWaitlist int
	StudentLoadCap     int
}

// courseState is the per-course consistency boundary: the record set, the
// cached seat count and the waitlist queue are only ever mutated together
// under its mutex, so capacity checks and counter updates stay atomic.
type courseState struct {
	mu       sync.Mutex
	enrolled int                           // cached ledger count, see RecomputeEnrolledCount
	records  map[string]*models.Enrollment // by enrollment ID, append-only history
	active   map[string]string             // studentID|termID -> enrollment ID while ENROLLED/WAITLISTED
	waitlist []string                      // enrollment IDs in FIFO priority order
}

// studentFacts is the lightweight cross-course index for one student.
type studentFacts struct {
	enrolled  int // count of ENROLLED records across all courses
	completed map[string]struct{}
}

// EnrollmentStore holds all enrollment state in memory. Each course has its
// own lock; the student index has a single lock that is always acquired
// while already holding a course lock, never the other way around.
type EnrollmentStore struct {
	cfg EnrollmentStoreConfig

	mu      sync.RWMutex // guards the courses map, not the per-course state
	courses map[string]*courseState

	studentMu sync.RWMutex
	students  map[string]*studentFacts
}

// NewEnrollmentStore constructs an empty store.
func NewEnrollmentStore(cfg EnrollmentStoreConfig) *EnrollmentStore {
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = 30
	}
	if cfg.DefaultMaxWaitlist <= 0 {
		cfg.DefaultMaxWaitlist = 10
	}
	if cfg.StudentLoadCap <= 0 {
		cfg.StudentLoadCap = 6
	}
	return &EnrollmentStore{
		cfg:      cfg,
		courses:  make(map[string]*courseState),
		students: make(map[string]*studentFacts),
	}
}

// LoadCap exposes the configured per-student enrollment cap.
func (s *EnrollmentStore) LoadCap() int { return s.cfg.StudentLoadCap }

func (s *EnrollmentStore) course(courseID string) *courseState {
	s.mu.RLock()
	cs, ok := s.courses[courseID]
	s.mu.RUnlock()
	if ok {
		return cs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok = s.courses[courseID]; !ok {
		cs = &courseState{
			records: make(map[string]*models.Enrollment),
			active:  make(map[string]string),
		}
		s.courses[courseID] = cs
	}
	return cs
}

// peek returns the course aggregate without allocating one. Query paths use
// it so lookups against unknown course IDs do not grow the courses map.
func (s *EnrollmentStore) peek(courseID string) *courseState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.courses[courseID]
}

// factsLocked returns the student index entry; callers hold studentMu.
func (s *EnrollmentStore) factsLocked(studentID string) *studentFacts {
	facts, ok := s.students[studentID]
	if !ok {
		facts = &studentFacts{completed: make(map[string]struct{})}
		s.students[studentID] = facts
	}
	return facts
}

func (s *EnrollmentStore) capacityOf(course *models.Course) int {
	if course.Capacity > 0 {
		return course.Capacity
	}
	return s.cfg.DefaultCapacity
}

func (s *EnrollmentStore) maxWaitlistOf(course *models.Course) int {
	if course.MaxWaitlist > 0 {
		return course.MaxWaitlist
	}
	return s.cfg.DefaultMaxWaitlist
}

func activeKey(studentID, termID string) string { return studentID + "|" + termID }

func cloneRecord(rec *models.Enrollment) models.Enrollment {
	out := *rec
	if rec.Grade != nil {
		g := *rec.Grade
		out.Grade = &g
	}
	if rec.DropReason != nil {
		r := *rec.DropReason
		out.DropReason = &r
	}
	if rec.DroppedAt != nil {
		t := *rec.DroppedAt
		out.DroppedAt = &t
	}
	return out
}

// missingLocked computes unmet prerequisites; callers hold studentMu.
func missingLocked(facts *studentFacts, prerequisites []string) []string {
	var missing []string
	for _, p := range prerequisites {
		if _, ok := facts.completed[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// Enroll checks the admission preconditions in order (duplicate record,
// student load cap, seat availability, prerequisites) and commits the new
// ENROLLED record together with the ledger increment in one critical
// section. The record passed in must carry ID, student, course, term, type
// and timestamp; status is set here.
func (s *EnrollmentStore) Enroll(rec *models.Enrollment, course *models.Course) error {
	cs := s.course(course.ID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if id, ok := cs.active[activeKey(rec.StudentID, rec.TermID)]; ok {
		if cs.records[id].Status == models.EnrollmentStatusWaitlisted {
			return ErrAlreadyWaitlisted
		}
		return ErrAlreadyEnrolled
	}

	s.studentMu.Lock()
	defer s.studentMu.Unlock()
	facts := s.factsLocked(rec.StudentID)

	if facts.enrolled >= s.cfg.StudentLoadCap {
		return ErrLoadLimitExceeded
	}
	if cs.enrolled >= s.capacityOf(course) {
		return ErrCourseFull
	}
	if missing := missingLocked(facts, course.Prerequisites); len(missing) > 0 {
		return &PrerequisiteError{Missing: missing}
	}

	rec.Status = models.EnrollmentStatusEnrolled
	cs.records[rec.ID] = rec
	cs.active[activeKey(rec.StudentID, rec.TermID)] = rec.ID
	cs.enrolled++
	facts.enrolled++
	return nil
}

// AddToWaitlist appends a WAITLISTED record to the end of the course queue.
// Prerequisites are deliberately not checked here; they are re-validated at
// promotion time.
func (s *EnrollmentStore) AddToWaitlist(rec *models.Enrollment, course *models.Course) error {
	cs := s.course(course.ID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if id, ok := cs.active[activeKey(rec.StudentID, rec.TermID)]; ok {
		if cs.records[id].Status == models.EnrollmentStatusWaitlisted {
			return ErrAlreadyWaitlisted
		}
		return ErrAlreadyEnrolled
	}
	if len(cs.waitlist) >= s.maxWaitlistOf(course) {
		return ErrWaitlistFull
	}

	rec.Status = models.EnrollmentStatusWaitlisted
	cs.records[rec.ID] = rec
	cs.active[activeKey(rec.StudentID, rec.TermID)] = rec.ID
	cs.waitlist = append(cs.waitlist, rec.ID)
	return nil
}

// RemoveFromWaitlist drops a student's WAITLISTED record and removes it from
// the queue without affecting seat counts.
func (s *EnrollmentStore) RemoveFromWaitlist(studentID, courseID string, now time.Time) (models.Enrollment, error) {
	cs := s.peek(courseID)
	if cs == nil {
		return models.Enrollment{}, ErrNotWaitlisted
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rec := findActiveLocked(cs, studentID, models.EnrollmentStatusWaitlisted)
	if rec == nil {
		return models.Enrollment{}, ErrNotWaitlisted
	}
	reason := "removed from waitlist"
	_ = rec.Transition(models.EnrollmentStatusDropped)
	rec.DropReason = &reason
	rec.DroppedAt = &now
	delete(cs.active, activeKey(rec.StudentID, rec.TermID))
	cs.waitlist = removeID(cs.waitlist, rec.ID)
	return cloneRecord(rec), nil
}

// Drop transitions the student's ENROLLED record to DROPPED, decrements the
// ledger and promotes at most one eligible waitlisted entry before
// returning. The promotion is part of the same critical section; callers
// observing the drop can rely on the seat count.
func (s *EnrollmentStore) Drop(studentID string, course *models.Course, reason string, now time.Time) (models.Enrollment, []models.Enrollment, error) {
	return s.release(studentID, course, reason, models.EnrollmentStatusDropped, true, now)
}

// Withdraw behaves like Drop but marks the record WITHDRAWN.
func (s *EnrollmentStore) Withdraw(studentID string, course *models.Course, reason string, now time.Time) (models.Enrollment, []models.Enrollment, error) {
	return s.release(studentID, course, reason, models.EnrollmentStatusWithdrawn, true, now)
}

// DropForTransfer releases the student's seat without touching the
// waitlist. A transfer must hold the vacated seat until the destination
// enroll resolves: the caller promotes via ProcessWaitlist on success, or
// re-seats the student via Reinstate on failure. Between the two calls the
// seat is open only to concurrent enrolls, which is why Reinstate can still
// return ErrSeatTaken.
func (s *EnrollmentStore) DropForTransfer(studentID string, course *models.Course, reason string, now time.Time) (models.Enrollment, error) {
	rec, _, err := s.release(studentID, course, reason, models.EnrollmentStatusDropped, false, now)
	return rec, err
}

func (s *EnrollmentStore) release(studentID string, course *models.Course, reason string, to models.EnrollmentStatus, promote bool, now time.Time) (models.Enrollment, []models.Enrollment, error) {
	cs := s.peek(course.ID)
	if cs == nil {
		return models.Enrollment{}, nil, ErrNotEnrolled
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rec := findActiveLocked(cs, studentID, models.EnrollmentStatusEnrolled)
	if rec == nil {
		return models.Enrollment{}, nil, ErrNotEnrolled
	}
	if err := rec.Transition(to); err != nil {
		return models.Enrollment{}, nil, err
	}
	if reason != "" {
		rec.DropReason = &reason
	}
	rec.DroppedAt = &now
	delete(cs.active, activeKey(rec.StudentID, rec.TermID))
	cs.enrolled--

	s.studentMu.Lock()
	defer s.studentMu.Unlock()
	s.factsLocked(studentID).enrolled--

	var promoted []models.Enrollment
	if promote {
		promoted = s.promoteLocked(cs, course, 1, now)
	}
	return cloneRecord(rec), promoted, nil
}

// ProcessWaitlist promotes up to n entries from the front of the queue and
// returns the records actually promoted.
func (s *EnrollmentStore) ProcessWaitlist(course *models.Course, n int, now time.Time) []models.Enrollment {
	cs := s.course(course.ID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	s.studentMu.Lock()
	defer s.studentMu.Unlock()
	return s.promoteLocked(cs, course, n, now)
}

// promoteLocked pops queue entries in order until n promotions succeed, the
// queue empties or the course fills. Entries failing re-validation (load
// cap, prerequisites) are discarded, not re-queued. Callers hold both the
// course lock and studentMu.
func (s *EnrollmentStore) promoteLocked(cs *courseState, course *models.Course, n int, now time.Time) []models.Enrollment {
	var promoted []models.Enrollment
	capacity := s.capacityOf(course)
	for len(promoted) < n && len(cs.waitlist) > 0 && cs.enrolled < capacity {
		id := cs.waitlist[0]
		cs.waitlist = cs.waitlist[1:]
		rec, ok := cs.records[id]
		if !ok || rec.Status != models.EnrollmentStatusWaitlisted {
			continue // stale queue entry
		}
		facts := s.factsLocked(rec.StudentID)
		if facts.enrolled >= s.cfg.StudentLoadCap || len(missingLocked(facts, course.Prerequisites)) > 0 {
			reason := "waitlist promotion ineligible"
			_ = rec.Transition(models.EnrollmentStatusDropped)
			rec.DropReason = &reason
			rec.DroppedAt = &now
			delete(cs.active, activeKey(rec.StudentID, rec.TermID))
			continue
		}
		_ = rec.Transition(models.EnrollmentStatusEnrolled)
		cs.enrolled++
		facts.enrolled++
		promoted = append(promoted, cloneRecord(rec))
	}
	return promoted
}

// Reinstate re-creates an ENROLLED record for a student whose seat was just
// vacated by a failed transfer. Load cap and prerequisites are bypassed; a
// concurrent taker of the seat surfaces as ErrSeatTaken.
func (s *EnrollmentStore) Reinstate(rec *models.Enrollment, course *models.Course) error {
	cs := s.course(course.ID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.active[activeKey(rec.StudentID, rec.TermID)]; ok {
		return ErrAlreadyEnrolled
	}
	if cs.enrolled >= s.capacityOf(course) {
		return ErrSeatTaken
	}

	rec.Status = models.EnrollmentStatusEnrolled
	cs.records[rec.ID] = rec
	cs.active[activeKey(rec.StudentID, rec.TermID)] = rec.ID
	cs.enrolled++

	s.studentMu.Lock()
	defer s.studentMu.Unlock()
	s.factsLocked(rec.StudentID).enrolled++
	return nil
}

// Complete marks the student's ENROLLED record COMPLETED (term close), frees
// the seat and adds the course to the student's completed set used by
// prerequisite checks. No waitlist promotion happens here.
func (s *EnrollmentStore) Complete(studentID, courseID string, grade *string) (models.Enrollment, error) {
	cs := s.peek(courseID)
	if cs == nil {
		return models.Enrollment{}, ErrNotEnrolled
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rec := findActiveLocked(cs, studentID, models.EnrollmentStatusEnrolled)
	if rec == nil {
		return models.Enrollment{}, ErrNotEnrolled
	}
	_ = rec.Transition(models.EnrollmentStatusCompleted)
	if grade != nil {
		g := *grade
		rec.Grade = &g
	}
	delete(cs.active, activeKey(rec.StudentID, rec.TermID))
	cs.enrolled--

	s.studentMu.Lock()
	defer s.studentMu.Unlock()
	facts := s.factsLocked(studentID)
	facts.enrolled--
	facts.completed[courseID] = struct{}{}
	return cloneRecord(rec), nil
}

// findActiveLocked returns the student's record in the wanted active status,
// preferring the most recent when history spans terms. Callers hold cs.mu.
func findActiveLocked(cs *courseState, studentID string, status models.EnrollmentStatus) *models.Enrollment {
	var found *models.Enrollment
	for _, rec := range cs.records {
		if rec.StudentID != studentID || rec.Status != status {
			continue
		}
		if found == nil || rec.EnrolledAt.After(found.EnrolledAt) {
			found = rec
		}
	}
	return found
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// IsEnrolled reports whether the student holds an ENROLLED record for the offering.
func (s *EnrollmentStore) IsEnrolled(studentID, courseID, termID string) bool {
	return s.activeStatus(studentID, courseID, termID) == models.EnrollmentStatusEnrolled
}

// IsWaitlisted reports whether the student holds a WAITLISTED record for the offering.
func (s *EnrollmentStore) IsWaitlisted(studentID, courseID, termID string) bool {
	return s.activeStatus(studentID, courseID, termID) == models.EnrollmentStatusWaitlisted
}

func (s *EnrollmentStore) activeStatus(studentID, courseID, termID string) models.EnrollmentStatus {
	cs := s.peek(courseID)
	if cs == nil {
		return ""
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if id, ok := cs.active[activeKey(studentID, termID)]; ok {
		return cs.records[id].Status
	}
	return ""
}

// EnrolledCount returns the cached ledger count for the course.
func (s *EnrollmentStore) EnrolledCount(courseID string) int {
	cs := s.peek(courseID)
	if cs == nil {
		return 0
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.enrolled
}

// RecomputeEnrolledCount recounts ENROLLED records under the course lock.
// It exists so callers can verify the cached ledger against the record set.
func (s *EnrollmentStore) RecomputeEnrolledCount(courseID string) int {
	cs := s.peek(courseID)
	if cs == nil {
		return 0
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	count := 0
	for _, rec := range cs.records {
		if rec.Status == models.EnrollmentStatusEnrolled {
			count++
		}
	}
	return count
}

// WaitlistCount returns the current queue length for the course.
func (s *EnrollmentStore) WaitlistCount(courseID string) int {
	cs := s.peek(courseID)
	if cs == nil {
		return 0
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.waitlist)
}

// HasAvailableSeats reports whether an enrollment would currently find a seat.
func (s *EnrollmentStore) HasAvailableSeats(course *models.Course) bool {
	cs := s.peek(course.ID)
	if cs == nil {
		return s.capacityOf(course) > 0
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.enrolled < s.capacityOf(course)
}

// OverCapacity reports whether the course holds more ENROLLED students than
// its configured capacity allows, which can happen after a capacity
// reduction. The condition is exposed as a fact, never auto-corrected.
func (s *EnrollmentStore) OverCapacity(course *models.Course) bool {
	cs := s.peek(course.ID)
	if cs == nil {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.enrolled > s.capacityOf(course)
}

// FindByID locates a record by enrollment ID.
func (s *EnrollmentStore) FindByID(id string) (models.Enrollment, error) {
	for _, cs := range s.snapshotCourses() {
		cs.mu.Lock()
		if rec, ok := cs.records[id]; ok {
			out := cloneRecord(rec)
			cs.mu.Unlock()
			return out, nil
		}
		cs.mu.Unlock()
	}
	return models.Enrollment{}, ErrNotFound
}

// EnrollmentsForStudent returns the student's full record history across courses.
func (s *EnrollmentStore) EnrollmentsForStudent(studentID string) []models.Enrollment {
	return s.List(models.EnrollmentFilter{StudentID: studentID})
}

// EnrollmentsForCourse returns every record ever created for the course.
func (s *EnrollmentStore) EnrollmentsForCourse(courseID string) []models.Enrollment {
	cs := s.peek(courseID)
	if cs == nil {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]models.Enrollment, 0, len(cs.records))
	for _, rec := range cs.records {
		out = append(out, cloneRecord(rec))
	}
	sortByEnrolledAt(out)
	return out
}

// List returns records matching the filter, ordered by enrollment time.
func (s *EnrollmentStore) List(filter models.EnrollmentFilter) []models.Enrollment {
	var out []models.Enrollment
	for courseID, cs := range s.snapshotCourses() {
		if filter.CourseID != "" && filter.CourseID != courseID {
			continue
		}
		cs.mu.Lock()
		for _, rec := range cs.records {
			if filter.StudentID != "" && rec.StudentID != filter.StudentID {
				continue
			}
			if filter.TermID != "" && rec.TermID != filter.TermID {
				continue
			}
			if filter.Status != "" && rec.Status != filter.Status {
				continue
			}
			out = append(out, cloneRecord(rec))
		}
		cs.mu.Unlock()
	}
	sortByEnrolledAt(out)
	return out
}

// CompletedCourses returns the set of course IDs the student has completed.
func (s *EnrollmentStore) CompletedCourses(studentID string) []string {
	s.studentMu.RLock()
	defer s.studentMu.RUnlock()
	facts, ok := s.students[studentID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(facts.completed))
	for id := range facts.completed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MissingPrerequisites returns the prerequisite course IDs the student has
// not yet completed for the given course.
func (s *EnrollmentStore) MissingPrerequisites(studentID string, course *models.Course) []string {
	s.studentMu.RLock()
	defer s.studentMu.RUnlock()
	facts, ok := s.students[studentID]
	if !ok {
		return append([]string{}, course.Prerequisites...)
	}
	return missingLocked(facts, course.Prerequisites)
}

// Statistics aggregates counters by status and term plus per-course seat
// figures for the supplied catalog snapshot.
func (s *EnrollmentStore) Statistics(courses []models.Course) models.EnrollmentStatistics {
	stats := models.EnrollmentStatistics{
		ByStatus: make(map[models.EnrollmentStatus]int),
		ByTerm:   make(map[string]int),
	}
	for _, rec := range s.List(models.EnrollmentFilter{}) {
		stats.TotalRecords++
		stats.ByStatus[rec.Status]++
		stats.ByTerm[rec.TermID]++
	}
	for i := range courses {
		course := courses[i]
		capacity := s.capacityOf(&course)
		var enrolled, waitlisted int
		if cs := s.peek(course.ID); cs != nil {
			cs.mu.Lock()
			enrolled = cs.enrolled
			waitlisted = len(cs.waitlist)
			cs.mu.Unlock()
		}
		stats.Courses = append(stats.Courses, models.CourseStats{
			CourseID:       course.ID,
			Code:           course.Code,
			Capacity:       capacity,
			Enrolled:       enrolled,
			Waitlisted:     waitlisted,
			EnrollmentRate: float64(enrolled) / float64(capacity),
			OverCapacity:   enrolled > capacity,
		})
	}
	return stats
}

func (s *EnrollmentStore) snapshotCourses() map[string]*courseState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*courseState, len(s.courses))
	for id, cs := range s.courses {
		out[id] = cs
	}
	return out
}

func sortByEnrolledAt(records []models.Enrollment) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].EnrolledAt.Equal(records[j].EnrolledAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].EnrolledAt.Before(records[j].EnrolledAt)
	})
}
