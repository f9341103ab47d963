package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

// CourseRepository is the in-memory course catalog. It validates that
// prerequisite sets stay acyclic: a cycle would make the affected courses
// permanently unenrollable, so it is rejected at the catalog boundary
// instead of being tolerated by the enrollment manager.
type CourseRepository struct {
	mu      sync.RWMutex
	courses map[string]models.Course
}

// NewCourseRepository constructs an empty catalog.
func NewCourseRepository() *CourseRepository {
	return &CourseRepository{courses: make(map[string]models.Course)}
}

// Create stores a new course after cycle-checking its prerequisites.
func (r *CourseRepository) Create(course models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[course.ID]; ok {
		return ErrDuplicateID
	}
	if r.wouldCycleLocked(course.ID, course.Prerequisites) {
		return ErrPrerequisiteCycle
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	r.courses[course.ID] = course
	return nil
}

// Update replaces a course definition, re-checking the prerequisite graph.
func (r *CourseRepository) Update(course models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.courses[course.ID]
	if !ok {
		return ErrNotFound
	}
	if r.wouldCycleLocked(course.ID, course.Prerequisites) {
		return ErrPrerequisiteCycle
	}
	course.CreatedAt = existing.CreatedAt
	course.UpdatedAt = time.Now().UTC()
	r.courses[course.ID] = course
	return nil
}

// FindByID returns a copy of the course.
func (r *CourseRepository) FindByID(id string) (*models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	course, ok := r.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	course.Prerequisites = append([]string{}, course.Prerequisites...)
	return &course, nil
}

// List returns courses matching the filter with pagination applied.
func (r *CourseRepository) List(filter models.CourseFilter) ([]models.Course, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []models.Course
	for _, course := range r.courses {
		if filter.Department != "" && course.Department != filter.Department {
			continue
		}
		if filter.Active != nil && course.Active != *filter.Active {
			continue
		}
		course.Prerequisites = append([]string{}, course.Prerequisites...)
		matched = append(matched, course)
	}
	sortCourses(matched)
	return paginateCourses(matched, filter.Page, filter.PageSize), len(matched)
}

// All returns a snapshot of the full catalog.
func (r *CourseRepository) All() []models.Course {
	courses, _ := r.List(models.CourseFilter{})
	return courses
}

// wouldCycleLocked walks the prerequisite graph from the proposed set and
// reports whether it can reach the course itself. Callers hold mu.
func (r *CourseRepository) wouldCycleLocked(courseID string, prerequisites []string) bool {
	seen := make(map[string]bool)
	stack := append([]string{}, prerequisites...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if next == courseID {
			return true
		}
		if seen[next] {
			continue
		}
		seen[next] = true
		if course, ok := r.courses[next]; ok {
			stack = append(stack, course.Prerequisites...)
		}
	}
	return false
}

func sortCourses(courses []models.Course) {
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
}

func paginateCourses(courses []models.Course, page, size int) []models.Course {
	if size <= 0 {
		return courses
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(courses) {
		return nil
	}
	end := start + size
	if end > len(courses) {
		end = len(courses)
	}
	return courses[start:end]
}
