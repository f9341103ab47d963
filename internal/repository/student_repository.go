package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

// StudentRepository is the in-memory student roster.
type StudentRepository struct {
	mu       sync.RWMutex
	students map[string]models.Student
}

// NewStudentRepository constructs an empty roster.
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{students: make(map[string]models.Student)}
}

// Create stores a new student.
func (r *StudentRepository) Create(student models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[student.ID]; ok {
		return ErrDuplicateID
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	r.students[student.ID] = student
	return nil
}

// Update replaces the stored student record.
func (r *StudentRepository) Update(student models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.students[student.ID]
	if !ok {
		return ErrNotFound
	}
	student.CreatedAt = existing.CreatedAt
	student.UpdatedAt = time.Now().UTC()
	r.students[student.ID] = student
	return nil
}

// FindByID returns a copy of the student.
func (r *StudentRepository) FindByID(id string) (*models.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	student, ok := r.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &student, nil
}

// List returns students matching the filter with pagination applied.
func (r *StudentRepository) List(filter models.StudentFilter) ([]models.Student, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []models.Student
	for _, student := range r.students {
		if filter.Major != "" && student.Major != filter.Major {
			continue
		}
		if filter.Active != nil && student.Active != *filter.Active {
			continue
		}
		matched = append(matched, student)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= total {
			return nil, total
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total
}
