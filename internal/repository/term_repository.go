package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
)

// TermRepository is the in-memory academic term registry.
type TermRepository struct {
	mu    sync.RWMutex
	terms map[string]models.Term
}

// NewTermRepository constructs an empty registry.
func NewTermRepository() *TermRepository {
	return &TermRepository{terms: make(map[string]models.Term)}
}

// Create stores a new term.
func (r *TermRepository) Create(term models.Term) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.terms[term.ID]; ok {
		return ErrDuplicateID
	}
	term.CreatedAt = time.Now().UTC()
	r.terms[term.ID] = term
	return nil
}

// FindByID returns a copy of the term.
func (r *TermRepository) FindByID(id string) (*models.Term, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	term, ok := r.terms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &term, nil
}

// List returns all terms, newest first.
func (r *TermRepository) List() []models.Term {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Term, 0, len(r.terms))
	for _, term := range r.terms {
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].ID < out[j].ID
	})
	return out
}
