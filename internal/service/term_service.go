package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SatvikPraveen/SmartCampus-sub000/internal/models"
	"github.com/SatvikPraveen/SmartCampus-sub000/internal/repository"
	appErrors "github.com/SatvikPraveen/SmartCampus-sub000/pkg/errors"
)

type termStore interface {
	Create(term models.Term) error
	FindByID(id string) (*models.Term, error)
	List() []models.Term
}

// CreateTermRequest describes term registration.
type CreateTermRequest struct {
	Semester models.Semester `json:"semester" validate:"required,oneof=SPRING SUMMER FALL WINTER"`
	Year     int             `json:"year" validate:"required,gte=1900"`
}

// TermService manages the academic term registry.
type TermService struct {
	repo      termStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService constructs TermService.
func NewTermService(repo termStore, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, validator: validate, logger: logger}
}

// Create registers a new term.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	term := models.Term{
		ID:       uuid.NewString(),
		Semester: req.Semester,
		Year:     req.Year,
		IsActive: true,
	}
	if err := s.repo.Create(term); err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return &term, nil
}

// Get returns one term.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrTermNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// List returns all terms, newest first.
func (s *TermService) List(ctx context.Context) []models.Term {
	return s.repo.List()
}
