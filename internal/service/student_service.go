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

type studentStore interface {
	Create(student models.Student) error
	Update(student models.Student) error
	FindByID(id string) (*models.Student, error)
	List(filter models.StudentFilter) ([]models.Student, int)
}

// CreateStudentRequest describes roster student creation.
type CreateStudentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Major string `json:"major"`
}

// UpdateStudentRequest describes partial roster updates.
type UpdateStudentRequest struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Major  *string `json:"major,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// StudentService manages the student roster collaborator.
type StudentService struct {
	repo      studentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := models.Student{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Email:  req.Email,
		Major:  req.Major,
		Active: true,
	}
	if err := s.repo.Create(student); err != nil {
		return nil, mapRosterError(err)
	}
	s.logger.Info("student created", zap.String("student_id", student.ID))
	return &student, nil
}

// Update applies partial changes to a student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(id)
	if err != nil {
		return nil, mapRosterError(err)
	}
	if req.Name != nil {
		student.Name = *req.Name
	}
	if req.Email != nil {
		student.Email = *req.Email
	}
	if req.Major != nil {
		student.Major = *req.Major
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	if err := s.repo.Update(*student); err != nil {
		return nil, mapRosterError(err)
	}
	return student, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(id)
	if err != nil {
		return nil, mapRosterError(err)
	}
	return student, nil
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total := s.repo.List(filter)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func mapRosterError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Clone(appErrors.ErrStudentNotFound, "")
	case errors.Is(err, repository.ErrDuplicateID):
		return appErrors.Clone(appErrors.ErrConflict, "student already exists")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "roster operation failed")
	}
}
