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

type courseStore interface {
	Create(course models.Course) error
	Update(course models.Course) error
	FindByID(id string) (*models.Course, error)
	List(filter models.CourseFilter) ([]models.Course, int)
}

// CreateCourseRequest describes catalog course creation.
type CreateCourseRequest struct {
	Code          string   `json:"code" validate:"required"`
	Title         string   `json:"title" validate:"required"`
	Department    string   `json:"department"`
	Credits       int      `json:"credits" validate:"gte=0"`
	Capacity      int      `json:"capacity" validate:"gte=0"`
	MaxWaitlist   int      `json:"max_waitlist" validate:"gte=0"`
	Prerequisites []string `json:"prerequisites"`
}

// UpdateCourseRequest describes catalog course updates. Reducing capacity
// below the current enrolled count is allowed; nobody is force-dropped and
// the course reports as over capacity until natural attrition.
type UpdateCourseRequest struct {
	Title         *string  `json:"title,omitempty"`
	Department    *string  `json:"department,omitempty"`
	Credits       *int     `json:"credits,omitempty"`
	Capacity      *int     `json:"capacity,omitempty"`
	MaxWaitlist   *int     `json:"max_waitlist,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Active        *bool    `json:"active,omitempty"`
}

// CourseService manages the course catalog collaborator.
type CourseService struct {
	repo      courseStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseStore, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// Create adds a course to the catalog, rejecting prerequisite cycles.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := models.Course{
		ID:            uuid.NewString(),
		Code:          req.Code,
		Title:         req.Title,
		Department:    req.Department,
		Credits:       req.Credits,
		Capacity:      req.Capacity,
		MaxWaitlist:   req.MaxWaitlist,
		Prerequisites: append([]string{}, req.Prerequisites...),
		Active:        true,
	}
	if err := s.repo.Create(course); err != nil {
		return nil, mapCatalogError(err)
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return &course, nil
}

// Update applies partial changes to a catalog course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	course, err := s.repo.FindByID(id)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Department != nil {
		course.Department = *req.Department
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.Capacity != nil {
		course.Capacity = *req.Capacity
	}
	if req.MaxWaitlist != nil {
		course.MaxWaitlist = *req.MaxWaitlist
	}
	if req.Prerequisites != nil {
		course.Prerequisites = append([]string{}, req.Prerequisites...)
	}
	if req.Active != nil {
		course.Active = *req.Active
	}
	if err := s.repo.Update(*course); err != nil {
		return nil, mapCatalogError(err)
	}
	return course, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(id)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	return course, nil
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total := s.repo.List(filter)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func mapCatalogError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Clone(appErrors.ErrCourseNotFound, "")
	case errors.Is(err, repository.ErrPrerequisiteCycle):
		return appErrors.Clone(appErrors.ErrPrerequisiteCycle, "")
	case errors.Is(err, repository.ErrDuplicateID):
		return appErrors.Clone(appErrors.ErrConflict, "course already exists")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "catalog operation failed")
	}
}
