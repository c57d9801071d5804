package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type catalogStore interface {
	CreateEdition(ctx context.Context, edition *models.Edition) error
	ListEditions(ctx context.Context) ([]models.Edition, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	ListCourses(ctx context.Context) ([]models.Course, error)
}

// CreateEditionInput carries a new admissions cycle.
type CreateEditionInput struct {
	Name string `json:"name" validate:"required"`
	Year int    `json:"year" validate:"required,gte=2000"`
}

// CreateCourseInput carries a new course.
type CreateCourseInput struct {
	Name     string  `json:"name" validate:"required"`
	CampusID *string `json:"campus_id,omitempty"`
}

// CatalogService registers editions and courses.
type CatalogService struct {
	catalog   catalogStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(catalog catalogStore, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, validator: validate, logger: logger}
}

// CreateEdition persists a cycle. Years far in the future are rejected as
// likely typos.
func (s *CatalogService) CreateEdition(ctx context.Context, input CreateEditionInput) (*models.Edition, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edition payload")
	}
	if input.Year > time.Now().Year()+2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "edition year too far ahead")
	}
	edition := &models.Edition{Name: input.Name, Year: input.Year}
	if err := s.catalog.CreateEdition(ctx, edition); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create edition")
	}
	s.logger.Info("edition created", zap.String("edition_id", edition.ID), zap.Int("year", edition.Year))
	return edition, nil
}

// ListEditions returns every cycle.
func (s *CatalogService) ListEditions(ctx context.Context) ([]models.Edition, error) {
	editions, err := s.catalog.ListEditions(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list editions")
	}
	return editions, nil
}

// CreateCourse persists a course.
func (s *CatalogService) CreateCourse(ctx context.Context, input CreateCourseInput) (*models.Course, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{Name: input.Name, CampusID: input.CampusID}
	if err := s.catalog.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID))
	return course, nil
}

// ListCourses returns every course.
func (s *CatalogService) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.catalog.ListCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}
