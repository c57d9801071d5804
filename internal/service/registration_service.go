package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type registrationStore interface {
	Create(ctx context.Context, registration *models.Registration) error
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	ListByCandidateEdition(ctx context.Context, candidateID, editionID string) ([]models.RegistrationDetail, error)
}

type registrationCategoryReader interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
}

// CreateRegistrationInput carries a candidate's bid.
type CreateRegistrationInput struct {
	CandidateID string `json:"candidate_id" validate:"required"`
	CourseID    string `json:"course_id" validate:"required"`
	CategoryID  string `json:"category_id" validate:"required"`
	EditionID   string `json:"edition_id" validate:"required"`
}

// RegistrationService enrolls candidate bids. A candidate holds at most one
// registration per category per edition, and pairing is limited to one quota
// plus one open-pool bid on the same course.
type RegistrationService struct {
	registrations registrationStore
	categories    registrationCategoryReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(registrations registrationStore, categories registrationCategoryReader, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		registrations: registrations,
		categories:    categories,
		validator:     validate,
		logger:        logger,
	}
}

// Create persists a bid after checking the pairing rules.
func (s *RegistrationService) Create(ctx context.Context, input CreateRegistrationInput) (*models.Registration, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	category, err := s.categories.FindByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch category")
	}

	existing, err := s.registrations.ListByCandidateEdition(ctx, input.CandidateID, input.EditionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	sameCourse := 0
	for _, reg := range existing {
		if reg.CategoryID == input.CategoryID {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "candidate already registered in this category")
		}
		if reg.CourseID != input.CourseID {
			continue
		}
		sameCourse++
		if (reg.CategoryKind == models.KindOpen) == category.Open() {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "a pair on the same course must mix quota and open pool")
		}
	}
	if sameCourse >= 2 {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "candidate already holds a pair for this course")
	}

	registration := &models.Registration{
		CandidateID: input.CandidateID,
		CourseID:    input.CourseID,
		CategoryID:  input.CategoryID,
		EditionID:   input.EditionID,
	}
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	s.logger.Info("registration created",
		zap.String("registration_id", registration.ID),
		zap.String("candidate_id", registration.CandidateID),
		zap.String("category_id", registration.CategoryID),
	)
	return registration, nil
}

// Get returns one registration with candidate and category context.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	detail, err := s.registrations.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch registration")
	}
	return detail, nil
}

// ListByCandidateEdition returns a candidate's bids in an edition.
func (s *RegistrationService) ListByCandidateEdition(ctx context.Context, candidateID, editionID string) ([]models.RegistrationDetail, error) {
	details, err := s.registrations.ListByCandidateEdition(ctx, candidateID, editionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return details, nil
}
