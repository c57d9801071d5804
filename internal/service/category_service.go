package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/graph"
	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type categoryStore interface {
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	OpenPool(ctx context.Context) (*models.Category, error)
	SetReviewTypes(ctx context.Context, categoryID string, types []models.ReviewType) error
	ReviewTypes(ctx context.Context, categoryID string) ([]models.ReviewType, error)
	CreateEdge(ctx context.Context, edge *models.TransitionEdge) error
	ListEdges(ctx context.Context) ([]models.TransitionEdge, error)
}

// CreateCategoryInput carries a new category.
type CreateCategoryInput struct {
	Name string              `json:"name" validate:"required"`
	Kind models.CategoryKind `json:"kind" validate:"required,oneof=OPEN RACIAL INCOME DISABILITY RURAL SCHOOL_TYPE"`
}

// CreateEdgeInput carries one fallback step.
type CreateEdgeInput struct {
	PrimaryID     string `json:"primary_category_id" validate:"required"`
	OriginID      string `json:"origin_category_id" validate:"required"`
	DestinationID string `json:"destination_category_id" validate:"required"`
}

// CategoryService configures the quota categories, their required review
// types and the fallback graph. Every edge mutation revalidates the whole
// graph before anything is persisted.
type CategoryService struct {
	categories categoryStore
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCategoryService constructs CategoryService.
func NewCategoryService(categories categoryStore, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{categories: categories, validator: validate, logger: logger}
}

// Create persists a category. At most one open-pool category may exist.
func (s *CategoryService) Create(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	if input.Kind == models.KindOpen {
		if existing, err := s.categories.OpenPool(ctx); err == nil && existing != nil {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "an open-pool category already exists")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open pool")
		}
	}
	category := &models.Category{Name: input.Name, Kind: input.Kind}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	s.logger.Info("category created", zap.String("category_id", category.ID), zap.String("kind", string(category.Kind)))
	return category, nil
}

// List returns every category.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// SetReviewTypes replaces the required review types of a quota category. The
// open pool carries none.
func (s *CategoryService) SetReviewTypes(ctx context.Context, categoryID string, types []models.ReviewType) error {
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch category")
	}
	if category.Open() && len(types) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "the open pool requires no document review")
	}
	if err := s.categories.SetReviewTypes(ctx, categoryID, types); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set review types")
	}
	return nil
}

// ReviewTypes returns the required review types of a category.
func (s *CategoryService) ReviewTypes(ctx context.Context, categoryID string) ([]models.ReviewType, error) {
	types, err := s.categories.ReviewTypes(ctx, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review types")
	}
	return types, nil
}

// AddEdge persists one fallback step after proving the enlarged graph is
// still acyclic.
func (s *CategoryService) AddEdge(ctx context.Context, input CreateEdgeInput) (*models.TransitionEdge, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edge payload")
	}
	for _, id := range []string{input.PrimaryID, input.OriginID, input.DestinationID} {
		if _, err := s.categories.FindByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "category "+id+" not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch category")
		}
	}

	edges, err := s.categories.ListEdges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list edges")
	}
	edge := &models.TransitionEdge{
		PrimaryID:     input.PrimaryID,
		OriginID:      input.OriginID,
		DestinationID: input.DestinationID,
	}
	if _, err := graph.Load(append(edges, *edge)); err != nil {
		return nil, err
	}

	if err := s.categories.CreateEdge(ctx, edge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create edge")
	}
	s.logger.Info("fallback edge created",
		zap.String("primary", edge.PrimaryID),
		zap.String("origin", edge.OriginID),
		zap.String("destination", edge.DestinationID),
	)
	return edge, nil
}

// Graph loads and validates the configured fallback graph.
func (s *CategoryService) Graph(ctx context.Context) (*graph.ModalityGraph, error) {
	edges, err := s.categories.ListEdges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list edges")
	}
	return graph.Load(edges)
}

// Edges returns the raw configured edges.
func (s *CategoryService) Edges(ctx context.Context) ([]models.TransitionEdge, error) {
	edges, err := s.categories.ListEdges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list edges")
	}
	return edges, nil
}
