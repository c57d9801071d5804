package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/database"
)

// CategoryRepository handles persistence of categories, their required review
// types and the fallback edges.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create persists a category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	const query = `INSERT INTO categories (id, name, kind) VALUES (:id, :name, :kind)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// FindByID returns a category by its ID.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	const query = `SELECT id, name, kind FROM categories WHERE id = $1`
	var category models.Category
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	const query = `SELECT id, name, kind FROM categories ORDER BY name`
	var categories []models.Category
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// OpenPool returns the single open-pool category.
func (r *CategoryRepository) OpenPool(ctx context.Context) (*models.Category, error) {
	const query = `SELECT id, name, kind FROM categories WHERE kind = $1`
	var category models.Category
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &category, query, models.KindOpen); err != nil {
		return nil, err
	}
	return &category, nil
}

// SetReviewTypes replaces the required review types of a category.
func (r *CategoryRepository) SetReviewTypes(ctx context.Context, categoryID string, types []models.ReviewType) error {
	ext := database.Ext(ctx, r.db)
	if _, err := ext.ExecContext(ctx, `DELETE FROM category_review_types WHERE category_id = $1`, categoryID); err != nil {
		return fmt.Errorf("clear review types: %w", err)
	}
	const query = `INSERT INTO category_review_types (category_id, review_type) VALUES ($1, $2)`
	for _, rt := range types {
		if _, err := ext.ExecContext(ctx, query, categoryID, rt); err != nil {
			return fmt.Errorf("add review type: %w", err)
		}
	}
	return nil
}

// ReviewTypes returns the required review types of a category.
func (r *CategoryRepository) ReviewTypes(ctx context.Context, categoryID string) ([]models.ReviewType, error) {
	const query = `SELECT review_type FROM category_review_types WHERE category_id = $1 ORDER BY review_type`
	var types []models.ReviewType
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &types, query, categoryID); err != nil {
		return nil, fmt.Errorf("list review types: %w", err)
	}
	return types, nil
}

// CreateEdge persists one fallback edge.
func (r *CategoryRepository) CreateEdge(ctx context.Context, edge *models.TransitionEdge) error {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	const query = `INSERT INTO transition_edges (id, primary_category_id, origin_category_id, destination_category_id)
        VALUES (:id, :primary_category_id, :origin_category_id, :destination_category_id)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, edge); err != nil {
		return fmt.Errorf("create edge: %w", err)
	}
	return nil
}

// ListEdges returns every configured fallback edge.
func (r *CategoryRepository) ListEdges(ctx context.Context) ([]models.TransitionEdge, error) {
	const query = `SELECT id, primary_category_id, origin_category_id, destination_category_id FROM transition_edges`
	var edges []models.TransitionEdge
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &edges, query); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edges, nil
}
