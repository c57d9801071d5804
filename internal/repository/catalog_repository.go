package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/database"
)

// CatalogRepository handles persistence of editions and courses, the static
// catalog everything else hangs off.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// CreateEdition persists an admissions cycle.
func (r *CatalogRepository) CreateEdition(ctx context.Context, edition *models.Edition) error {
	if edition.ID == "" {
		edition.ID = uuid.NewString()
	}
	const query = `INSERT INTO editions (id, name, year) VALUES (:id, :name, :year)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, edition); err != nil {
		return fmt.Errorf("create edition: %w", err)
	}
	return nil
}

// ListEditions returns every edition, newest cycle first.
func (r *CatalogRepository) ListEditions(ctx context.Context) ([]models.Edition, error) {
	const query = `SELECT id, name, year FROM editions ORDER BY year DESC, name`
	var editions []models.Edition
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &editions, query); err != nil {
		return nil, fmt.Errorf("list editions: %w", err)
	}
	return editions, nil
}

// FindEdition returns an edition.
func (r *CatalogRepository) FindEdition(ctx context.Context, id string) (*models.Edition, error) {
	const query = `SELECT id, name, year FROM editions WHERE id = $1`
	var edition models.Edition
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &edition, query, id); err != nil {
		return nil, err
	}
	return &edition, nil
}

// CreateCourse persists a course.
func (r *CatalogRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	const query = `INSERT INTO courses (id, name, campus_id) VALUES (:id, :name, :campus_id)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// ListCourses returns every course, ordered by name.
func (r *CatalogRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, name, campus_id FROM courses ORDER BY name`
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindCourse returns a course.
func (r *CatalogRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, campus_id FROM courses WHERE id = $1`
	var course models.Course
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}
