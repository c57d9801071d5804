package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type memCategoryStore struct {
	categories  map[string]*models.Category
	reviewTypes map[string][]models.ReviewType
	edges       []models.TransitionEdge
}

func newMemCategoryStore() *memCategoryStore {
	return &memCategoryStore{
		categories:  make(map[string]*models.Category),
		reviewTypes: make(map[string][]models.ReviewType),
	}
}

func (m *memCategoryStore) Create(_ context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = "cat-" + category.Name
	}
	m.categories[category.ID] = category
	return nil
}

func (m *memCategoryStore) FindByID(_ context.Context, id string) (*models.Category, error) {
	if category, ok := m.categories[id]; ok {
		return category, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memCategoryStore) List(_ context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(m.categories))
	for _, category := range m.categories {
		out = append(out, *category)
	}
	return out, nil
}

func (m *memCategoryStore) OpenPool(_ context.Context) (*models.Category, error) {
	for _, category := range m.categories {
		if category.Kind == models.KindOpen {
			return category, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memCategoryStore) SetReviewTypes(_ context.Context, categoryID string, types []models.ReviewType) error {
	m.reviewTypes[categoryID] = types
	return nil
}

func (m *memCategoryStore) ReviewTypes(_ context.Context, categoryID string) ([]models.ReviewType, error) {
	return m.reviewTypes[categoryID], nil
}

func (m *memCategoryStore) CreateEdge(_ context.Context, edge *models.TransitionEdge) error {
	edge.ID = "edge-" + edge.OriginID
	m.edges = append(m.edges, *edge)
	return nil
}

func (m *memCategoryStore) ListEdges(_ context.Context) ([]models.TransitionEdge, error) {
	return m.edges, nil
}

func (m *memCategoryStore) addCategory(id string, kind models.CategoryKind) {
	m.categories[id] = &models.Category{ID: id, Name: id, Kind: kind}
}

func TestCreateCategoryRejectsSecondOpenPool(t *testing.T) {
	store := newMemCategoryStore()
	store.addCategory("cat-open", models.KindOpen)
	svc := NewCategoryService(store, nil, nil)

	_, err := svc.Create(context.Background(), CreateCategoryInput{Name: "Ampla 2", Kind: models.KindOpen})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyExists.Code, appErrors.FromError(err).Code)
}

func TestCreateCategoryRejectsUnknownKind(t *testing.T) {
	store := newMemCategoryStore()
	svc := NewCategoryService(store, nil, nil)

	_, err := svc.Create(context.Background(), CreateCategoryInput{Name: "Especial", Kind: "SPECIAL"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSetReviewTypesRejectsOpenPool(t *testing.T) {
	store := newMemCategoryStore()
	store.addCategory("cat-open", models.KindOpen)
	svc := NewCategoryService(store, nil, nil)

	err := svc.SetReviewTypes(context.Background(), "cat-open", []models.ReviewType{models.ReviewIncome})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSetReviewTypesOnQuotaCategory(t *testing.T) {
	store := newMemCategoryStore()
	store.addCategory("cat-q", models.KindIncome)
	svc := NewCategoryService(store, nil, nil)

	types := []models.ReviewType{models.ReviewIncome, models.ReviewSchooling}
	require.NoError(t, svc.SetReviewTypes(context.Background(), "cat-q", types))

	got, err := svc.ReviewTypes(context.Background(), "cat-q")
	require.NoError(t, err)
	assert.Equal(t, types, got)
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	store := newMemCategoryStore()
	store.addCategory("cat-a", models.KindIncome)
	store.addCategory("cat-b", models.KindRacial)
	store.addCategory("cat-open", models.KindOpen)
	svc := NewCategoryService(store, nil, nil)

	_, err := svc.AddEdge(context.Background(), CreateEdgeInput{
		PrimaryID: "cat-a", OriginID: "cat-a", DestinationID: "cat-b",
	})
	require.NoError(t, err)
	_, err = svc.AddEdge(context.Background(), CreateEdgeInput{
		PrimaryID: "cat-a", OriginID: "cat-b", DestinationID: "cat-a",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCycleDetected.Code, appErrors.FromError(err).Code)
	assert.Len(t, store.edges, 1)
}

func TestAddEdgeRejectsSelfLoop(t *testing.T) {
	store := newMemCategoryStore()
	store.addCategory("cat-a", models.KindIncome)
	svc := NewCategoryService(store, nil, nil)

	_, err := svc.AddEdge(context.Background(), CreateEdgeInput{
		PrimaryID: "cat-a", OriginID: "cat-a", DestinationID: "cat-a",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCycleDetected.Code, appErrors.FromError(err).Code)
}

func TestAddEdgeRejectsUnknownCategory(t *testing.T) {
	store := newMemCategoryStore()
	store.addCategory("cat-a", models.KindIncome)
	svc := NewCategoryService(store, nil, nil)

	_, err := svc.AddEdge(context.Background(), CreateEdgeInput{
		PrimaryID: "cat-a", OriginID: "cat-a", DestinationID: "cat-ghost",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
