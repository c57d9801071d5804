package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type memCatalogStore struct {
	editions []models.Edition
	courses  []models.Course
}

func (m *memCatalogStore) CreateEdition(_ context.Context, edition *models.Edition) error {
	edition.ID = "ed-new"
	m.editions = append(m.editions, *edition)
	return nil
}

func (m *memCatalogStore) ListEditions(_ context.Context) ([]models.Edition, error) {
	return m.editions, nil
}

func (m *memCatalogStore) CreateCourse(_ context.Context, course *models.Course) error {
	course.ID = "course-new"
	m.courses = append(m.courses, *course)
	return nil
}

func (m *memCatalogStore) ListCourses(_ context.Context) ([]models.Course, error) {
	return m.courses, nil
}

func TestCreateEdition(t *testing.T) {
	store := &memCatalogStore{}
	svc := NewCatalogService(store, nil, nil)

	edition, err := svc.CreateEdition(context.Background(), CreateEditionInput{Name: "Vestibular", Year: time.Now().Year()})
	require.NoError(t, err)
	assert.Equal(t, "ed-new", edition.ID)
	assert.Len(t, store.editions, 1)
}

func TestCreateEditionRejectsFarFutureYear(t *testing.T) {
	store := &memCatalogStore{}
	svc := NewCatalogService(store, nil, nil)

	_, err := svc.CreateEdition(context.Background(), CreateEditionInput{Name: "Vestibular", Year: time.Now().Year() + 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.editions)
}

func TestCreateCourseWithCampus(t *testing.T) {
	store := &memCatalogStore{}
	svc := NewCatalogService(store, nil, nil)

	campus := "campus-1"
	course, err := svc.CreateCourse(context.Background(), CreateCourseInput{Name: "Engenharia", CampusID: &campus})
	require.NoError(t, err)
	require.NotNil(t, course.CampusID)
	assert.Equal(t, "campus-1", *course.CampusID)
}

func TestCreateCourseRequiresName(t *testing.T) {
	store := &memCatalogStore{}
	svc := NewCatalogService(store, nil, nil)

	_, err := svc.CreateCourse(context.Background(), CreateCourseInput{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
