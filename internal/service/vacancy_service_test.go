package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seletivo/admissions-api/internal/graph"
	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

func newVacancyFixture() (*VacancyService, *closerEnv) {
	env := newCloserEnv()
	env.addCategory("cat-open", models.KindOpen)
	env.addCategory("cat-a", models.KindRacial)
	env.addCategory("cat-b", models.KindIncome)
	return NewVacancyService(envSeats{env}, envCats{env}, nil), env
}

func cascadeOf(t *testing.T, env *closerEnv) *graph.ModalityGraph {
	t.Helper()
	g, err := graph.Load(env.edges)
	require.NoError(t, err)
	return g
}

func TestAdvanceStopsAtFirstCategoryWithDemand(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addEdge("cat-a", "cat-a", "cat-b")
	env.addEdge("cat-a", "cat-b", "cat-open")
	env.addSeat("seat-1", "course-1", "cat-a")

	seat, err := vac.Advance(context.Background(), env.seats["seat-1"], cascadeOf(t, env), func(categoryID string) bool {
		return categoryID == "cat-b"
	})
	require.NoError(t, err)

	assert.Equal(t, "cat-b", seat.CurrentCategoryID)
	assert.Equal(t, []string{"seat-1:cat-a>cat-b"}, env.moves)
}

func TestAdvanceWalksToEndWithoutDemand(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addEdge("cat-a", "cat-a", "cat-b")
	env.addEdge("cat-a", "cat-b", "cat-open")
	env.addSeat("seat-1", "course-1", "cat-a")

	seat, err := vac.Advance(context.Background(), env.seats["seat-1"], cascadeOf(t, env), func(string) bool { return false })
	require.NoError(t, err)

	assert.Equal(t, "cat-open", seat.CurrentCategoryID)
	assert.Len(t, env.moves, 2)
}

func TestAdvanceResumesFromCurrentCategory(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addEdge("cat-a", "cat-a", "cat-b")
	env.addEdge("cat-a", "cat-b", "cat-open")
	env.addSeat("seat-1", "course-1", "cat-a")
	env.seats["seat-1"].CurrentCategoryID = "cat-b"

	seat, err := vac.Advance(context.Background(), env.seats["seat-1"], cascadeOf(t, env), func(string) bool { return false })
	require.NoError(t, err)

	assert.Equal(t, "cat-open", seat.CurrentCategoryID)
	assert.Equal(t, []string{"seat-1:cat-b>cat-open"}, env.moves)
}

func TestAdvanceLeavesOccupiedSeat(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addEdge("cat-a", "cat-a", "cat-open")
	env.addSeat("seat-1", "course-1", "cat-a")
	occupant := "cand-1"
	env.seats["seat-1"].OccupantID = &occupant

	seat, err := vac.Advance(context.Background(), env.seats["seat-1"], cascadeOf(t, env), nil)
	require.NoError(t, err)

	assert.Equal(t, "cat-a", seat.CurrentCategoryID)
	assert.Empty(t, env.moves)
}

func TestAdvanceLeavesOpenPrimarySeat(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addEdge("cat-a", "cat-a", "cat-b")
	env.addSeat("seat-1", "course-1", "cat-open")

	seat, err := vac.Advance(context.Background(), env.seats["seat-1"], cascadeOf(t, env), nil)
	require.NoError(t, err)

	assert.Equal(t, "cat-open", seat.CurrentCategoryID)
	assert.Empty(t, env.moves)
}

func TestFreeSeatReportsNoVacancy(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addSeat("seat-1", "course-1", "cat-a")
	occupant := "cand-1"
	env.seats["seat-1"].OccupantID = &occupant

	_, err := vac.FreeSeat(context.Background(), "ed-1", "course-1", "cat-a")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoVacancy.Code, appErrors.FromError(err).Code)
}

func TestOccupyTakenSeatReportsNoVacancy(t *testing.T) {
	vac, env := newVacancyFixture()
	env.addSeat("seat-1", "course-1", "cat-a")

	require.NoError(t, vac.Occupy(context.Background(), "seat-1", "cand-1"))

	err := vac.Occupy(context.Background(), "seat-1", "cand-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoVacancy.Code, appErrors.FromError(err).Code)
}

func TestCreateSeatsValidation(t *testing.T) {
	vac, _ := newVacancyFixture()

	_, err := vac.CreateSeats(context.Background(), 0, "ed-1", "course-1", "cat-a")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = vac.CreateSeats(context.Background(), 3, "ed-1", "course-1", "cat-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateSeatsStartsInPrimaryCategory(t *testing.T) {
	vac, _ := newVacancyFixture()

	seats, err := vac.CreateSeats(context.Background(), 2, "ed-1", "course-1", "cat-a")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	for _, seat := range seats {
		assert.Equal(t, "cat-a", seat.PrimaryCategoryID)
		assert.Equal(t, "cat-a", seat.CurrentCategoryID)
		assert.False(t, seat.Occupied())
	}
}
