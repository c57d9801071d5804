package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

func TestNextFollowsConfiguredChain(t *testing.T) {
	g, err := Load([]models.TransitionEdge{
		{PrimaryID: "racial", OriginID: "racial", DestinationID: "income"},
		{PrimaryID: "racial", OriginID: "income", DestinationID: "open"},
	})
	require.NoError(t, err)

	dest, ok := g.Next("racial", "racial")
	require.True(t, ok)
	require.Equal(t, "income", dest)

	dest, ok = g.Next("racial", "income")
	require.True(t, ok)
	require.Equal(t, "open", dest)

	_, ok = g.Next("racial", "open")
	require.False(t, ok)
}

func TestNextTerminatesWithinCategoryCount(t *testing.T) {
	// chain over 5 categories must exhaust in at most 5 hops
	edges := []models.TransitionEdge{
		{PrimaryID: "a", OriginID: "a", DestinationID: "b"},
		{PrimaryID: "a", OriginID: "b", DestinationID: "c"},
		{PrimaryID: "a", OriginID: "c", DestinationID: "d"},
		{PrimaryID: "a", OriginID: "d", DestinationID: "e"},
	}
	g, err := Load(edges)
	require.NoError(t, err)

	current := "a"
	hops := 0
	for {
		next, ok := g.Next("a", current)
		if !ok {
			break
		}
		current = next
		hops++
		require.LessOrEqual(t, hops, 5)
	}
	require.Equal(t, "e", current)
}

func TestValidateDetectsCycle(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge("a", "a", "b"))
	require.NoError(t, g.AddEdge("a", "b", "c"))
	require.NoError(t, g.AddEdge("a", "c", "a"))

	err := g.Validate()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrCycleDetected.Code, appErr.Code)
}

func TestAddEdgeRejectsSelfLoopAndDuplicate(t *testing.T) {
	g := New()
	err := g.AddEdge("a", "b", "b")
	require.Error(t, err)

	require.NoError(t, g.AddEdge("a", "b", "c"))
	err = g.AddEdge("a", "b", "d")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrAlreadyExists.Code, appErr.Code)
}

func TestCyclesDisjointPerPrimary(t *testing.T) {
	// the same origin/destination pair under different primaries is legal
	g := New()
	require.NoError(t, g.AddEdge("p1", "x", "y"))
	require.NoError(t, g.AddEdge("p2", "y", "x"))
	require.NoError(t, g.Validate())
}
