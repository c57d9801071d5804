// Package graph holds the fallback graph over quota categories. Each primary
// category owns a chain of directed edges describing where its unclaimed
// seats trickle to. The graph is validated once at configuration load; the
// allocation paths assume acyclicity and never re-check.
package graph

import (
	"fmt"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

// ModalityGraph maps (primary, origin) pairs to fallback destinations.
type ModalityGraph struct {
	// edges[primary][origin] = destination
	edges map[string]map[string]string
}

// New builds an empty graph.
func New() *ModalityGraph {
	return &ModalityGraph{edges: make(map[string]map[string]string)}
}

// Load builds a graph from configured edges and validates it.
func Load(edges []models.TransitionEdge) (*ModalityGraph, error) {
	g := New()
	for _, e := range edges {
		if err := g.AddEdge(e.PrimaryID, e.OriginID, e.DestinationID); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddEdge registers one fallback step for a primary category. A duplicate
// origin under the same primary is a configuration conflict.
func (g *ModalityGraph) AddEdge(primary, origin, destination string) error {
	if origin == destination {
		return appErrors.Clone(appErrors.ErrCycleDetected, fmt.Sprintf("category %s falls back to itself", origin))
	}
	byOrigin, ok := g.edges[primary]
	if !ok {
		byOrigin = make(map[string]string)
		g.edges[primary] = byOrigin
	}
	if _, exists := byOrigin[origin]; exists {
		return appErrors.Clone(appErrors.ErrAlreadyExists, fmt.Sprintf("fallback for %s under primary %s already configured", origin, primary))
	}
	byOrigin[origin] = destination
	return nil
}

// Next returns the configured destination for current under primary. The
// second return is false when no fallback exists.
func (g *ModalityGraph) Next(primary, current string) (string, bool) {
	byOrigin, ok := g.edges[primary]
	if !ok {
		return "", false
	}
	dest, ok := byOrigin[current]
	return dest, ok
}

// Validate walks every chain and fails on the first revisited node. A simple
// reachability walk is enough: the per-primary relation is functional, so any
// repeat proves a cycle.
func (g *ModalityGraph) Validate() error {
	for primary, byOrigin := range g.edges {
		for origin := range byOrigin {
			visited := map[string]bool{origin: true}
			current := origin
			for {
				next, ok := byOrigin[current]
				if !ok {
					break
				}
				if visited[next] {
					return appErrors.Clone(appErrors.ErrCycleDetected,
						fmt.Sprintf("fallback cycle under primary %s reached %s twice", primary, next))
				}
				visited[next] = true
				current = next
			}
		}
	}
	return nil
}
