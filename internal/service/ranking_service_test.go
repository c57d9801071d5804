package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/internal/repository"
)

type mockScoreStore struct {
	records []repository.ScoredRegistration
	ranks   map[string]int
	listErr error
}

func (m *mockScoreStore) ListForRanking(ctx context.Context, editionID, courseID, categoryID string) ([]repository.ScoredRegistration, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.records, nil
}

func (m *mockScoreStore) UpdateRank(ctx context.Context, scoreID string, rank int) error {
	if m.ranks == nil {
		m.ranks = make(map[string]int)
	}
	m.ranks[scoreID] = rank
	return nil
}

func scored(id string, aggregate, writing, math, lang, sci, hum float64, birth time.Time) repository.ScoredRegistration {
	return repository.ScoredRegistration{
		ScoreRecord: models.ScoreRecord{
			ID:             id,
			RegistrationID: "reg-" + id,
			Aggregate:      aggregate,
			Writing:        writing,
			Mathematics:    math,
			Languages:      lang,
			Sciences:       sci,
			Humanities:     hum,
		},
		CandidateBirth: birth,
	}
}

func TestRankOrdersByAggregateDescending(t *testing.T) {
	birth := time.Date(2008, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &mockScoreStore{records: []repository.ScoredRegistration{
		scored("low", 600, 700, 80, 80, 80, 80, birth),
		scored("high", 720, 650, 80, 80, 80, 80, birth),
		scored("mid", 700, 700, 80, 80, 80, 80, birth),
	}}
	svc := NewRankingService(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	total, err := svc.Rank(context.Background(), "ed-1", "course-1", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, store.ranks["high"])
	assert.Equal(t, 2, store.ranks["mid"])
	assert.Equal(t, 3, store.ranks["low"])
}

func TestRankTieBreakCascade(t *testing.T) {
	birth := time.Date(2008, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &mockScoreStore{records: []repository.ScoredRegistration{
		scored("b", 700, 650, 90, 70, 70, 70, birth),
		scored("a", 700, 700, 80, 70, 70, 70, birth),
		scored("c", 700, 650, 85, 95, 70, 70, birth),
	}}
	svc := NewRankingService(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	_, err := svc.Rank(context.Background(), "ed-1", "course-1", "cat-1")
	require.NoError(t, err)
	// writing breaks the aggregate tie; mathematics breaks the rest before
	// languages ever matters.
	assert.Equal(t, 1, store.ranks["a"])
	assert.Equal(t, 2, store.ranks["b"])
	assert.Equal(t, 3, store.ranks["c"])
}

func TestRankOlderCandidateWinsFullTie(t *testing.T) {
	older := time.Date(2006, 2, 10, 0, 0, 0, 0, time.UTC)
	younger := time.Date(2009, 8, 3, 0, 0, 0, 0, time.UTC)
	store := &mockScoreStore{records: []repository.ScoredRegistration{
		scored("younger", 700, 700, 80, 80, 80, 80, younger),
		scored("older", 700, 700, 80, 80, 80, 80, older),
	}}
	svc := NewRankingService(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	_, err := svc.Rank(context.Background(), "ed-1", "course-1", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.ranks["older"])
	assert.Equal(t, 2, store.ranks["younger"])
}

func TestRankIsStableOnIdenticalRecords(t *testing.T) {
	birth := time.Date(2008, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &mockScoreStore{records: []repository.ScoredRegistration{
		scored("first", 700, 700, 80, 80, 80, 80, birth),
		scored("second", 700, 700, 80, 80, 80, 80, birth),
	}}
	svc := NewRankingService(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	_, err := svc.Rank(context.Background(), "ed-1", "course-1", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.ranks["first"])
	assert.Equal(t, 2, store.ranks["second"])
}

func TestRankSkipsUnchangedRanks(t *testing.T) {
	birth := time.Date(2008, 5, 1, 0, 0, 0, 0, time.UTC)
	one := 1
	record := scored("keep", 700, 700, 80, 80, 80, 80, birth)
	record.Rank = &one
	store := &mockScoreStore{records: []repository.ScoredRegistration{record}}
	svc := NewRankingService(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	_, err := svc.Rank(context.Background(), "ed-1", "course-1", "cat-1")
	require.NoError(t, err)
	assert.Empty(t, store.ranks)
}
