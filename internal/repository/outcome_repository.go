package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/database"
)

// OutcomeRepository handles the write-once per-round result records.
type OutcomeRepository struct {
	db *sqlx.DB
}

// NewOutcomeRepository constructs the repository.
func NewOutcomeRepository(db *sqlx.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create persists an outcome. The unique (registration, round) index enforces
// write-once.
func (r *OutcomeRepository) Create(ctx context.Context, outcome *models.Outcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO outcomes (id, registration_id, round_id, status, reason, created_at)
        VALUES (:id, :registration_id, :round_id, :status, :reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, outcome); err != nil {
		return fmt.Errorf("create outcome: %w", err)
	}
	return nil
}

// FindByRegistrationRound returns the outcome of a registration in a round.
func (r *OutcomeRepository) FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.Outcome, error) {
	const query = `SELECT id, registration_id, round_id, status, reason, created_at
        FROM outcomes WHERE registration_id = $1 AND round_id = $2`
	var outcome models.Outcome
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &outcome, query, registrationID, roundID); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListByRound returns every outcome of a round.
func (r *OutcomeRepository) ListByRound(ctx context.Context, roundID string) ([]models.Outcome, error) {
	const query = `SELECT id, registration_id, round_id, status, reason, created_at
        FROM outcomes WHERE round_id = $1 ORDER BY created_at, id`
	var outcomes []models.Outcome
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &outcomes, query, roundID); err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return outcomes, nil
}

// DeleteByRound removes every outcome of a round; only the reopen may call it.
func (r *OutcomeRepository) DeleteByRound(ctx context.Context, roundID string) error {
	const query = `DELETE FROM outcomes WHERE round_id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, roundID); err != nil {
		return fmt.Errorf("delete outcomes: %w", err)
	}
	return nil
}
