package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/database"
)

// RoundRepository handles persistence of rounds.
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository constructs the repository.
func NewRoundRepository(db *sqlx.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

const roundColumns = `id, edition_id, campus_id, sequence, multiplier, open, published, requires_review,
        interest_opens_at, interest_closes_at, review_closes_at, confirmation_due_at, closed_at, created_at`

// Create persists a round.
func (r *RoundRepository) Create(ctx context.Context, round *models.Round) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rounds (id, edition_id, campus_id, sequence, multiplier, open, published, requires_review,
        interest_opens_at, interest_closes_at, review_closes_at, confirmation_due_at, closed_at, created_at)
        VALUES (:id, :edition_id, :campus_id, :sequence, :multiplier, :open, :published, :requires_review,
        :interest_opens_at, :interest_closes_at, :review_closes_at, :confirmation_due_at, :closed_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, round); err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	return nil
}

// FindByID returns a round.
func (r *RoundRepository) FindByID(ctx context.Context, id string) (*models.Round, error) {
	query := fmt.Sprintf(`SELECT %s FROM rounds WHERE id = $1`, roundColumns)
	var round models.Round
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &round, query, id); err != nil {
		return nil, err
	}
	return &round, nil
}

// FindOpen returns the open round for (edition, campus scope), or nil.
func (r *RoundRepository) FindOpen(ctx context.Context, editionID string, campusID *string) (*models.Round, error) {
	query := fmt.Sprintf(`SELECT %s FROM rounds WHERE edition_id = $1 AND campus_id IS NOT DISTINCT FROM $2 AND open = TRUE`, roundColumns)
	var round models.Round
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &round, query, editionID, campusID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open round: %w", err)
	}
	return &round, nil
}

// ListByEdition returns every round of an edition, oldest first.
func (r *RoundRepository) ListByEdition(ctx context.Context, editionID string) ([]models.Round, error) {
	query := fmt.Sprintf(`SELECT %s FROM rounds WHERE edition_id = $1 ORDER BY sequence, created_at`, roundColumns)
	var rounds []models.Round
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &rounds, query, editionID); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return rounds, nil
}

// LastSequence returns the highest round sequence for (edition, campus), or
// -1 when no round exists yet.
func (r *RoundRepository) LastSequence(ctx context.Context, editionID string, campusID *string) (int, error) {
	const query = `SELECT COALESCE(MAX(sequence), -1) FROM rounds WHERE edition_id = $1 AND campus_id IS NOT DISTINCT FROM $2`
	var seq int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &seq, query, editionID, campusID); err != nil {
		return 0, fmt.Errorf("last round sequence: %w", err)
	}
	return seq, nil
}

// LastClosed returns the most recently closed round for (edition, campus).
func (r *RoundRepository) LastClosed(ctx context.Context, editionID string, campusID *string) (*models.Round, error) {
	query := fmt.Sprintf(`SELECT %s FROM rounds
        WHERE edition_id = $1 AND campus_id IS NOT DISTINCT FROM $2 AND closed_at IS NOT NULL
        ORDER BY closed_at DESC LIMIT 1`, roundColumns)
	var round models.Round
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &round, query, editionID, campusID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find last closed round: %w", err)
	}
	return &round, nil
}

// MarkClosed flags the round closed.
func (r *RoundRepository) MarkClosed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE rounds SET open = FALSE, closed_at = $2 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("close round: %w", err)
	}
	return nil
}

// MarkReopened clears the closed flag.
func (r *RoundRepository) MarkReopened(ctx context.Context, id string) error {
	const query = `UPDATE rounds SET open = TRUE, closed_at = NULL WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("reopen round: %w", err)
	}
	return nil
}

// MarkPublished flags the round published.
func (r *RoundRepository) MarkPublished(ctx context.Context, id string) error {
	const query = `UPDATE rounds SET published = TRUE WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("publish round: %w", err)
	}
	return nil
}
