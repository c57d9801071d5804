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

// GrantRepository handles seat grants.
type GrantRepository struct {
	db *sqlx.DB
}

// NewGrantRepository constructs the repository.
func NewGrantRepository(db *sqlx.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Create persists a seat grant.
func (r *GrantRepository) Create(ctx context.Context, grant *models.SeatGrant) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO seat_grants (id, registration_id, round_id, seat_id, created_at)
        VALUES (:id, :registration_id, :round_id, :seat_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, grant); err != nil {
		return fmt.Errorf("create seat grant: %w", err)
	}
	return nil
}

// ExistsForCandidateEdition reports whether the candidate already holds a
// grant anywhere in the edition.
func (r *GrantRepository) ExistsForCandidateEdition(ctx context.Context, candidateID, editionID string) (bool, error) {
	const query = `SELECT 1 FROM seat_grants g
        JOIN registrations reg ON reg.id = g.registration_id
        WHERE reg.candidate_id = $1 AND reg.edition_id = $2 LIMIT 1`
	var one int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &one, query, candidateID, editionID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check seat grant: %w", err)
	}
	return true, nil
}

// FindByRegistrationRound returns the grant of a registration in a round, or
// nil.
func (r *GrantRepository) FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.SeatGrant, error) {
	const query = `SELECT id, registration_id, round_id, seat_id, created_at
        FROM seat_grants WHERE registration_id = $1 AND round_id = $2`
	var grant models.SeatGrant
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &grant, query, registrationID, roundID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find seat grant: %w", err)
	}
	return &grant, nil
}

// FindByCandidateRound returns the candidate's grant in a round across all of
// their registrations, or nil.
func (r *GrantRepository) FindByCandidateRound(ctx context.Context, candidateID, roundID string) (*models.SeatGrant, error) {
	const query = `SELECT g.id, g.registration_id, g.round_id, g.seat_id, g.created_at
        FROM seat_grants g
        JOIN registrations reg ON reg.id = g.registration_id
        WHERE reg.candidate_id = $1 AND g.round_id = $2`
	var grant models.SeatGrant
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &grant, query, candidateID, roundID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find candidate seat grant: %w", err)
	}
	return &grant, nil
}

// ListByRound returns every grant of a round.
func (r *GrantRepository) ListByRound(ctx context.Context, roundID string) ([]models.SeatGrant, error) {
	const query = `SELECT id, registration_id, round_id, seat_id, created_at
        FROM seat_grants WHERE round_id = $1 ORDER BY created_at, id`
	var grants []models.SeatGrant
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &grants, query, roundID); err != nil {
		return nil, fmt.Errorf("list seat grants: %w", err)
	}
	return grants, nil
}

// DeleteByRound removes every grant of a round; only the reopen may call it.
func (r *GrantRepository) DeleteByRound(ctx context.Context, roundID string) error {
	const query = `DELETE FROM seat_grants WHERE round_id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, roundID); err != nil {
		return fmt.Errorf("delete seat grants: %w", err)
	}
	return nil
}
