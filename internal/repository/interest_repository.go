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

// InterestRepository handles persistence of interest confirmations.
type InterestRepository struct {
	db *sqlx.DB
}

// NewInterestRepository constructs the repository.
func NewInterestRepository(db *sqlx.DB) *InterestRepository {
	return &InterestRepository{db: db}
}

// Create persists a confirmation.
func (r *InterestRepository) Create(ctx context.Context, confirmation *models.InterestConfirmation) error {
	if confirmation.ID == "" {
		confirmation.ID = uuid.NewString()
	}
	if confirmation.CreatedAt.IsZero() {
		confirmation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO interest_confirmations (id, registration_id, round_id, created_at)
        VALUES (:id, :registration_id, :round_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, confirmation); err != nil {
		return fmt.Errorf("create confirmation: %w", err)
	}
	return nil
}

// FindByRegistrationRound returns the confirmation of a registration in a
// round, or nil.
func (r *InterestRepository) FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.InterestConfirmation, error) {
	const query = `SELECT id, registration_id, round_id, created_at
        FROM interest_confirmations WHERE registration_id = $1 AND round_id = $2`
	var confirmation models.InterestConfirmation
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &confirmation, query, registrationID, roundID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find confirmation: %w", err)
	}
	return &confirmation, nil
}

// FindByCandidateRound returns the candidate's confirmation in a round across
// all of their registrations, or nil.
func (r *InterestRepository) FindByCandidateRound(ctx context.Context, candidateID, roundID string) (*models.InterestConfirmation, error) {
	const query = `SELECT i.id, i.registration_id, i.round_id, i.created_at
        FROM interest_confirmations i
        JOIN registrations reg ON reg.id = i.registration_id
        WHERE reg.candidate_id = $1 AND i.round_id = $2`
	var confirmation models.InterestConfirmation
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &confirmation, query, candidateID, roundID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find candidate confirmation: %w", err)
	}
	return &confirmation, nil
}

// Delete removes a confirmation.
func (r *InterestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM interest_confirmations WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete confirmation: %w", err)
	}
	return nil
}

// CountByCallList counts confirmations held by members of a call list. A
// non-zero count pins the list against rebuilds.
func (r *InterestRepository) CountByCallList(ctx context.Context, callListID string) (int, error) {
	const query = `SELECT COUNT(*) FROM interest_confirmations i
        JOIN call_list_members m ON m.registration_id = i.registration_id
        JOIN call_lists l ON l.id = m.call_list_id AND l.round_id = i.round_id
        WHERE m.call_list_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &count, query, callListID); err != nil {
		return 0, fmt.Errorf("count call list confirmations: %w", err)
	}
	return count, nil
}

// ListConfirmedRegistrations returns the registration IDs confirmed in a
// round.
func (r *InterestRepository) ListConfirmedRegistrations(ctx context.Context, roundID string) ([]string, error) {
	const query = `SELECT registration_id FROM interest_confirmations WHERE round_id = $1`
	var ids []string
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &ids, query, roundID); err != nil {
		return nil, fmt.Errorf("list confirmed registrations: %w", err)
	}
	return ids, nil
}

// Move reassigns a confirmation to another registration; the reconciliation
// pass uses it to shift a candidate from quota to open pool.
func (r *InterestRepository) Move(ctx context.Context, id, toRegistrationID string) error {
	const query = `UPDATE interest_confirmations SET registration_id = $2 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id, toRegistrationID); err != nil {
		return fmt.Errorf("move confirmation: %w", err)
	}
	return nil
}
