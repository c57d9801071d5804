package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/database"
)

// CandidateRepository handles persistence of candidates.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs the repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Create persists a candidate.
func (r *CandidateRepository) Create(ctx context.Context, candidate *models.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	const query = `INSERT INTO candidates (id, name, email, birth_date, user_id)
        VALUES (:id, :name, :email, :birth_date, :user_id)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, candidate); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

// FindByID returns a candidate.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	const query = `SELECT id, name, email, birth_date, user_id FROM candidates WHERE id = $1`
	var candidate models.Candidate
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &candidate, query, id); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// AttachUser links a provisioned login credential to the candidate.
func (r *CandidateRepository) AttachUser(ctx context.Context, candidateID, userID string) error {
	const query = `UPDATE candidates SET user_id = $2 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, candidateID, userID); err != nil {
		return fmt.Errorf("attach user to candidate: %w", err)
	}
	return nil
}
