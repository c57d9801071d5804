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

// ScoreRepository handles persistence of exam score records.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs the repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// Upsert writes a score record for a registration, replacing any previous
// import for it. Rank is reset; the ranking run recomputes it.
func (r *ScoreRepository) Upsert(ctx context.Context, record *models.ScoreRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO score_records (id, registration_id, aggregate, writing, mathematics, languages, sciences, humanities, rank)
        VALUES (:id, :registration_id, :aggregate, :writing, :mathematics, :languages, :sciences, :humanities, NULL)
        ON CONFLICT (registration_id) DO UPDATE SET
            aggregate = EXCLUDED.aggregate,
            writing = EXCLUDED.writing,
            mathematics = EXCLUDED.mathematics,
            languages = EXCLUDED.languages,
            sciences = EXCLUDED.sciences,
            humanities = EXCLUDED.humanities,
            rank = NULL`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, record); err != nil {
		return fmt.Errorf("upsert score record: %w", err)
	}
	return nil
}

// ScoredRegistration pairs a score record with the birth date the age
// tie-break needs.
type ScoredRegistration struct {
	models.ScoreRecord
	CandidateBirth time.Time `db:"candidate_birth"`
}

// ListForRanking returns every score record of (edition, course, category) in
// import order, joined with candidate birth dates.
func (r *ScoreRepository) ListForRanking(ctx context.Context, editionID, courseID, categoryID string) ([]ScoredRegistration, error) {
	const query = `SELECT s.id, s.registration_id, s.aggregate, s.writing, s.mathematics, s.languages, s.sciences, s.humanities, s.rank,
        c.birth_date AS candidate_birth
        FROM score_records s
        JOIN registrations r ON r.id = s.registration_id
        JOIN candidates c ON c.id = r.candidate_id
        WHERE r.edition_id = $1 AND r.course_id = $2 AND r.category_id = $3
        ORDER BY r.created_at, r.id`
	var records []ScoredRegistration
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &records, query, editionID, courseID, categoryID); err != nil {
		return nil, fmt.Errorf("list scores for ranking: %w", err)
	}
	return records, nil
}

// UpdateRank writes a computed rank back onto a score record.
func (r *ScoreRepository) UpdateRank(ctx context.Context, scoreID string, rank int) error {
	const query = `UPDATE score_records SET rank = $2 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, scoreID, rank); err != nil {
		return fmt.Errorf("update rank: %w", err)
	}
	return nil
}

// FindByRegistration returns the score record of a registration.
func (r *ScoreRepository) FindByRegistration(ctx context.Context, registrationID string) (*models.ScoreRecord, error) {
	const query = `SELECT id, registration_id, aggregate, writing, mathematics, languages, sciences, humanities, rank
        FROM score_records WHERE registration_id = $1`
	var record models.ScoreRecord
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &record, query, registrationID); err != nil {
		return nil, err
	}
	return &record, nil
}
