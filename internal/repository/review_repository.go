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

// ReviewRepository handles eligibility reviews, their sub-reviews and appeals.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create persists a review shell. Sub-reviews accumulate afterwards.
func (r *ReviewRepository) Create(ctx context.Context, review *models.EligibilityReview) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO eligibility_reviews (id, registration_id, round_id, eligible, finalized, reason, created_at)
        VALUES (:id, :registration_id, :round_id, :eligible, :finalized, :reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByRegistrationRound returns the review of a registration in a round, or
// nil.
func (r *ReviewRepository) FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.EligibilityReview, error) {
	const query = `SELECT id, registration_id, round_id, eligible, finalized, reason, created_at
        FROM eligibility_reviews WHERE registration_id = $1 AND round_id = $2`
	var review models.EligibilityReview
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &review, query, registrationID, roundID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// Finalize records the authoritative outcome of a review.
func (r *ReviewRepository) Finalize(ctx context.Context, id string, eligible bool, reason string) error {
	const query = `UPDATE eligibility_reviews SET eligible = $2, finalized = TRUE, reason = $3 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id, eligible, reason); err != nil {
		return fmt.Errorf("finalize review: %w", err)
	}
	return nil
}

// Move reassigns the review chain to another registration during the
// reconciliation pass.
func (r *ReviewRepository) Move(ctx context.Context, id, toRegistrationID string) error {
	const query = `UPDATE eligibility_reviews SET registration_id = $2 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, id, toRegistrationID); err != nil {
		return fmt.Errorf("move review: %w", err)
	}
	return nil
}

// DeleteUnfinalized removes a registration's review shell and its sub-reviews
// when interest is cancelled. Finalized reviews are left untouched.
func (r *ReviewRepository) DeleteUnfinalized(ctx context.Context, registrationID, roundID string) error {
	ext := database.Ext(ctx, r.db)
	const subQuery = `DELETE FROM sub_reviews WHERE review_id IN (
        SELECT id FROM eligibility_reviews WHERE registration_id = $1 AND round_id = $2 AND finalized = FALSE)`
	if _, err := ext.ExecContext(ctx, subQuery, registrationID, roundID); err != nil {
		return fmt.Errorf("delete sub-reviews: %w", err)
	}
	const query = `DELETE FROM eligibility_reviews
        WHERE registration_id = $1 AND round_id = $2 AND finalized = FALSE`
	if _, err := ext.ExecContext(ctx, query, registrationID, roundID); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// UpsertSubReview replaces a sub-review verdict for its type.
func (r *ReviewRepository) UpsertSubReview(ctx context.Context, sub *models.SubReview) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sub_reviews (id, review_id, review_type, approved, reason, created_at)
        VALUES (:id, :review_id, :review_type, :approved, :reason, :created_at)
        ON CONFLICT (review_id, review_type) DO UPDATE SET approved = EXCLUDED.approved, reason = EXCLUDED.reason`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, sub); err != nil {
		return fmt.Errorf("upsert sub-review: %w", err)
	}
	return nil
}

// SubReviews returns the sub-reviews of a review.
func (r *ReviewRepository) SubReviews(ctx context.Context, reviewID string) ([]models.SubReview, error) {
	const query = `SELECT id, review_id, review_type, approved, reason, created_at
        FROM sub_reviews WHERE review_id = $1 ORDER BY review_type`
	var subs []models.SubReview
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &subs, query, reviewID); err != nil {
		return nil, fmt.Errorf("list sub-reviews: %w", err)
	}
	return subs, nil
}

// CreateAppeal persists an appeal, failing on a duplicate for the review.
func (r *ReviewRepository) CreateAppeal(ctx context.Context, appeal *models.Appeal) error {
	if appeal.ID == "" {
		appeal.ID = uuid.NewString()
	}
	if appeal.CreatedAt.IsZero() {
		appeal.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO appeals (id, review_id, outcome, justification, created_at)
        VALUES (:id, :review_id, :outcome, :justification, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, appeal); err != nil {
		return fmt.Errorf("create appeal: %w", err)
	}
	return nil
}

// FindAppealByReview returns a review's appeal, or nil.
func (r *ReviewRepository) FindAppealByReview(ctx context.Context, reviewID string) (*models.Appeal, error) {
	const query = `SELECT id, review_id, outcome, justification, created_at FROM appeals WHERE review_id = $1`
	var appeal models.Appeal
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &appeal, query, reviewID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find appeal: %w", err)
	}
	return &appeal, nil
}

// Bundle returns a registration's review joined with its appeal.
func (r *ReviewRepository) Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error) {
	review, err := r.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		return models.ReviewBundle{}, err
	}
	bundle := models.ReviewBundle{Review: review}
	if review != nil {
		appeal, err := r.FindAppealByReview(ctx, review.ID)
		if err != nil {
			return models.ReviewBundle{}, err
		}
		bundle.Appeal = appeal
	}
	return bundle, nil
}

// SubReviewCount returns how many sub-reviews a registration's review in a
// round carries, and how many reference types outside the allowed set.
func (r *ReviewRepository) SubReviewCount(ctx context.Context, registrationID, roundID string, allowed []models.ReviewType) (total int, extraneous int, err error) {
	review, err := r.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		return 0, 0, err
	}
	if review == nil {
		return 0, 0, nil
	}
	subs, err := r.SubReviews(ctx, review.ID)
	if err != nil {
		return 0, 0, err
	}
	allowedSet := make(map[models.ReviewType]bool, len(allowed))
	for _, rt := range allowed {
		allowedSet[rt] = true
	}
	for _, sub := range subs {
		total++
		if !allowedSet[sub.ReviewType] {
			extraneous++
		}
	}
	return total, extraneous, nil
}
