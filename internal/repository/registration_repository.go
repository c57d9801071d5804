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

// RegistrationRepository handles persistence of registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create persists a registration.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO registrations (id, candidate_id, course_id, category_id, edition_id, round_id, created_at)
        VALUES (:id, :candidate_id, :course_id, :category_id, :edition_id, :round_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID returns a registration.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT id, candidate_id, course_id, category_id, edition_id, round_id, created_at
        FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindDetailByID returns a registration joined with candidate and category.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.candidate_id, r.course_id, r.category_id, r.edition_id, r.round_id, r.created_at,
        c.name AS candidate_name, c.birth_date AS candidate_birth, cat.kind AS category_kind, s.rank
        FROM registrations r
        JOIN candidates c ON c.id = r.candidate_id
        JOIN categories cat ON cat.id = r.category_id
        LEFT JOIN score_records s ON s.registration_id = r.id
        WHERE r.id = $1`
	var detail models.RegistrationDetail
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByCandidateEdition returns every registration a candidate holds in an
// edition, joined with category kind.
func (r *RegistrationRepository) ListByCandidateEdition(ctx context.Context, candidateID, editionID string) ([]models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.candidate_id, r.course_id, r.category_id, r.edition_id, r.round_id, r.created_at,
        c.name AS candidate_name, c.birth_date AS candidate_birth, cat.kind AS category_kind, s.rank
        FROM registrations r
        JOIN candidates c ON c.id = r.candidate_id
        JOIN categories cat ON cat.id = r.category_id
        LEFT JOIN score_records s ON s.registration_id = r.id
        WHERE r.candidate_id = $1 AND r.edition_id = $2
        ORDER BY r.created_at`
	var details []models.RegistrationDetail
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &details, query, candidateID, editionID); err != nil {
		return nil, fmt.Errorf("list candidate edition registrations: %w", err)
	}
	return details, nil
}

// ListByCandidateRound returns all of a candidate's registrations summoned
// into a round, joined with category kind.
func (r *RegistrationRepository) ListByCandidateRound(ctx context.Context, candidateID, roundID string) ([]models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.candidate_id, r.course_id, r.category_id, r.edition_id, r.round_id, r.created_at,
        c.name AS candidate_name, c.birth_date AS candidate_birth, cat.kind AS category_kind, s.rank
        FROM registrations r
        JOIN candidates c ON c.id = r.candidate_id
        JOIN categories cat ON cat.id = r.category_id
        LEFT JOIN score_records s ON s.registration_id = r.id
        WHERE r.candidate_id = $1 AND r.round_id = $2
        ORDER BY r.created_at`
	var details []models.RegistrationDetail
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &details, query, candidateID, roundID); err != nil {
		return nil, fmt.Errorf("list candidate round registrations: %w", err)
	}
	return details, nil
}

// ListCallable returns up to limit registrations for (edition, course,
// category) not yet linked to any round and whose candidate holds no seat
// grant in the edition, best rank first.
func (r *RegistrationRepository) ListCallable(ctx context.Context, editionID, courseID, categoryID string, limit int) ([]models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.candidate_id, r.course_id, r.category_id, r.edition_id, r.round_id, r.created_at,
        c.name AS candidate_name, c.birth_date AS candidate_birth, cat.kind AS category_kind, s.rank
        FROM registrations r
        JOIN candidates c ON c.id = r.candidate_id
        JOIN categories cat ON cat.id = r.category_id
        JOIN score_records s ON s.registration_id = r.id
        WHERE r.edition_id = $1 AND r.course_id = $2 AND r.category_id = $3
          AND r.round_id IS NULL
          AND s.rank IS NOT NULL
          AND NOT EXISTS (
            SELECT 1 FROM seat_grants g
            JOIN registrations gr ON gr.id = g.registration_id
            WHERE gr.candidate_id = r.candidate_id AND gr.edition_id = r.edition_id)
        ORDER BY s.rank ASC
        LIMIT $4`
	var details []models.RegistrationDetail
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &details, query, editionID, courseID, categoryID, limit); err != nil {
		return nil, fmt.Errorf("list callable registrations: %w", err)
	}
	return details, nil
}

// FindRegistrationEdition returns the IDs of a candidate's registrations for
// a course within an edition. A candidate may hold up to two (one quota, one
// open pool), so score imports fan out over the result.
func (r *RegistrationRepository) FindRegistrationEdition(ctx context.Context, candidateID, courseID, editionID string) ([]string, error) {
	const query = `SELECT id FROM registrations
        WHERE candidate_id = $1 AND course_id = $2 AND edition_id = $3`
	var ids []string
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &ids, query, candidateID, courseID, editionID); err != nil {
		return nil, fmt.Errorf("find candidate course registrations: %w", err)
	}
	return ids, nil
}

// LinkRound stamps the round a registration was summoned into.
func (r *RegistrationRepository) LinkRound(ctx context.Context, registrationID, roundID string) error {
	const query = `UPDATE registrations SET round_id = $2 WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, registrationID, roundID); err != nil {
		return fmt.Errorf("link registration to round: %w", err)
	}
	return nil
}

// UnlinkRound clears the summons link for every member of a call list; used
// when a list is rebuilt before any confirmation arrived.
func (r *RegistrationRepository) UnlinkRound(ctx context.Context, callListID string) error {
	const query = `UPDATE registrations SET round_id = NULL
        WHERE id IN (SELECT registration_id FROM call_list_members WHERE call_list_id = $1)`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, callListID); err != nil {
		return fmt.Errorf("unlink call list registrations: %w", err)
	}
	return nil
}
