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

// CallListRepository handles persistence of call lists and their membership.
type CallListRepository struct {
	db *sqlx.DB
}

// NewCallListRepository constructs the repository.
func NewCallListRepository(db *sqlx.DB) *CallListRepository {
	return &CallListRepository{db: db}
}

// Create persists a call list header.
func (r *CallListRepository) Create(ctx context.Context, list *models.CallList) error {
	if list.ID == "" {
		list.ID = uuid.NewString()
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO call_lists (id, round_id, course_id, category_id, vacancy, multiplier, created_at)
        VALUES (:id, :round_id, :course_id, :category_id, :vacancy, :multiplier, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Ext(ctx, r.db), query, list); err != nil {
		return fmt.Errorf("create call list: %w", err)
	}
	return nil
}

// Find returns the call list for (round, course, category), or nil.
func (r *CallListRepository) Find(ctx context.Context, roundID, courseID, categoryID string) (*models.CallList, error) {
	const query = `SELECT id, round_id, course_id, category_id, vacancy, multiplier, created_at
        FROM call_lists WHERE round_id = $1 AND course_id = $2 AND category_id = $3`
	var list models.CallList
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &list, query, roundID, courseID, categoryID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find call list: %w", err)
	}
	return &list, nil
}

// ListByRound returns every call list of a round.
func (r *CallListRepository) ListByRound(ctx context.Context, roundID string) ([]models.CallList, error) {
	const query = `SELECT id, round_id, course_id, category_id, vacancy, multiplier, created_at
        FROM call_lists WHERE round_id = $1 ORDER BY course_id, category_id`
	var lists []models.CallList
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &lists, query, roundID); err != nil {
		return nil, fmt.Errorf("list call lists: %w", err)
	}
	return lists, nil
}

// ReplaceMembers clears and rewrites the ordered membership of a call list
// and refreshes the vacancy snapshot.
func (r *CallListRepository) ReplaceMembers(ctx context.Context, listID string, vacancy int, registrationIDs []string) error {
	ext := database.Ext(ctx, r.db)
	if _, err := ext.ExecContext(ctx, `DELETE FROM call_list_members WHERE call_list_id = $1`, listID); err != nil {
		return fmt.Errorf("clear call list members: %w", err)
	}
	if _, err := ext.ExecContext(ctx, `UPDATE call_lists SET vacancy = $2 WHERE id = $1`, listID, vacancy); err != nil {
		return fmt.Errorf("update call list vacancy: %w", err)
	}
	const insert = `INSERT INTO call_list_members (id, call_list_id, registration_id, position) VALUES ($1, $2, $3, $4)`
	for i, registrationID := range registrationIDs {
		if _, err := ext.ExecContext(ctx, insert, uuid.NewString(), listID, registrationID, i+1); err != nil {
			return fmt.Errorf("insert call list member: %w", err)
		}
	}
	return nil
}

// Entries returns the ordered membership of a call list with candidate data.
func (r *CallListRepository) Entries(ctx context.Context, listID string) ([]models.CallListEntry, error) {
	const query = `SELECT m.id, m.call_list_id, m.registration_id, m.position,
        reg.candidate_id, c.name AS candidate_name, s.rank
        FROM call_list_members m
        JOIN registrations reg ON reg.id = m.registration_id
        JOIN candidates c ON c.id = reg.candidate_id
        LEFT JOIN score_records s ON s.registration_id = m.registration_id
        WHERE m.call_list_id = $1
        ORDER BY m.position`
	var entries []models.CallListEntry
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &entries, query, listID); err != nil {
		return nil, fmt.Errorf("list call list entries: %w", err)
	}
	return entries, nil
}

// MemberPosition returns the 1-based position of a registration in a call
// list, or 0 when it is not a member.
func (r *CallListRepository) MemberPosition(ctx context.Context, listID, registrationID string) (int, error) {
	const query = `SELECT position FROM call_list_members WHERE call_list_id = $1 AND registration_id = $2`
	var position int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &position, query, listID, registrationID); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("find member position: %w", err)
	}
	return position, nil
}

// IsMember reports whether the registration belongs to any call list of the
// round.
func (r *CallListRepository) IsMember(ctx context.Context, roundID, registrationID string) (bool, error) {
	const query = `SELECT 1 FROM call_list_members m
        JOIN call_lists l ON l.id = m.call_list_id
        WHERE l.round_id = $1 AND m.registration_id = $2 LIMIT 1`
	var one int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &one, query, roundID, registrationID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check call list membership: %w", err)
	}
	return true, nil
}
