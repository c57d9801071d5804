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

// SeatRepository owns the seats table and its append-only transition ledger.
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository constructs the repository.
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

// BulkCreate inserts n unoccupied seats whose primary and current category
// both equal categoryID.
func (r *SeatRepository) BulkCreate(ctx context.Context, n int, editionID, courseID, categoryID string) ([]models.Seat, error) {
	const query = `INSERT INTO seats (id, edition_id, course_id, primary_category_id, current_category_id)
        VALUES (:id, :edition_id, :course_id, :primary_category_id, :current_category_id)`
	ext := database.Ext(ctx, r.db)
	seats := make([]models.Seat, 0, n)
	for i := 0; i < n; i++ {
		seat := models.Seat{
			ID:                uuid.NewString(),
			EditionID:         editionID,
			CourseID:          courseID,
			PrimaryCategoryID: categoryID,
			CurrentCategoryID: categoryID,
		}
		if _, err := sqlx.NamedExecContext(ctx, ext, query, seat); err != nil {
			return nil, fmt.Errorf("create seat: %w", err)
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

// FindByID returns a seat.
func (r *SeatRepository) FindByID(ctx context.Context, id string) (*models.Seat, error) {
	const query = `SELECT id, edition_id, course_id, primary_category_id, current_category_id, occupant_id
        FROM seats WHERE id = $1`
	var seat models.Seat
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &seat, query, id); err != nil {
		return nil, err
	}
	return &seat, nil
}

// FreeSeat returns one unoccupied seat whose current category matches, or nil
// when none is free. The row is locked until the surrounding transaction ends.
func (r *SeatRepository) FreeSeat(ctx context.Context, editionID, courseID, categoryID string) (*models.Seat, error) {
	const query = `SELECT id, edition_id, course_id, primary_category_id, current_category_id, occupant_id
        FROM seats
        WHERE edition_id = $1 AND course_id = $2 AND current_category_id = $3 AND occupant_id IS NULL
        ORDER BY id LIMIT 1 FOR UPDATE`
	var seat models.Seat
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &seat, query, editionID, courseID, categoryID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find free seat: %w", err)
	}
	return &seat, nil
}

// ListFree returns every unoccupied seat of an edition/course, ordered so the
// close pass processes them deterministically.
func (r *SeatRepository) ListFree(ctx context.Context, editionID, courseID string) ([]models.Seat, error) {
	const query = `SELECT id, edition_id, course_id, primary_category_id, current_category_id, occupant_id
        FROM seats
        WHERE edition_id = $1 AND course_id = $2 AND occupant_id IS NULL
        ORDER BY id FOR UPDATE`
	var seats []models.Seat
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &seats, query, editionID, courseID); err != nil {
		return nil, fmt.Errorf("list free seats: %w", err)
	}
	return seats, nil
}

// CountFree returns the number of unoccupied seats in a current category.
func (r *SeatRepository) CountFree(ctx context.Context, editionID, courseID, categoryID string) (int, error) {
	const query = `SELECT COUNT(*) FROM seats
        WHERE edition_id = $1 AND course_id = $2 AND current_category_id = $3 AND occupant_id IS NULL`
	var count int
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &count, query, editionID, courseID, categoryID); err != nil {
		return 0, fmt.Errorf("count free seats: %w", err)
	}
	return count, nil
}

// Occupy sets the occupant of a seat. Fails when the seat is already taken.
func (r *SeatRepository) Occupy(ctx context.Context, seatID, candidateID string) error {
	const query = `UPDATE seats SET occupant_id = $2 WHERE id = $1 AND occupant_id IS NULL`
	res, err := database.Ext(ctx, r.db).ExecContext(ctx, query, seatID, candidateID)
	if err != nil {
		return fmt.Errorf("occupy seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("occupy seat: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Release clears the occupant. The current category is not reverted.
func (r *SeatRepository) Release(ctx context.Context, seatID string) error {
	const query = `UPDATE seats SET occupant_id = NULL WHERE id = $1`
	if _, err := database.Ext(ctx, r.db).ExecContext(ctx, query, seatID); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// MoveCategory updates the seat's current category and appends a transition
// ledger entry.
func (r *SeatRepository) MoveCategory(ctx context.Context, seatID, originID, destinationID string) error {
	ext := database.Ext(ctx, r.db)
	const update = `UPDATE seats SET current_category_id = $2 WHERE id = $1`
	if _, err := ext.ExecContext(ctx, update, seatID, destinationID); err != nil {
		return fmt.Errorf("move seat: %w", err)
	}
	transition := models.SeatTransition{
		ID:            uuid.NewString(),
		SeatID:        seatID,
		OriginID:      originID,
		DestinationID: destinationID,
		CreatedAt:     time.Now().UTC(),
	}
	const insert = `INSERT INTO seat_transitions (id, seat_id, origin_category_id, destination_category_id, created_at)
        VALUES (:id, :seat_id, :origin_category_id, :destination_category_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, insert, transition); err != nil {
		return fmt.Errorf("record seat transition: %w", err)
	}
	return nil
}

// Transitions returns the ledger of a seat, oldest first.
func (r *SeatRepository) Transitions(ctx context.Context, seatID string) ([]models.SeatTransition, error) {
	const query = `SELECT id, seat_id, origin_category_id, destination_category_id, created_at
        FROM seat_transitions WHERE seat_id = $1 ORDER BY created_at`
	var transitions []models.SeatTransition
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &transitions, query, seatID); err != nil {
		return nil, fmt.Errorf("list seat transitions: %w", err)
	}
	return transitions, nil
}
