package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/graph"
	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type seatStore interface {
	BulkCreate(ctx context.Context, n int, editionID, courseID, categoryID string) ([]models.Seat, error)
	FindByID(ctx context.Context, id string) (*models.Seat, error)
	FreeSeat(ctx context.Context, editionID, courseID, categoryID string) (*models.Seat, error)
	ListFree(ctx context.Context, editionID, courseID string) ([]models.Seat, error)
	CountFree(ctx context.Context, editionID, courseID, categoryID string) (int, error)
	Occupy(ctx context.Context, seatID, candidateID string) error
	Release(ctx context.Context, seatID string) error
	MoveCategory(ctx context.Context, seatID, originID, destinationID string) error
}

type categoryReader interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
}

// VacancyService owns the seats of an edition: bulk creation, occupancy and
// the waterfall reallocation of unclaimed quota seats.
type VacancyService struct {
	seats      seatStore
	categories categoryReader
	logger     *zap.Logger
}

// NewVacancyService constructs VacancyService.
func NewVacancyService(seats seatStore, categories categoryReader, logger *zap.Logger) *VacancyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VacancyService{seats: seats, categories: categories, logger: logger}
}

// CreateSeats bulk-creates n unoccupied seats whose primary and current
// category both equal categoryID.
func (s *VacancyService) CreateSeats(ctx context.Context, n int, editionID, courseID, categoryID string) ([]models.Seat, error) {
	if n <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "seat count must be positive")
	}
	if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	seats, err := s.seats.BulkCreate(ctx, n, editionID, courseID, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create seats")
	}
	return seats, nil
}

// FreeSeat returns one unoccupied seat currently in the exact category, or
// ErrNoVacancy.
func (s *VacancyService) FreeSeat(ctx context.Context, editionID, courseID, categoryID string) (*models.Seat, error) {
	seat, err := s.seats.FreeSeat(ctx, editionID, courseID, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find free seat")
	}
	if seat == nil {
		return nil, appErrors.Clone(appErrors.ErrNoVacancy, fmt.Sprintf("no free seat in category %s", categoryID))
	}
	return seat, nil
}

// Occupy grants the seat to a candidate.
func (s *VacancyService) Occupy(ctx context.Context, seatID, candidateID string) error {
	if err := s.seats.Occupy(ctx, seatID, candidateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNoVacancy, "seat already occupied")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to occupy seat")
	}
	return nil
}

// Release clears the occupant after a matriculation cancellation. The current
// category is not reverted.
func (s *VacancyService) Release(ctx context.Context, seatID string) error {
	if err := s.seats.Release(ctx, seatID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
	}
	return nil
}

// Advance trickles an unclaimed seat down its primary category's fallback
// cascade, appending one ledger entry per hop. The cascade stops as soon as
// hasDemand reports an eligible taker in the seat's new category, or when no
// further fallback exists. Occupied seats and seats whose primary category is
// the open pool never move. The returned seat reflects the final category.
func (s *VacancyService) Advance(ctx context.Context, seat *models.Seat, g *graph.ModalityGraph, hasDemand func(categoryID string) bool) (*models.Seat, error) {
	if seat.Occupied() {
		return seat, nil
	}
	primary, err := s.categories.FindByID(ctx, seat.PrimaryCategoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load primary category")
	}
	if primary.Open() {
		return seat, nil
	}
	current := seat.CurrentCategoryID
	for {
		next, ok := g.Next(seat.PrimaryCategoryID, current)
		if !ok {
			break
		}
		if err := s.seats.MoveCategory(ctx, seat.ID, current, next); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move seat")
		}
		s.logger.Info("seat advanced",
			zap.String("seat_id", seat.ID),
			zap.String("origin", current),
			zap.String("destination", next),
		)
		current = next
		if hasDemand != nil && hasDemand(current) {
			break
		}
	}
	seat.CurrentCategoryID = current
	return seat, nil
}
