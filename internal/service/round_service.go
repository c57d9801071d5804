package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/cache"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type roundStore interface {
	Create(ctx context.Context, round *models.Round) error
	FindByID(ctx context.Context, id string) (*models.Round, error)
	FindOpen(ctx context.Context, editionID string, campusID *string) (*models.Round, error)
	ListByEdition(ctx context.Context, editionID string) ([]models.Round, error)
	LastSequence(ctx context.Context, editionID string, campusID *string) (int, error)
	MarkPublished(ctx context.Context, id string) error
}

type outcomeReader interface {
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.Outcome, error)
	ListByRound(ctx context.Context, roundID string) ([]models.Outcome, error)
}

type rankedListReader interface {
	Find(ctx context.Context, roundID, courseID, categoryID string) (*models.CallList, error)
	Entries(ctx context.Context, listID string) ([]models.CallListEntry, error)
}

// CreateRoundInput carries the parameters of a new round.
type CreateRoundInput struct {
	EditionID         string    `json:"edition_id" validate:"required"`
	CampusID          *string   `json:"campus_id"`
	Multiplier        int       `json:"multiplier" validate:"required,gte=1"`
	RequiresReview    bool      `json:"requires_review"`
	InterestOpensAt   time.Time `json:"interest_opens_at" validate:"required"`
	InterestClosesAt  time.Time `json:"interest_closes_at" validate:"required,gtfield=InterestOpensAt"`
	ReviewClosesAt    time.Time `json:"review_closes_at" validate:"required,gtfield=InterestClosesAt"`
	ConfirmationDueAt time.Time `json:"confirmation_due_at" validate:"required"`
}

// RoundService owns the round lifecycle up to the close: creation with
// sequence numbering, publication, and the per-round read surface.
type RoundService struct {
	rounds        roundStore
	outcomes      outcomeReader
	lists         rankedListReader
	validator     *validator.Validate
	cache         *cache.Store
	cacheTTL      time.Duration
	maxMultiplier int
	logger        *zap.Logger
}

// NewRoundService constructs RoundService.
func NewRoundService(
	rounds roundStore,
	outcomes outcomeReader,
	lists rankedListReader,
	validate *validator.Validate,
	store *cache.Store,
	cacheTTL time.Duration,
	maxMultiplier int,
	logger *zap.Logger,
) *RoundService {
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if maxMultiplier < 1 {
		maxMultiplier = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoundService{
		rounds:        rounds,
		outcomes:      outcomes,
		lists:         lists,
		validator:     validate,
		cache:         store,
		cacheTTL:      cacheTTL,
		maxMultiplier: maxMultiplier,
		logger:        logger,
	}
}

// Create opens the next round for (edition, campus). The initial call gets
// sequence 0 and must not overbook; waitlist calls may multiply vacancy up to
// the configured ceiling. Only one round per scope may be open.
func (s *RoundService) Create(ctx context.Context, input CreateRoundInput) (*models.Round, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
	}
	if input.Multiplier > s.maxMultiplier {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("multiplier exceeds the ceiling of %d", s.maxMultiplier))
	}

	open, err := s.rounds.FindOpen(ctx, input.EditionID, input.CampusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open round")
	}
	if open != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists,
			fmt.Sprintf("round %s is still open for this scope", open.ID))
	}

	last, err := s.rounds.LastSequence(ctx, input.EditionID, input.CampusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve sequence")
	}
	sequence := last + 1
	if sequence == 0 && input.Multiplier != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the initial call must use multiplier 1")
	}

	round := &models.Round{
		EditionID:         input.EditionID,
		CampusID:          input.CampusID,
		Sequence:          sequence,
		Multiplier:        input.Multiplier,
		Open:              true,
		RequiresReview:    input.RequiresReview,
		InterestOpensAt:   input.InterestOpensAt.UTC(),
		InterestClosesAt:  input.InterestClosesAt.UTC(),
		ReviewClosesAt:    input.ReviewClosesAt.UTC(),
		ConfirmationDueAt: input.ConfirmationDueAt.UTC(),
	}
	if err := s.rounds.Create(ctx, round); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create round")
	}

	s.logger.Info("round created",
		zap.String("round_id", round.ID),
		zap.String("edition_id", round.EditionID),
		zap.Int("sequence", round.Sequence),
		zap.Int("multiplier", round.Multiplier),
	)
	return round, nil
}

// Get returns one round.
func (s *RoundService) Get(ctx context.Context, id string) (*models.Round, error) {
	round, err := s.rounds.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch round")
	}
	return round, nil
}

// ListByEdition returns every round of an edition.
func (s *RoundService) ListByEdition(ctx context.Context, editionID string) ([]models.Round, error) {
	rounds, err := s.rounds.ListByEdition(ctx, editionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rounds")
	}
	return rounds, nil
}

// Publish makes the round's call lists visible to candidates.
func (s *RoundService) Publish(ctx context.Context, id string) error {
	round, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !round.Open {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "round is closed")
	}
	if round.Published {
		return appErrors.Clone(appErrors.ErrAlreadyExists, "round is already published")
	}
	if err := s.rounds.MarkPublished(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish round")
	}
	s.logger.Info("round published", zap.String("round_id", id))
	return nil
}

// OutcomeOf returns the settled result of a registration in a round.
func (s *RoundService) OutcomeOf(ctx context.Context, registrationID, roundID string) (*models.Outcome, error) {
	outcome, err := s.outcomes.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no outcome recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch outcome")
	}
	return outcome, nil
}

// Outcomes returns every outcome of a round.
func (s *RoundService) Outcomes(ctx context.Context, roundID string) ([]models.Outcome, error) {
	outcomes, err := s.outcomes.ListByRound(ctx, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outcomes")
	}
	return outcomes, nil
}

// RankedKey is the cache key for one ranked list.
func RankedKey(roundID, courseID, categoryID string) string {
	return fmt.Sprintf("ranked:%s:%s:%s", roundID, courseID, categoryID)
}

// RankedList returns the ordered call list entries for (round, course,
// category), read-through cached.
func (s *RoundService) RankedList(ctx context.Context, roundID, courseID, categoryID string) ([]models.CallListEntry, error) {
	key := RankedKey(roundID, courseID, categoryID)
	var cached []models.CallListEntry
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("ranked list cache read failed", zap.Error(err))
	}

	list, err := s.lists.Find(ctx, roundID, courseID, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch call list")
	}
	if list == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no call list for this round, course and category")
	}
	entries, err := s.lists.Entries(ctx, list.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entries")
	}

	if err := s.cache.SetJSON(ctx, key, entries, s.cacheTTL); err != nil {
		s.logger.Warn("ranked list cache write failed", zap.Error(err))
	}
	return entries, nil
}
