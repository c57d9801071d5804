package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type reviewRecordStore interface {
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.EligibilityReview, error)
	UpsertSubReview(ctx context.Context, sub *models.SubReview) error
	SubReviews(ctx context.Context, reviewID string) ([]models.SubReview, error)
	Finalize(ctx context.Context, id string, eligible bool, reason string) error
	CreateAppeal(ctx context.Context, appeal *models.Appeal) error
	FindAppealByReview(ctx context.Context, reviewID string) (*models.Appeal, error)
	Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error)
}

type reviewTypesReader interface {
	ReviewTypes(ctx context.Context, categoryID string) ([]models.ReviewType, error)
}

// SubReviewInput is one per-type verdict.
type SubReviewInput struct {
	ReviewType models.ReviewType `json:"review_type" validate:"required"`
	Approved   bool              `json:"approved"`
	Reason     string            `json:"reason"`
}

// AppealInput contests a finalized negative review.
type AppealInput struct {
	Outcome       models.AppealOutcome `json:"outcome" validate:"required,oneof=GRANTED DENIED"`
	Justification string               `json:"justification" validate:"required"`
}

// ReviewService records per-type eligibility verdicts and appeals. A review
// finalizes itself the moment every required type has a verdict: eligible
// only when all approve, with the first negative reason carried over.
type ReviewService struct {
	tx            txRunner
	reviews       reviewRecordStore
	categories    reviewTypesReader
	registrations detailReader
	rounds        roundReader
	logger        *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(
	tx txRunner,
	reviews reviewRecordStore,
	categories reviewTypesReader,
	registrations detailReader,
	rounds roundReader,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		tx:            tx,
		reviews:       reviews,
		categories:    categories,
		registrations: registrations,
		rounds:        rounds,
		logger:        logger,
	}
}

// RecordSubReview upserts one verdict and finalizes the review when the last
// required type lands.
func (s *ReviewService) RecordSubReview(ctx context.Context, registrationID, roundID string, input SubReviewInput) (*models.EligibilityReview, error) {
	registration, err := s.registrations.FindDetailByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch registration")
	}
	round, err := s.rounds.FindByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch round")
	}
	if !round.Open {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "round is closed")
	}

	required, err := s.categories.ReviewTypes(ctx, registration.CategoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load required review types")
	}
	if !containsType(required, input.ReviewType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("review type %s is not required for this category", input.ReviewType))
	}

	var review *models.EligibilityReview
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		review, err = s.reviews.FindByRegistrationRound(ctx, registrationID, roundID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch review")
		}
		if review == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "no review open for this registration")
		}
		if err := s.reviews.UpsertSubReview(ctx, &models.SubReview{
			ReviewID:   review.ID,
			ReviewType: input.ReviewType,
			Approved:   input.Approved,
			Reason:     input.Reason,
		}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record verdict")
		}

		subs, err := s.reviews.SubReviews(ctx, review.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verdicts")
		}
		if !complete(required, subs) {
			return nil
		}
		eligible := true
		reason := ""
		// Verdicts in required-type order so the carried reason is stable.
		for _, rt := range required {
			for _, sub := range subs {
				if sub.ReviewType != rt || sub.Approved {
					continue
				}
				eligible = false
				if reason == "" {
					reason = sub.Reason
				}
			}
		}
		if err := s.reviews.Finalize(ctx, review.ID, eligible, reason); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize review")
		}
		review.Eligible = eligible
		review.Finalized = true
		review.Reason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sub-review recorded",
		zap.String("registration_id", registrationID),
		zap.String("round_id", roundID),
		zap.String("review_type", string(input.ReviewType)),
		zap.Bool("finalized", review.Finalized),
	)
	return review, nil
}

// RecordAppeal attaches the single, immutable appeal to a finalized negative
// review.
func (s *ReviewService) RecordAppeal(ctx context.Context, registrationID, roundID string, input AppealInput) (*models.Appeal, error) {
	review, err := s.reviews.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch review")
	}
	if review == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no review to appeal")
	}
	if !review.Finalized || review.Eligible {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only a finalized negative review can be appealed")
	}
	existing, err := s.reviews.FindAppealByReview(ctx, review.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch appeal")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "review already has an appeal")
	}

	appeal := &models.Appeal{
		ReviewID:      review.ID,
		Outcome:       input.Outcome,
		Justification: input.Justification,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.reviews.CreateAppeal(ctx, appeal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record appeal")
	}

	s.logger.Info("appeal recorded",
		zap.String("registration_id", registrationID),
		zap.String("round_id", roundID),
		zap.String("outcome", string(input.Outcome)),
	)
	return appeal, nil
}

// Bundle exposes a registration's review joined with its appeal.
func (s *ReviewService) Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error) {
	bundle, err := s.reviews.Bundle(ctx, registrationID, roundID)
	if err != nil {
		return models.ReviewBundle{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch review")
	}
	return bundle, nil
}

func containsType(types []models.ReviewType, t models.ReviewType) bool {
	for _, rt := range types {
		if rt == t {
			return true
		}
	}
	return false
}

func complete(required []models.ReviewType, subs []models.SubReview) bool {
	recorded := make(map[models.ReviewType]bool, len(subs))
	for _, sub := range subs {
		recorded[sub.ReviewType] = true
	}
	for _, rt := range required {
		if !recorded[rt] {
			return false
		}
	}
	return true
}
