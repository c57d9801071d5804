package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type interestStore interface {
	Create(ctx context.Context, confirmation *models.InterestConfirmation) error
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.InterestConfirmation, error)
	FindByCandidateRound(ctx context.Context, candidateID, roundID string) (*models.InterestConfirmation, error)
	Delete(ctx context.Context, id string) error
}

type reviewShellStore interface {
	Create(ctx context.Context, review *models.EligibilityReview) error
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.EligibilityReview, error)
	DeleteUnfinalized(ctx context.Context, registrationID, roundID string) error
}

type detailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
}

type profileChecker interface {
	ProfileComplete(ctx context.Context, candidateID string) (bool, error)
}

// InterestService records and withdraws a candidate's intent to enroll. One
// confirmation per candidate per round; confirming a quota registration in a
// review-managed round opens the review shell the evaluators fill in.
type InterestService struct {
	tx            txRunner
	interests     interestStore
	reviews       reviewShellStore
	registrations detailReader
	rounds        roundReader
	profiles      profileChecker
	logger        *zap.Logger
}

// NewInterestService constructs InterestService.
func NewInterestService(
	tx txRunner,
	interests interestStore,
	reviews reviewShellStore,
	registrations detailReader,
	rounds roundReader,
	profiles profileChecker,
	logger *zap.Logger,
) *InterestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterestService{
		tx:            tx,
		interests:     interests,
		reviews:       reviews,
		registrations: registrations,
		rounds:        rounds,
		profiles:      profiles,
		logger:        logger,
	}
}

// Confirm records the candidate's interest for a summoned registration.
func (s *InterestService) Confirm(ctx context.Context, registrationID, roundID string) (*models.InterestConfirmation, error) {
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

	now := time.Now().UTC()
	if !round.Open {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "round is closed")
	}
	if registration.RoundID == nil || *registration.RoundID != roundID {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "registration was not summoned into this round")
	}
	if !round.InterestWindowOpen(now) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "interest window is not open")
	}

	complete, err := s.profiles.ProfileComplete(ctx, registration.CandidateID)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "candidate profile is incomplete")
	}

	existing, err := s.interests.FindByCandidateRound(ctx, registration.CandidateID, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch confirmation")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "candidate already confirmed interest this round")
	}

	confirmation := &models.InterestConfirmation{RegistrationID: registrationID, RoundID: roundID}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.interests.Create(ctx, confirmation); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create confirmation")
		}
		if round.RequiresReview && registration.CategoryKind != models.KindOpen {
			shell, err := s.reviews.FindByRegistrationRound(ctx, registrationID, roundID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch review")
			}
			if shell == nil {
				review := &models.EligibilityReview{RegistrationID: registrationID, RoundID: roundID}
				if err := s.reviews.Create(ctx, review); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open review")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("interest confirmed",
		zap.String("registration_id", registrationID),
		zap.String("round_id", roundID),
	)
	return confirmation, nil
}

// Cancel withdraws a confirmation while the review window is still open. The
// unfinalized review shell goes with it.
func (s *InterestService) Cancel(ctx context.Context, registrationID, roundID string) error {
	round, err := s.rounds.FindByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch round")
	}
	now := time.Now().UTC()
	if !round.Open || round.ReviewWindowClosed(now) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "confirmation can no longer be withdrawn")
	}

	confirmation, err := s.interests.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch confirmation")
	}
	if confirmation == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "no confirmation to withdraw")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.interests.Delete(ctx, confirmation.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete confirmation")
		}
		if err := s.reviews.DeleteUnfinalized(ctx, registrationID, roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review shell")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("interest withdrawn",
		zap.String("registration_id", registrationID),
		zap.String("round_id", roundID),
	)
	return nil
}
