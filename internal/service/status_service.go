package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/cache"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type statusRegistrationReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	ListByCandidateRound(ctx context.Context, candidateID, roundID string) ([]models.RegistrationDetail, error)
}

type statusGrantReader interface {
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.SeatGrant, error)
	FindByCandidateRound(ctx context.Context, candidateID, roundID string) (*models.SeatGrant, error)
}

type membershipReader interface {
	IsMember(ctx context.Context, roundID, registrationID string) (bool, error)
}

type statusInterestReader interface {
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.InterestConfirmation, error)
}

type bundleReader interface {
	Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error)
}

// StatusInput is everything status derivation looks at. Derive is pure over
// this snapshot so it can run concurrently with an in-progress close.
type StatusInput struct {
	Registration  models.RegistrationDetail
	Round         models.Round
	OwnGrant      bool
	OtherGrant    bool
	OtherKind     models.CategoryKind
	OnCallList    bool
	Confirmed     bool
	Bundle        models.ReviewBundle
	OtherEligible bool
	Now           time.Time
}

// StatusService derives the human-facing status of a registration within a
// round. Derivation never mutates; the cached answer is only stable once any
// concurrent close has committed.
type StatusService struct {
	registrations statusRegistrationReader
	grants        statusGrantReader
	lists         membershipReader
	interests     statusInterestReader
	reviews       bundleReader
	rounds        roundReader
	cache         *cache.Store
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewStatusService constructs StatusService.
func NewStatusService(
	registrations statusRegistrationReader,
	grants statusGrantReader,
	lists membershipReader,
	interests statusInterestReader,
	reviews bundleReader,
	rounds roundReader,
	store *cache.Store,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *StatusService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{
		registrations: registrations,
		grants:        grants,
		lists:         lists,
		interests:     interests,
		reviews:       reviews,
		rounds:        rounds,
		cache:         store,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

// StatusKey is the cache key for one (registration, round) status.
func StatusKey(roundID, registrationID string) string {
	return fmt.Sprintf("status:%s:%s", roundID, registrationID)
}

// StatusOf assembles the snapshot and derives the status, read-through cached.
func (s *StatusService) StatusOf(ctx context.Context, registrationID, roundID string) (models.Status, error) {
	key := StatusKey(roundID, registrationID)
	var cached models.Status
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("status cache read failed", zap.Error(err))
	}

	in, err := s.snapshot(ctx, registrationID, roundID)
	if err != nil {
		return models.Status{}, err
	}
	status := Derive(*in)

	if err := s.cache.SetJSON(ctx, key, status, s.cacheTTL); err != nil {
		s.logger.Warn("status cache write failed", zap.Error(err))
	}
	return status, nil
}

func (s *StatusService) snapshot(ctx context.Context, registrationID, roundID string) (*StatusInput, error) {
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

	in := &StatusInput{Registration: *registration, Round: *round, Now: time.Now().UTC()}

	grant, err := s.grants.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch seat grant")
	}
	in.OwnGrant = grant != nil
	if !in.OwnGrant {
		grant, err := s.grants.FindByCandidateRound(ctx, registration.CandidateID, roundID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch candidate grant")
		}
		if grant != nil && grant.RegistrationID != registrationID {
			in.OtherGrant = true
			if other, err := s.registrations.FindDetailByID(ctx, grant.RegistrationID); err == nil {
				in.OtherKind = other.CategoryKind
			}
		}
	}

	in.OnCallList, err = s.lists.IsMember(ctx, roundID, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check call list membership")
	}

	confirmation, err := s.interests.FindByRegistrationRound(ctx, registrationID, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch confirmation")
	}
	in.Confirmed = confirmation != nil

	in.Bundle, err = s.reviews.Bundle(ctx, registrationID, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch review")
	}

	if !in.Confirmed {
		siblings, err := s.registrations.ListByCandidateRound(ctx, registration.CandidateID, roundID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sibling registrations")
		}
		for _, sibling := range siblings {
			if sibling.ID == registrationID {
				continue
			}
			bundle, err := s.reviews.Bundle(ctx, sibling.ID, roundID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch sibling review")
			}
			if bundle.Review != nil && bundle.FinalEligible() {
				in.OtherEligible = true
				break
			}
		}
	}
	return in, nil
}

// Derive walks the priority ladder, first match wins.
func Derive(in StatusInput) models.Status {
	switch {
	case in.OwnGrant:
		return models.Status{Code: models.StatusMatriculated}
	case in.OtherGrant:
		return models.Status{Code: models.StatusMatriculatedElsewhere, OtherKind: in.OtherKind}
	case !in.OnCallList:
		return models.Status{Code: models.StatusNotSummoned}
	}

	if in.Round.ReviewWindowClosed(in.Now) {
		if in.Confirmed {
			if !in.Round.RequiresReview {
				return models.Status{Code: models.StatusEligible}
			}
			if in.Bundle.Review == nil {
				return models.Status{Code: models.StatusAwaitingReview}
			}
			status := models.Status{Code: models.StatusReviewed, Eligible: in.Bundle.FinalEligible()}
			if !status.Eligible {
				status.Reason = in.Bundle.DenialReason()
			}
			return status
		}
		if in.OtherEligible {
			return models.Status{Code: models.StatusNotDefinedOther, Reason: "evaluated under other category"}
		}
		if in.Round.ClosedAt != nil {
			return models.Status{Code: models.StatusNoShow}
		}
	}

	if in.Round.Published {
		return models.Status{Code: models.StatusSummoned}
	}
	return models.Status{Code: models.StatusUndefined}
}
