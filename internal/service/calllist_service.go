package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	AdvisoryLock(ctx context.Context, key string) error
}

type callListStore interface {
	Create(ctx context.Context, list *models.CallList) error
	Find(ctx context.Context, roundID, courseID, categoryID string) (*models.CallList, error)
	ListByRound(ctx context.Context, roundID string) ([]models.CallList, error)
	ReplaceMembers(ctx context.Context, listID string, vacancy int, registrationIDs []string) error
	Entries(ctx context.Context, listID string) ([]models.CallListEntry, error)
}

type callableLister interface {
	ListCallable(ctx context.Context, editionID, courseID, categoryID string, limit int) ([]models.RegistrationDetail, error)
	LinkRound(ctx context.Context, registrationID, roundID string) error
	UnlinkRound(ctx context.Context, callListID string) error
}

type seatCounter interface {
	CountFree(ctx context.Context, editionID, courseID, categoryID string) (int, error)
}

type roundReader interface {
	FindByID(ctx context.Context, id string) (*models.Round, error)
}

type interestCounter interface {
	CountByCallList(ctx context.Context, callListID string) (int, error)
}

type ranker interface {
	Rank(ctx context.Context, editionID, courseID, categoryID string) (int, error)
}

type accountProvisioner interface {
	EnsureAccount(ctx context.Context, candidate *models.Candidate) error
}

type candidateReader interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
}

// CallListService builds and serves the ranked invite lists of a round.
// A build snapshots the free-seat count, multiplies it by the round's
// overbooking factor, and invites that many top-ranked registrations that
// were never summoned before and hold no seat grant.
type CallListService struct {
	tx            txRunner
	lists         callListStore
	registrations callableLister
	seats         seatCounter
	rounds        roundReader
	interests     interestCounter
	ranking       ranker
	accounts      accountProvisioner
	candidates    candidateReader
	logger        *zap.Logger
}

// NewCallListService constructs CallListService.
func NewCallListService(
	tx txRunner,
	lists callListStore,
	registrations callableLister,
	seats seatCounter,
	rounds roundReader,
	interests interestCounter,
	ranking ranker,
	accounts accountProvisioner,
	candidates candidateReader,
	logger *zap.Logger,
) *CallListService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallListService{
		tx:            tx,
		lists:         lists,
		registrations: registrations,
		seats:         seats,
		rounds:        rounds,
		interests:     interests,
		ranking:       ranking,
		accounts:      accounts,
		candidates:    candidates,
		logger:        logger,
	}
}

// Build assembles the call list for (round, course, category). Rebuilding is
// allowed only while nobody on the list has confirmed interest yet.
func (s *CallListService) Build(ctx context.Context, roundID, courseID, categoryID string) (*models.CallList, error) {
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

	var list *models.CallList
	var invited []models.RegistrationDetail
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tx.AdvisoryLock(ctx, "round:"+roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock round")
		}

		existing, err := s.lists.Find(ctx, roundID, courseID, categoryID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch call list")
		}
		if existing != nil {
			confirmed, err := s.interests.CountByCallList(ctx, existing.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count confirmations")
			}
			if confirmed > 0 {
				return appErrors.Clone(appErrors.ErrAlreadyExists,
					fmt.Sprintf("call list %s already has %d confirmation(s)", existing.ID, confirmed))
			}
			if err := s.registrations.UnlinkRound(ctx, existing.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release previous invitees")
			}
		}

		if _, err := s.ranking.Rank(ctx, round.EditionID, courseID, categoryID); err != nil {
			return err
		}

		vacancy, err := s.seats.CountFree(ctx, round.EditionID, courseID, categoryID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count free seats")
		}
		target := vacancy * round.Multiplier

		invited, err = s.registrations.ListCallable(ctx, round.EditionID, courseID, categoryID, target)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list callable registrations")
		}

		if existing == nil {
			existing = &models.CallList{
				RoundID:    roundID,
				CourseID:   courseID,
				CategoryID: categoryID,
				Vacancy:    vacancy,
				Multiplier: round.Multiplier,
			}
			if err := s.lists.Create(ctx, existing); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create call list")
			}
		}

		ids := make([]string, 0, len(invited))
		for _, reg := range invited {
			ids = append(ids, reg.ID)
		}
		if err := s.lists.ReplaceMembers(ctx, existing.ID, vacancy, ids); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write call list members")
		}
		for _, reg := range invited {
			if err := s.registrations.LinkRound(ctx, reg.ID, roundID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summon registration")
			}
		}
		list = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Credential provisioning is idempotent and deliberately outside the
	// build transaction: a provisioning hiccup must not void the list.
	for _, reg := range invited {
		candidate, err := s.candidates.FindByID(ctx, reg.CandidateID)
		if err != nil {
			s.logger.Warn("skipping credential provisioning",
				zap.String("candidate_id", reg.CandidateID), zap.Error(err))
			continue
		}
		if err := s.accounts.EnsureAccount(ctx, candidate); err != nil {
			s.logger.Warn("credential provisioning failed",
				zap.String("candidate_id", reg.CandidateID), zap.Error(err))
		}
	}

	s.logger.Info("call list built",
		zap.String("call_list_id", list.ID),
		zap.String("round_id", roundID),
		zap.String("course_id", courseID),
		zap.String("category_id", categoryID),
		zap.Int("vacancy", list.Vacancy),
		zap.Int("invited", len(invited)),
	)
	return list, nil
}

// ListByRound returns every call list of a round.
func (s *CallListService) ListByRound(ctx context.Context, roundID string) ([]models.CallList, error) {
	lists, err := s.lists.ListByRound(ctx, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list call lists")
	}
	return lists, nil
}

// Entries returns the ordered members of one call list.
func (s *CallListService) Entries(ctx context.Context, listID string) ([]models.CallListEntry, error) {
	entries, err := s.lists.Entries(ctx, listID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list call list entries")
	}
	return entries, nil
}
