package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/repository"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type scoreStore interface {
	ListForRanking(ctx context.Context, editionID, courseID, categoryID string) ([]repository.ScoredRegistration, error)
	UpdateRank(ctx context.Context, scoreID string, rank int) error
}

// RankingService computes the deterministic ordinal rank of the registrations
// competing in a (edition, course, category) pool.
type RankingService struct {
	scores        scoreStore
	referenceDate time.Time
	logger        *zap.Logger
}

// NewRankingService constructs RankingService. referenceDate anchors the age
// tie-break; keeping it fixed makes reruns reproducible.
func NewRankingService(scores scoreStore, referenceDate time.Time, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{scores: scores, referenceDate: referenceDate, logger: logger}
}

// Rank orders the pool by the descending tie-break cascade (aggregate score,
// writing score, each subject in fixed priority order, then age with the
// older candidate first) and writes contiguous 1-based ranks back. Ties left
// after every key keep their stable input order.
func (s *RankingService) Rank(ctx context.Context, editionID, courseID, categoryID string) (int, error) {
	records, err := s.scores.ListForRanking(ctx, editionID, courseID, categoryID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score records")
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Aggregate != b.Aggregate {
			return a.Aggregate > b.Aggregate
		}
		if a.Writing != b.Writing {
			return a.Writing > b.Writing
		}
		as, bs := a.SubjectScores(), b.SubjectScores()
		for k := range as {
			if as[k] != bs[k] {
				return as[k] > bs[k]
			}
		}
		// older candidate (longer elapsed time to the reference date) first
		if !a.CandidateBirth.Equal(b.CandidateBirth) {
			return a.CandidateBirth.Before(b.CandidateBirth)
		}
		return false
	})

	for i, record := range records {
		rank := i + 1
		if record.Rank != nil && *record.Rank == rank {
			continue
		}
		if err := s.scores.UpdateRank(ctx, record.ID, rank); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write rank")
		}
	}

	s.logger.Info("pool ranked",
		zap.String("edition_id", editionID),
		zap.String("course_id", courseID),
		zap.String("category_id", categoryID),
		zap.Int("registrations", len(records)),
	)
	return len(records), nil
}

// ReferenceDate exposes the tie-break anchor for reporting.
func (s *RankingService) ReferenceDate() time.Time {
	return s.referenceDate
}
