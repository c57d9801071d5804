package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type scoreWriter interface {
	Upsert(ctx context.Context, record *models.ScoreRecord) error
}

type registrationResolver interface {
	FindRegistrationEdition(ctx context.Context, candidateID, courseID, editionID string) ([]string, error)
}

// ImportResult summarizes one bulk score import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

// ScoreService ingests the exam-score feed. Each row is keyed by candidate,
// course and edition and fans out to every registration the candidate holds
// for that course; ranks are reset and recomputed on the next ranking run.
type ScoreService struct {
	scores     scoreWriter
	candidates registrationResolver
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewScoreService constructs ScoreService.
func NewScoreService(scores scoreWriter, candidates registrationResolver, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{scores: scores, candidates: candidates, validator: validate, logger: logger}
}

// Import writes one ScoreRecord per addressed registration. Rows that match
// no registration are reported back, not failed on; a malformed row aborts
// the whole batch.
func (s *ScoreService) Import(ctx context.Context, rows []models.ScoreImportRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty score import")
	}
	for i, row := range rows {
		if err := s.validator.Struct(row); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("invalid score row %d", i+1))
		}
	}

	result := &ImportResult{}
	for _, row := range rows {
		registrationIDs, err := s.candidates.FindRegistrationEdition(ctx, row.CandidateID, row.CourseID, row.EditionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve registration")
		}
		if len(registrationIDs) == 0 {
			result.Skipped = append(result.Skipped, row.CandidateID)
			continue
		}
		for _, registrationID := range registrationIDs {
			if err := s.scores.Upsert(ctx, &models.ScoreRecord{
				RegistrationID: registrationID,
				Aggregate:      row.Aggregate,
				Writing:        row.Writing,
				Mathematics:    row.Mathematics,
				Languages:      row.Languages,
				Sciences:       row.Sciences,
				Humanities:     row.Humanities,
			}); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write score record")
			}
			result.Imported++
		}
	}

	s.logger.Info("scores imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}
