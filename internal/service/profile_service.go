package service

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

// ProfileService answers the profile-completeness question that gates
// interest confirmation. Personal-data capture lives upstream; completeness
// here means the fields allocation itself depends on are present.
type ProfileService struct {
	candidates candidateReader
}

// NewProfileService constructs ProfileService.
func NewProfileService(candidates candidateReader) *ProfileService {
	return &ProfileService{candidates: candidates}
}

// ProfileComplete reports whether the candidate's record carries everything
// ranking and provisioning need.
func (s *ProfileService) ProfileComplete(ctx context.Context, candidateID string) (bool, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch candidate")
	}
	return candidate.Name != "" && candidate.Email != "" && !candidate.BirthDate.IsZero(), nil
}
