package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seletivo/admissions-api/internal/models"
)

func statusRound(reviewClosed, closed, published, requiresReview bool) models.Round {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	round := models.Round{
		Sequence:         1,
		Multiplier:       2,
		Open:             !closed,
		Published:        published,
		RequiresReview:   requiresReview,
		InterestOpensAt:  now.Add(-96 * time.Hour),
		InterestClosesAt: now.Add(-48 * time.Hour),
	}
	if reviewClosed {
		round.ReviewClosesAt = now.Add(-time.Hour)
	} else {
		round.ReviewClosesAt = now.Add(24 * time.Hour)
	}
	if closed {
		closedAt := now.Add(-time.Minute)
		round.ClosedAt = &closedAt
	}
	return round
}

func TestDerivePriorityLadder(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	review := &models.EligibilityReview{ID: "rev-1", Eligible: false, Finalized: true, Reason: "income above ceiling"}

	tests := []struct {
		name string
		in   StatusInput
		want models.StatusCode
	}{
		{
			name: "own grant wins over everything",
			in:   StatusInput{OwnGrant: true, OtherGrant: true, Round: statusRound(true, true, true, true), Now: now},
			want: models.StatusMatriculated,
		},
		{
			name: "grant on sibling registration",
			in:   StatusInput{OtherGrant: true, OtherKind: models.KindOpen, OnCallList: true, Round: statusRound(true, true, true, true), Now: now},
			want: models.StatusMatriculatedElsewhere,
		},
		{
			name: "never summoned",
			in:   StatusInput{Round: statusRound(true, true, true, true), Now: now},
			want: models.StatusNotSummoned,
		},
		{
			name: "confirmed and reviewed after window",
			in: StatusInput{
				OnCallList: true, Confirmed: true,
				Bundle: models.ReviewBundle{Review: review},
				Round:  statusRound(true, false, true, true), Now: now,
			},
			want: models.StatusReviewed,
		},
		{
			name: "confirmed but review pending",
			in: StatusInput{
				OnCallList: true, Confirmed: true,
				Round: statusRound(true, false, true, true), Now: now,
			},
			want: models.StatusAwaitingReview,
		},
		{
			name: "confirmed in round without review",
			in: StatusInput{
				OnCallList: true, Confirmed: true,
				Round: statusRound(true, false, true, false), Now: now,
			},
			want: models.StatusEligible,
		},
		{
			name: "sibling evaluated instead",
			in: StatusInput{
				OnCallList: true, OtherEligible: true,
				Round: statusRound(true, false, true, true), Now: now,
			},
			want: models.StatusNotDefinedOther,
		},
		{
			name: "no show after close",
			in: StatusInput{
				OnCallList: true,
				Round:      statusRound(true, true, true, true), Now: now,
			},
			want: models.StatusNoShow,
		},
		{
			name: "summoned while published",
			in: StatusInput{
				OnCallList: true,
				Round:      statusRound(false, false, true, true), Now: now,
			},
			want: models.StatusSummoned,
		},
		{
			name: "undefined before publication",
			in: StatusInput{
				OnCallList: true,
				Round:      statusRound(false, false, false, true), Now: now,
			},
			want: models.StatusUndefined,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Derive(tc.in).Code)
		})
	}
}

func TestDeriveReviewedCarriesDenialReason(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	in := StatusInput{
		OnCallList: true,
		Confirmed:  true,
		Bundle: models.ReviewBundle{
			Review: &models.EligibilityReview{ID: "rev-1", Eligible: false, Finalized: true, Reason: "income above ceiling"},
			Appeal: &models.Appeal{Outcome: models.AppealDenied, Justification: "ceiling confirmed on recheck"},
		},
		Round: statusRound(true, false, true, true),
		Now:   now,
	}
	status := Derive(in)
	assert.Equal(t, models.StatusReviewed, status.Code)
	assert.False(t, status.Eligible)
	assert.Equal(t, "ceiling confirmed on recheck", status.Reason)
}

func TestDeriveGrantedAppealFlipsEligibility(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	in := StatusInput{
		OnCallList: true,
		Confirmed:  true,
		Bundle: models.ReviewBundle{
			Review: &models.EligibilityReview{ID: "rev-1", Eligible: false, Finalized: true, Reason: "missing residence proof"},
			Appeal: &models.Appeal{Outcome: models.AppealGranted, Justification: "proof delivered in person"},
		},
		Round: statusRound(true, false, true, true),
		Now:   now,
	}
	status := Derive(in)
	assert.Equal(t, models.StatusReviewed, status.Code)
	assert.True(t, status.Eligible)
	assert.Empty(t, status.Reason)
}
