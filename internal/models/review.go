package models

import "time"

// EligibilityReview is the document-eligibility outcome of one confirmed
// registration in a round. The final outcome only becomes authoritative once
// every required sub-review type of the category has been recorded.
type EligibilityReview struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	RoundID        string    `db:"round_id" json:"round_id"`
	Eligible       bool      `db:"eligible" json:"eligible"`
	Finalized      bool      `db:"finalized" json:"finalized"`
	Reason         string    `db:"reason" json:"reason"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SubReview is one per-type verdict inside an eligibility review.
type SubReview struct {
	ID         string     `db:"id" json:"id"`
	ReviewID   string     `db:"review_id" json:"review_id"`
	ReviewType ReviewType `db:"review_type" json:"review_type"`
	Approved   bool       `db:"approved" json:"approved"`
	Reason     string     `db:"reason" json:"reason"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// AppealOutcome is the decision on an appeal.
type AppealOutcome string

// Appeal decisions.
const (
	AppealGranted AppealOutcome = "GRANTED"
	AppealDenied  AppealOutcome = "DENIED"
)

// Appeal contests a negative review, at most one per review, immutable once
// decided.
type Appeal struct {
	ID            string        `db:"id" json:"id"`
	ReviewID      string        `db:"review_id" json:"review_id"`
	Outcome       AppealOutcome `db:"outcome" json:"outcome"`
	Justification string        `db:"justification" json:"justification"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// ReviewBundle carries a review together with its appeal, if any. The close
// pass derives final eligibility from the pair.
type ReviewBundle struct {
	Review *EligibilityReview
	Appeal *Appeal
}

// FinalEligible derives the definitive eligibility: a granted appeal overturns
// a negative review; no review at all means ineligible.
func (b ReviewBundle) FinalEligible() bool {
	if b.Review == nil {
		return false
	}
	if b.Review.Eligible {
		return true
	}
	return b.Appeal != nil && b.Appeal.Outcome == AppealGranted
}

// DenialReason returns the reason to record on a Denied outcome: the appeal's
// stated justification when one was decided, otherwise the review's reason.
func (b ReviewBundle) DenialReason() string {
	if b.Appeal != nil {
		return b.Appeal.Justification
	}
	if b.Review != nil {
		return b.Review.Reason
	}
	return "documentation not submitted"
}
