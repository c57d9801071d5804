package models

import "time"

// Round is one call cycle of an edition. Sequence 0 is the initial call and
// must use multiplier 1; later sequences are waitlist calls and may overbook.
type Round struct {
	ID                 string     `db:"id" json:"id"`
	EditionID          string     `db:"edition_id" json:"edition_id"`
	CampusID           *string    `db:"campus_id" json:"campus_id,omitempty"`
	Sequence           int        `db:"sequence" json:"sequence"`
	Multiplier         int        `db:"multiplier" json:"multiplier"`
	Open               bool       `db:"open" json:"open"`
	Published          bool       `db:"published" json:"published"`
	RequiresReview     bool       `db:"requires_review" json:"requires_review"`
	InterestOpensAt    time.Time  `db:"interest_opens_at" json:"interest_opens_at"`
	InterestClosesAt   time.Time  `db:"interest_closes_at" json:"interest_closes_at"`
	ReviewClosesAt     time.Time  `db:"review_closes_at" json:"review_closes_at"`
	ConfirmationDueAt  time.Time  `db:"confirmation_due_at" json:"confirmation_due_at"`
	ClosedAt           *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// Waitlist reports whether the round is a waitlist call (sequence > 0).
func (r Round) Waitlist() bool {
	return r.Sequence > 0
}

// InterestWindowOpen reports whether interest can still be confirmed at now.
func (r Round) InterestWindowOpen(now time.Time) bool {
	return !now.Before(r.InterestOpensAt) && now.Before(r.InterestClosesAt)
}

// ReviewWindowClosed reports whether the document-review window has elapsed.
func (r Round) ReviewWindowClosed(now time.Time) bool {
	return !now.Before(r.ReviewClosesAt)
}

// CallList is the ranked invite list for (round, course, category). Vacancy is
// the snapshot taken at build time; the close recomputes live counts.
type CallList struct {
	ID         string    `db:"id" json:"id"`
	RoundID    string    `db:"round_id" json:"round_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	CategoryID string    `db:"category_id" json:"category_id"`
	Vacancy    int       `db:"vacancy" json:"vacancy"`
	Multiplier int       `db:"multiplier" json:"multiplier"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CallListMember is one ordered entry of a call list. Position is 1-based and
// follows rank order at build time.
type CallListMember struct {
	ID             string `db:"id" json:"id"`
	CallListID     string `db:"call_list_id" json:"call_list_id"`
	RegistrationID string `db:"registration_id" json:"registration_id"`
	Position       int    `db:"position" json:"position"`
}

// CallListEntry joins a member with the candidate data exports and the close
// pass consume.
type CallListEntry struct {
	CallListMember
	CandidateID   string `db:"candidate_id" json:"candidate_id"`
	CandidateName string `db:"candidate_name" json:"candidate_name"`
	Rank          *int   `db:"rank" json:"rank,omitempty"`
}
