package models

import "time"

// Registration is a candidate's bid for a (course, category, edition). A
// candidate may hold at most one registration per (category, edition) and may
// pair a quota registration with an open-pool one for the same course.
type Registration struct {
	ID          string    `db:"id" json:"id"`
	CandidateID string    `db:"candidate_id" json:"candidate_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	CategoryID  string    `db:"category_id" json:"category_id"`
	EditionID   string    `db:"edition_id" json:"edition_id"`
	RoundID     *string   `db:"round_id" json:"round_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Summoned reports whether the registration was pulled into a round.
func (r Registration) Summoned() bool {
	return r.RoundID != nil && *r.RoundID != ""
}

// RegistrationDetail enriches Registration with what ranking and closing need
// without extra round trips.
type RegistrationDetail struct {
	Registration
	CandidateName  string       `db:"candidate_name" json:"candidate_name"`
	CandidateBirth time.Time    `db:"candidate_birth" json:"candidate_birth"`
	CategoryKind   CategoryKind `db:"category_kind" json:"category_kind"`
	Rank           *int         `db:"rank" json:"rank,omitempty"`
}

// InterestConfirmation is a candidate's declared intent to enroll, at most one
// per (candidate, round).
type InterestConfirmation struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	RoundID        string    `db:"round_id" json:"round_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SeatGrant is the final seat claim, at most one per candidate per edition.
type SeatGrant struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	RoundID        string    `db:"round_id" json:"round_id"`
	SeatID         string    `db:"seat_id" json:"seat_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
