package models

import "time"

// OutcomeStatus is the final per-round result code stamped by the close.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeDeferred   OutcomeStatus = "DEFERRED"
	OutcomeWaitlisted OutcomeStatus = "WAITLISTED"
	OutcomeDenied     OutcomeStatus = "DENIED"
)

// Outcome is the immutable per-registration-per-round result, write-once and
// only ever created by the round close.
type Outcome struct {
	ID             string        `db:"id" json:"id"`
	RegistrationID string        `db:"registration_id" json:"registration_id"`
	RoundID        string        `db:"round_id" json:"round_id"`
	Status         OutcomeStatus `db:"status" json:"status"`
	Reason         string        `db:"reason" json:"reason"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
