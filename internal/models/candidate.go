package models

import "time"

// Candidate is the person behind one or more registrations. Personal-data
// capture happens upstream; the engine only reads what ranking and
// provisioning need.
type Candidate struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
}
