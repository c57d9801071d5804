package models

import "time"

// Seat is one admission slot for (edition, course, category). The primary
// category never changes after creation; the current category moves along the
// configured fallback cascade when the seat goes unclaimed.
type Seat struct {
	ID                string  `db:"id" json:"id"`
	EditionID         string  `db:"edition_id" json:"edition_id"`
	CourseID          string  `db:"course_id" json:"course_id"`
	PrimaryCategoryID string  `db:"primary_category_id" json:"primary_category_id"`
	CurrentCategoryID string  `db:"current_category_id" json:"current_category_id"`
	OccupantID        *string `db:"occupant_id" json:"occupant_id,omitempty"`
}

// Occupied reports whether the seat has been granted to a candidate.
func (s Seat) Occupied() bool {
	return s.OccupantID != nil && *s.OccupantID != ""
}

// SeatTransition is one append-only ledger entry of a seat's category change.
type SeatTransition struct {
	ID            string    `db:"id" json:"id"`
	SeatID        string    `db:"seat_id" json:"seat_id"`
	OriginID      string    `db:"origin_category_id" json:"origin_category_id"`
	DestinationID string    `db:"destination_category_id" json:"destination_category_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
