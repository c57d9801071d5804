package models

// StatusCode enumerates the derived human statuses of a registration within a
// round. Derivation is a pure function of current data; see the status
// service for the priority ladder.
type StatusCode string

// Status codes, highest priority first.
const (
	StatusMatriculated          StatusCode = "MATRICULATED"
	StatusMatriculatedElsewhere StatusCode = "MATRICULATED_ELSEWHERE"
	StatusNotSummoned           StatusCode = "NOT_SUMMONED"
	StatusReviewed              StatusCode = "REVIEWED"
	StatusAwaitingReview        StatusCode = "AWAITING_REVIEW"
	StatusEligible              StatusCode = "ELIGIBLE"
	StatusNotDefinedOther       StatusCode = "NOT_DEFINED_OTHER"
	StatusNoShow                StatusCode = "NO_SHOW"
	StatusSummoned              StatusCode = "SUMMONED"
	StatusUndefined             StatusCode = "UNDEFINED"
)

// Status is the tagged result of status derivation. Eligible is meaningful
// only for StatusReviewed; OtherKind only for StatusMatriculatedElsewhere.
type Status struct {
	Code      StatusCode   `json:"code"`
	Eligible  bool         `json:"eligible,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	OtherKind CategoryKind `json:"other_kind,omitempty"`
}
