package models

// ScoreRecord holds the exam sub-scores for one registration. Rank is
// recomputed whenever the ranking for its course runs.
type ScoreRecord struct {
	ID             string  `db:"id" json:"id"`
	RegistrationID string  `db:"registration_id" json:"registration_id"`
	Aggregate      float64 `db:"aggregate" json:"aggregate"`
	Writing        float64 `db:"writing" json:"writing"`
	Mathematics    float64 `db:"mathematics" json:"mathematics"`
	Languages      float64 `db:"languages" json:"languages"`
	Sciences       float64 `db:"sciences" json:"sciences"`
	Humanities     float64 `db:"humanities" json:"humanities"`
	Rank           *int    `db:"rank" json:"rank,omitempty"`
}

// SubjectScores returns the per-subject scores in tie-break priority order,
// best-known-discriminator first. The order is fixed; changing it reshuffles
// every published ranking.
func (s ScoreRecord) SubjectScores() []float64 {
	return []float64{s.Mathematics, s.Languages, s.Sciences, s.Humanities}
}

// ScoreImportRow is one row of a bulk score import, keyed by candidate,
// course and edition as delivered by the exam-score collaborator.
type ScoreImportRow struct {
	CandidateID string  `json:"candidate_id" validate:"required"`
	CourseID    string  `json:"course_id" validate:"required"`
	EditionID   string  `json:"edition_id" validate:"required"`
	Aggregate   float64 `json:"aggregate" validate:"gte=0"`
	Writing     float64 `json:"writing" validate:"gte=0"`
	Mathematics float64 `json:"mathematics" validate:"gte=0"`
	Languages   float64 `json:"languages" validate:"gte=0"`
	Sciences    float64 `json:"sciences" validate:"gte=0"`
	Humanities  float64 `json:"humanities" validate:"gte=0"`
}
