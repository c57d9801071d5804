package models

// CategoryKind identifies what admission criterion a category encodes.
type CategoryKind string

// Known category kinds. Exactly one category per edition carries KindOpen.
const (
	KindOpen       CategoryKind = "OPEN"
	KindRacial     CategoryKind = "RACIAL"
	KindIncome     CategoryKind = "INCOME"
	KindDisability CategoryKind = "DISABILITY"
	KindRural      CategoryKind = "RURAL"
	KindSchoolType CategoryKind = "SCHOOL_TYPE"
)

// ReviewType names one kind of document review a category may require.
type ReviewType string

// Review types attachable to categories.
const (
	ReviewIncome     ReviewType = "INCOME"
	ReviewRacial     ReviewType = "RACIAL"
	ReviewDisability ReviewType = "DISABILITY"
	ReviewSchooling  ReviewType = "SCHOOLING"
	ReviewResidence  ReviewType = "RESIDENCE"
)

// Category is an admission quota or the open pool.
type Category struct {
	ID   string       `db:"id" json:"id"`
	Name string       `db:"name" json:"name"`
	Kind CategoryKind `db:"kind" json:"kind"`
}

// Open reports whether the category is the open (non-quota) pool.
func (c Category) Open() bool {
	return c.Kind == KindOpen
}

// CategoryReviewType binds a required review type to a category.
type CategoryReviewType struct {
	CategoryID string     `db:"category_id" json:"category_id"`
	ReviewType ReviewType `db:"review_type" json:"review_type"`
}

// TransitionEdge is one fallback step of a primary category's cascade.
type TransitionEdge struct {
	ID            string `db:"id" json:"id"`
	PrimaryID     string `db:"primary_category_id" json:"primary_category_id"`
	OriginID      string `db:"origin_category_id" json:"origin_category_id"`
	DestinationID string `db:"destination_category_id" json:"destination_category_id"`
}
