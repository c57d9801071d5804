package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seletivo/admissions-api/internal/models"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

// closerEnv is an in-memory backing store for the close/reopen pass. A single
// struct keeps the scenario data in one place; the envRounds/envSeats/envCats
// wrappers exist because the round, seat and category stores each expose a
// FindByID with a different return type.
type closerEnv struct {
	rounds     map[string]*models.Round
	lists      []*models.CallList
	members    map[string][]string
	regs       map[string]*models.RegistrationDetail
	confirmed  map[string]*models.InterestConfirmation
	reviews    map[string]*models.EligibilityReview
	appeals    map[string]*models.Appeal
	subTotal   map[string]int
	subExtra   map[string]int
	required   map[string][]models.ReviewType
	edges      []models.TransitionEdge
	categories map[string]*models.Category
	seats      map[string]*models.Seat
	seatOrder  []string
	outcomes   map[string]*models.Outcome
	grants     map[string]*models.SeatGrant
	moves      []string
}

func newCloserEnv() *closerEnv {
	return &closerEnv{
		rounds:     make(map[string]*models.Round),
		members:    make(map[string][]string),
		regs:       make(map[string]*models.RegistrationDetail),
		confirmed:  make(map[string]*models.InterestConfirmation),
		reviews:    make(map[string]*models.EligibilityReview),
		appeals:    make(map[string]*models.Appeal),
		subTotal:   make(map[string]int),
		subExtra:   make(map[string]int),
		required:   make(map[string][]models.ReviewType),
		categories: make(map[string]*models.Category),
		seats:      make(map[string]*models.Seat),
		outcomes:   make(map[string]*models.Outcome),
		grants:     make(map[string]*models.SeatGrant),
	}
}

func (e *closerEnv) addCategory(id string, kind models.CategoryKind) {
	e.categories[id] = &models.Category{ID: id, Name: id, Kind: kind}
}

func (e *closerEnv) addEdge(primaryID, originID, destinationID string) {
	e.edges = append(e.edges, models.TransitionEdge{
		ID:            fmt.Sprintf("edge-%d", len(e.edges)+1),
		PrimaryID:     primaryID,
		OriginID:      originID,
		DestinationID: destinationID,
	})
}

func (e *closerEnv) addSeat(id, courseID, categoryID string) {
	e.seats[id] = &models.Seat{
		ID:                id,
		EditionID:         "ed-1",
		CourseID:          courseID,
		PrimaryCategoryID: categoryID,
		CurrentCategoryID: categoryID,
	}
	e.seatOrder = append(e.seatOrder, id)
}

func (e *closerEnv) addList(id, roundID, courseID, categoryID string, vacancy int, memberIDs ...string) {
	e.lists = append(e.lists, &models.CallList{
		ID:         id,
		RoundID:    roundID,
		CourseID:   courseID,
		CategoryID: categoryID,
		Vacancy:    vacancy,
	})
	e.members[id] = memberIDs
}

func (e *closerEnv) addRegistration(id, candidateID, courseID, categoryID string, kind models.CategoryKind, roundID string) {
	e.regs[id] = &models.RegistrationDetail{
		Registration: models.Registration{
			ID:          id,
			CandidateID: candidateID,
			CourseID:    courseID,
			CategoryID:  categoryID,
			EditionID:   "ed-1",
			RoundID:     &roundID,
		},
		CandidateName: candidateID,
		CategoryKind:  kind,
	}
}

func (e *closerEnv) confirm(registrationID, roundID string) {
	e.confirmed[registrationID] = &models.InterestConfirmation{
		ID:             "conf-" + registrationID,
		RegistrationID: registrationID,
		RoundID:        roundID,
	}
}

// closerListStore

func (e *closerEnv) Find(ctx context.Context, roundID, courseID, categoryID string) (*models.CallList, error) {
	for _, list := range e.lists {
		if list.RoundID == roundID && list.CourseID == courseID && list.CategoryID == categoryID {
			return list, nil
		}
	}
	return nil, nil
}

func (e *closerEnv) ListByRound(ctx context.Context, roundID string) ([]models.CallList, error) {
	var out []models.CallList
	for _, list := range e.lists {
		if list.RoundID == roundID {
			out = append(out, *list)
		}
	}
	return out, nil
}

func (e *closerEnv) Entries(ctx context.Context, listID string) ([]models.CallListEntry, error) {
	var out []models.CallListEntry
	for i, id := range e.members[listID] {
		entry := models.CallListEntry{
			CallListMember: models.CallListMember{CallListID: listID, RegistrationID: id, Position: i + 1},
		}
		if reg, ok := e.regs[id]; ok {
			entry.CandidateID = reg.CandidateID
			entry.CandidateName = reg.CandidateName
		}
		out = append(out, entry)
	}
	return out, nil
}

func (e *closerEnv) MemberPosition(ctx context.Context, listID, registrationID string) (int, error) {
	for i, id := range e.members[listID] {
		if id == registrationID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// closerRegistrationStore

func (e *closerEnv) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	reg, ok := e.regs[id]
	if !ok {
		return nil, errNoRows()
	}
	return reg, nil
}

func (e *closerEnv) ListByCandidateRound(ctx context.Context, candidateID, roundID string) ([]models.RegistrationDetail, error) {
	var out []models.RegistrationDetail
	for _, id := range e.sortedRegIDs() {
		reg := e.regs[id]
		if reg.CandidateID == candidateID && reg.RoundID != nil && *reg.RoundID == roundID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (e *closerEnv) sortedRegIDs() []string {
	ids := make([]string, 0, len(e.regs))
	for id := range e.regs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// closerInterestStore

func (e *closerEnv) ListConfirmedRegistrations(ctx context.Context, roundID string) ([]string, error) {
	var out []string
	for id, conf := range e.confirmed {
		if conf.RoundID == roundID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (e *closerEnv) FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.InterestConfirmation, error) {
	conf, ok := e.confirmed[registrationID]
	if !ok || conf.RoundID != roundID {
		return nil, nil
	}
	return conf, nil
}

func (e *closerEnv) Move(ctx context.Context, id, toRegistrationID string) error {
	for regID, conf := range e.confirmed {
		if conf.ID == id {
			delete(e.confirmed, regID)
			conf.RegistrationID = toRegistrationID
			e.confirmed[toRegistrationID] = conf
			return nil
		}
	}
	for regID, review := range e.reviews {
		if review.ID == id {
			delete(e.reviews, regID)
			review.RegistrationID = toRegistrationID
			e.reviews[toRegistrationID] = review
			return nil
		}
	}
	return fmt.Errorf("nothing with id %s to move", id)
}

// closerReviewStore

func (e *closerEnv) FindReviewByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.EligibilityReview, error) {
	review, ok := e.reviews[registrationID]
	if !ok || review.RoundID != roundID {
		return nil, nil
	}
	return review, nil
}

func (e *closerEnv) Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error) {
	review, ok := e.reviews[registrationID]
	if !ok || review.RoundID != roundID {
		return models.ReviewBundle{}, nil
	}
	return models.ReviewBundle{Review: review, Appeal: e.appeals[review.ID]}, nil
}

func (e *closerEnv) SubReviewCount(ctx context.Context, registrationID, roundID string, allowed []models.ReviewType) (int, int, error) {
	return e.subTotal[registrationID], e.subExtra[registrationID], nil
}

// closerCategoryStore

func (e *closerEnv) ListEdges(ctx context.Context) ([]models.TransitionEdge, error) {
	return e.edges, nil
}

func (e *closerEnv) ReviewTypes(ctx context.Context, categoryID string) ([]models.ReviewType, error) {
	return e.required[categoryID], nil
}

func (e *closerEnv) CreateGrant(ctx context.Context, grant *models.SeatGrant) error {
	grant.ID = "grant-" + grant.RegistrationID
	stored := *grant
	e.grants[grant.RegistrationID] = &stored
	return nil
}

func (e *closerEnv) ExistsForCandidateEdition(ctx context.Context, candidateID, editionID string) (bool, error) {
	for regID := range e.grants {
		reg, ok := e.regs[regID]
		if ok && reg.CandidateID == candidateID && reg.EditionID == editionID {
			return true, nil
		}
	}
	return false, nil
}

func (e *closerEnv) GrantsByRound(ctx context.Context, roundID string) ([]models.SeatGrant, error) {
	var out []models.SeatGrant
	for _, id := range e.sortedRegIDs() {
		if grant, ok := e.grants[id]; ok && grant.RoundID == roundID {
			out = append(out, *grant)
		}
	}
	return out, nil
}

func (e *closerEnv) outcomeOf(registrationID, roundID string) *models.Outcome {
	return e.outcomes[registrationID+"/"+roundID]
}

// envRounds adapts closerEnv to the round store.
type envRounds struct{ env *closerEnv }

func (r envRounds) FindByID(ctx context.Context, id string) (*models.Round, error) {
	round, ok := r.env.rounds[id]
	if !ok {
		return nil, errNoRows()
	}
	return round, nil
}

func (r envRounds) LastClosed(ctx context.Context, editionID string, campusID *string) (*models.Round, error) {
	var last *models.Round
	for _, round := range r.env.rounds {
		if round.EditionID != editionID || round.ClosedAt == nil || !sameCampusScope(round.CampusID, campusID) {
			continue
		}
		if last == nil || round.ClosedAt.After(*last.ClosedAt) {
			last = round
		}
	}
	return last, nil
}

func sameCampusScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r envRounds) MarkClosed(ctx context.Context, id string, at time.Time) error {
	round := r.env.rounds[id]
	round.Open = false
	round.ClosedAt = &at
	return nil
}

func (r envRounds) MarkReopened(ctx context.Context, id string) error {
	round := r.env.rounds[id]
	round.Open = true
	round.ClosedAt = nil
	return nil
}

// envSeats adapts closerEnv to the seat store.
type envSeats struct{ env *closerEnv }

func (s envSeats) BulkCreate(ctx context.Context, n int, editionID, courseID, categoryID string) ([]models.Seat, error) {
	out := make([]models.Seat, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("seat-%d", len(s.env.seatOrder)+1)
		s.env.addSeat(id, courseID, categoryID)
		out = append(out, *s.env.seats[id])
	}
	return out, nil
}

func (s envSeats) FindByID(ctx context.Context, id string) (*models.Seat, error) {
	seat, ok := s.env.seats[id]
	if !ok {
		return nil, errNoRows()
	}
	return seat, nil
}

func (s envSeats) FreeSeat(ctx context.Context, editionID, courseID, categoryID string) (*models.Seat, error) {
	for _, id := range s.env.seatOrder {
		seat := s.env.seats[id]
		if seat.EditionID == editionID && seat.CourseID == courseID && seat.CurrentCategoryID == categoryID && !seat.Occupied() {
			return seat, nil
		}
	}
	return nil, nil
}

func (s envSeats) ListFree(ctx context.Context, editionID, courseID string) ([]models.Seat, error) {
	var out []models.Seat
	for _, id := range s.env.seatOrder {
		seat := s.env.seats[id]
		if seat.EditionID == editionID && seat.CourseID == courseID && !seat.Occupied() {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (s envSeats) CountFree(ctx context.Context, editionID, courseID, categoryID string) (int, error) {
	n := 0
	for _, seat := range s.env.seats {
		if seat.EditionID == editionID && seat.CourseID == courseID && seat.CurrentCategoryID == categoryID && !seat.Occupied() {
			n++
		}
	}
	return n, nil
}

func (s envSeats) Occupy(ctx context.Context, seatID, candidateID string) error {
	seat, ok := s.env.seats[seatID]
	if !ok || seat.Occupied() {
		return errNoRows()
	}
	seat.OccupantID = &candidateID
	return nil
}

func (s envSeats) Release(ctx context.Context, seatID string) error {
	seat, ok := s.env.seats[seatID]
	if !ok {
		return errNoRows()
	}
	seat.OccupantID = nil
	return nil
}

func (s envSeats) MoveCategory(ctx context.Context, seatID, originID, destinationID string) error {
	seat, ok := s.env.seats[seatID]
	if !ok {
		return errNoRows()
	}
	seat.CurrentCategoryID = destinationID
	s.env.moves = append(s.env.moves, seatID+":"+originID+">"+destinationID)
	return nil
}

// envCats adapts closerEnv to the category reader the cascade uses.
type envCats struct{ env *closerEnv }

func (c envCats) FindByID(ctx context.Context, id string) (*models.Category, error) {
	category, ok := c.env.categories[id]
	if !ok {
		return nil, errNoRows()
	}
	return category, nil
}

// envReviews adapts closerEnv to the review store, routing the colliding
// method names onto the env's prefixed implementations.
type envReviews struct{ env *closerEnv }

func (r envReviews) FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.EligibilityReview, error) {
	return r.env.FindReviewByRegistrationRound(ctx, registrationID, roundID)
}

func (r envReviews) Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error) {
	return r.env.Bundle(ctx, registrationID, roundID)
}

func (r envReviews) Move(ctx context.Context, id, toRegistrationID string) error {
	return r.env.Move(ctx, id, toRegistrationID)
}

func (r envReviews) SubReviewCount(ctx context.Context, registrationID, roundID string, allowed []models.ReviewType) (int, int, error) {
	return r.env.SubReviewCount(ctx, registrationID, roundID, allowed)
}

// envGrants adapts closerEnv to the grant store.
type envGrants struct{ env *closerEnv }

func (g envGrants) Create(ctx context.Context, grant *models.SeatGrant) error {
	return g.env.CreateGrant(ctx, grant)
}

func (g envGrants) ExistsForCandidateEdition(ctx context.Context, candidateID, editionID string) (bool, error) {
	return g.env.ExistsForCandidateEdition(ctx, candidateID, editionID)
}

func (g envGrants) ListByRound(ctx context.Context, roundID string) ([]models.SeatGrant, error) {
	return g.env.GrantsByRound(ctx, roundID)
}

func (g envGrants) DeleteByRound(ctx context.Context, roundID string) error {
	for id, grant := range g.env.grants {
		if grant.RoundID == roundID {
			delete(g.env.grants, id)
		}
	}
	return nil
}

// envOutcomes adapts closerEnv to the outcome store, enforcing the write-once
// rule so a double settle fails the test loudly.
type envOutcomes struct{ env *closerEnv }

func (o envOutcomes) Create(ctx context.Context, outcome *models.Outcome) error {
	key := outcome.RegistrationID + "/" + outcome.RoundID
	if _, ok := o.env.outcomes[key]; ok {
		return fmt.Errorf("outcome already recorded for %s", key)
	}
	outcome.ID = "out-" + outcome.RegistrationID
	stored := *outcome
	o.env.outcomes[key] = &stored
	return nil
}

func (o envOutcomes) DeleteByRound(ctx context.Context, roundID string) error {
	for key, outcome := range o.env.outcomes {
		if outcome.RoundID == roundID {
			delete(o.env.outcomes, key)
		}
	}
	return nil
}

func newCloser(env *closerEnv) *CloserService {
	seats := envSeats{env}
	vacancies := NewVacancyService(seats, envCats{env}, nil)
	return NewCloserService(
		stubTx{},
		envRounds{env},
		env,
		env,
		env,
		envReviews{env},
		env,
		seats,
		vacancies,
		envOutcomes{env},
		envGrants{env},
		nil,
		nil,
		nil,
	)
}

func closableRound(id string, sequence int, requiresReview bool) *models.Round {
	now := time.Now().UTC()
	return &models.Round{
		ID:                id,
		EditionID:         "ed-1",
		Sequence:          sequence,
		Multiplier:        1,
		Open:              true,
		RequiresReview:    requiresReview,
		InterestOpensAt:   now.Add(-48 * time.Hour),
		InterestClosesAt:  now.Add(-24 * time.Hour),
		ReviewClosesAt:    now.Add(-time.Hour),
		ConfirmationDueAt: now.Add(24 * time.Hour),
	}
}

func TestCloseRoundSettlesConfirmedInListOrder(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addSeat("seat-1", "course-1", "cat-open")
	env.addSeat("seat-2", "course-1", "cat-open")
	for _, id := range []string{"reg-a", "reg-b", "reg-c"} {
		env.addRegistration(id, "cand-"+id, "course-1", "cat-open", models.KindOpen, "round-1")
		env.confirm(id, "round-1")
	}
	env.addList("list-open", "round-1", "course-1", "cat-open", 2, "reg-a", "reg-b", "reg-c")

	require.NoError(t, newCloser(env).CloseRound(context.Background(), "round-1"))

	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-a", "round-1").Status)
	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-b", "round-1").Status)
	assert.Equal(t, models.OutcomeWaitlisted, env.outcomeOf("reg-c", "round-1").Status)
	require.NotNil(t, env.grants["reg-a"])
	require.NotNil(t, env.grants["reg-b"])
	assert.Nil(t, env.grants["reg-c"])
	assert.True(t, env.seats["seat-1"].Occupied())
	assert.True(t, env.seats["seat-2"].Occupied())
	assert.False(t, env.rounds["round-1"].Open)
	require.NotNil(t, env.rounds["round-1"].ClosedAt)
}

func TestCloseRoundRejectsAlreadyClosed(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, false)
	closer := newCloser(env)
	require.NoError(t, closer.CloseRound(context.Background(), "round-1"))

	err := closer.CloseRound(context.Background(), "round-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestCloseRoundCascadesUnclaimedQuotaSeat(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addCategory("cat-q", models.KindIncome)
	env.addEdge("cat-q", "cat-q", "cat-open")
	env.addSeat("seat-q", "course-1", "cat-q")
	env.addSeat("seat-o", "course-1", "cat-open")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-open", models.KindOpen, "round-1")
	env.addRegistration("reg-b", "cand-b", "course-1", "cat-open", models.KindOpen, "round-1")
	env.confirm("reg-a", "round-1")
	env.confirm("reg-b", "round-1")
	env.addList("list-q", "round-1", "course-1", "cat-q", 1)
	env.addList("list-open", "round-1", "course-1", "cat-open", 1, "reg-a", "reg-b")

	require.NoError(t, newCloser(env).CloseRound(context.Background(), "round-1"))

	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-a", "round-1").Status)
	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-b", "round-1").Status)
	assert.Equal(t, "cat-open", env.seats["seat-q"].CurrentCategoryID)
	assert.Equal(t, "cat-q", env.seats["seat-q"].PrimaryCategoryID)
	assert.Contains(t, env.moves, "seat-q:cat-q>cat-open")
	assert.True(t, env.seats["seat-q"].Occupied())
}

func TestCloseRoundDeniesWithUppercasedAppealJustification(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, true)
	env.addCategory("cat-open", models.KindOpen)
	env.addCategory("cat-q", models.KindIncome)
	env.required["cat-q"] = []models.ReviewType{models.ReviewIncome}
	env.addSeat("seat-q", "course-1", "cat-q")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-q", models.KindIncome, "round-1")
	env.confirm("reg-a", "round-1")
	env.reviews["reg-a"] = &models.EligibilityReview{
		ID:             "rev-a",
		RegistrationID: "reg-a",
		RoundID:        "round-1",
		Eligible:       false,
		Finalized:      true,
		Reason:         "income above the quota ceiling",
	}
	env.appeals["rev-a"] = &models.Appeal{
		ID:            "ap-a",
		ReviewID:      "rev-a",
		Outcome:       models.AppealDenied,
		Justification: "submitted payslips confirm the excess",
	}
	env.subTotal["reg-a"] = 1
	env.addList("list-q", "round-1", "course-1", "cat-q", 1, "reg-a")

	require.NoError(t, newCloser(env).CloseRound(context.Background(), "round-1"))

	outcome := env.outcomeOf("reg-a", "round-1")
	require.NotNil(t, outcome)
	assert.Equal(t, models.OutcomeDenied, outcome.Status)
	assert.Equal(t, "SUBMITTED PAYSLIPS CONFIRM THE EXCESS", outcome.Reason)
	assert.Nil(t, env.grants["reg-a"])
	assert.False(t, env.seats["seat-q"].Occupied())
}

func TestCloseRoundGrantedAppealSeatsTheCandidate(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, true)
	env.addCategory("cat-q", models.KindRacial)
	env.required["cat-q"] = []models.ReviewType{models.ReviewRacial}
	env.addSeat("seat-q", "course-1", "cat-q")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-q", models.KindRacial, "round-1")
	env.confirm("reg-a", "round-1")
	env.reviews["reg-a"] = &models.EligibilityReview{
		ID:             "rev-a",
		RegistrationID: "reg-a",
		RoundID:        "round-1",
		Eligible:       false,
		Finalized:      true,
		Reason:         "self-declaration rejected",
	}
	env.appeals["rev-a"] = &models.Appeal{ID: "ap-a", ReviewID: "rev-a", Outcome: models.AppealGranted}
	env.subTotal["reg-a"] = 1
	env.addList("list-q", "round-1", "course-1", "cat-q", 1, "reg-a")

	require.NoError(t, newCloser(env).CloseRound(context.Background(), "round-1"))

	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-a", "round-1").Status)
	require.NotNil(t, env.grants["reg-a"])
	assert.Equal(t, "seat-q", env.grants["reg-a"].SeatID)
}

func TestCloseRoundRequiresReviewShellForConfirmedQuota(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, true)
	env.addCategory("cat-q", models.KindIncome)
	env.required["cat-q"] = []models.ReviewType{models.ReviewIncome}
	env.addSeat("seat-q", "course-1", "cat-q")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-q", models.KindIncome, "round-1")
	env.confirm("reg-a", "round-1")
	env.addList("list-q", "round-1", "course-1", "cat-q", 1, "reg-a")

	err := newCloser(env).CloseRound(context.Background(), "round-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIncompleteEvaluation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "reg-a")
	assert.Empty(t, env.outcomes)
	assert.Empty(t, env.grants)
	assert.Nil(t, env.rounds["round-1"].ClosedAt)
}

func TestCloseRoundAuditRejectsMissingSubReviews(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, true)
	env.addCategory("cat-q", models.KindIncome)
	env.required["cat-q"] = []models.ReviewType{models.ReviewIncome, models.ReviewSchooling}
	env.addSeat("seat-q", "course-1", "cat-q")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-q", models.KindIncome, "round-1")
	env.confirm("reg-a", "round-1")
	env.reviews["reg-a"] = &models.EligibilityReview{
		ID:             "rev-a",
		RegistrationID: "reg-a",
		RoundID:        "round-1",
		Eligible:       true,
		Finalized:      true,
	}
	env.subTotal["reg-a"] = 1
	env.addList("list-q", "round-1", "course-1", "cat-q", 1, "reg-a")

	err := newCloser(env).CloseRound(context.Background(), "round-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIncompleteEvaluation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "reg-a")
	assert.Empty(t, env.outcomes)
}

func TestCloseRoundReconcilesQuotaOntoCoveredOpenPool(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 1, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addCategory("cat-a", models.KindRacial)
	env.addEdge("cat-a", "cat-a", "cat-open")
	env.addSeat("seat-a", "course-1", "cat-a")
	env.addSeat("seat-o1", "course-1", "cat-open")
	env.addSeat("seat-o2", "course-1", "cat-open")
	// Candidate X holds the quota/open pair and confirmed on the quota side.
	env.addRegistration("reg-xa", "cand-x", "course-1", "cat-a", models.KindRacial, "round-1")
	env.addRegistration("reg-xb", "cand-x", "course-1", "cat-open", models.KindOpen, "round-1")
	env.addRegistration("reg-ya", "cand-y", "course-1", "cat-a", models.KindRacial, "round-1")
	env.addRegistration("reg-zb", "cand-z", "course-1", "cat-open", models.KindOpen, "round-1")
	env.confirm("reg-xa", "round-1")
	env.confirm("reg-ya", "round-1")
	env.confirm("reg-zb", "round-1")
	env.addList("list-a", "round-1", "course-1", "cat-a", 1, "reg-xa", "reg-ya")
	env.addList("list-open", "round-1", "course-1", "cat-open", 2, "reg-zb", "reg-xb")

	require.NoError(t, newCloser(env).CloseRound(context.Background(), "round-1"))

	// X rides the open pool; the quota seat goes to the next quota registrant.
	require.NotNil(t, env.confirmed["reg-xb"])
	assert.Nil(t, env.confirmed["reg-xa"])
	assert.Nil(t, env.outcomeOf("reg-xa", "round-1"))
	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-xb", "round-1").Status)
	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-ya", "round-1").Status)
	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-zb", "round-1").Status)
	require.NotNil(t, env.grants["reg-ya"])
	assert.Equal(t, "seat-a", env.grants["reg-ya"].SeatID)
	require.NotNil(t, env.grants["reg-xb"])
	assert.Nil(t, env.grants["reg-xa"])
}

func TestCloseRoundReconcileSkipsWhenOpenListCannotCover(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 1, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addCategory("cat-a", models.KindRacial)
	env.addSeat("seat-a", "course-1", "cat-a")
	env.addRegistration("reg-xa", "cand-x", "course-1", "cat-a", models.KindRacial, "round-1")
	env.addRegistration("reg-xb", "cand-x", "course-1", "cat-open", models.KindOpen, "round-1")
	env.confirm("reg-xa", "round-1")
	env.addList("list-a", "round-1", "course-1", "cat-a", 1, "reg-xa")
	// X sits past the open list's vacancy, so the confirmation stays put.
	env.addList("list-open", "round-1", "course-1", "cat-open", 1, "reg-other", "reg-xb")

	require.NoError(t, newCloser(env).CloseRound(context.Background(), "round-1"))

	require.NotNil(t, env.confirmed["reg-xa"])
	assert.Equal(t, models.OutcomeDeferred, env.outcomeOf("reg-xa", "round-1").Status)
	require.NotNil(t, env.grants["reg-xa"])
	assert.Equal(t, "seat-a", env.grants["reg-xa"].SeatID)
}

func TestCloseRoundBlocksSecondGrantForCandidate(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 1, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addSeat("seat-1", "course-1", "cat-open")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-open", models.KindOpen, "round-1")
	env.confirm("reg-a", "round-1")
	env.addList("list-open", "round-1", "course-1", "cat-open", 1, "reg-a")
	// Residual grant from an earlier round for the same candidate.
	env.addRegistration("reg-old", "cand-a", "course-2", "cat-open", models.KindOpen, "round-0")
	env.grants["reg-old"] = &models.SeatGrant{ID: "grant-old", RegistrationID: "reg-old", RoundID: "round-0", SeatID: "seat-old"}

	err := newCloser(env).CloseRound(context.Background(), "round-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
}

func TestReopenRoundReleasesSeatsAndDeletesResults(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addSeat("seat-1", "course-1", "cat-open")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-open", models.KindOpen, "round-1")
	env.confirm("reg-a", "round-1")
	env.addList("list-open", "round-1", "course-1", "cat-open", 1, "reg-a")

	closer := newCloser(env)
	require.NoError(t, closer.CloseRound(context.Background(), "round-1"))
	require.True(t, env.seats["seat-1"].Occupied())

	require.NoError(t, closer.ReopenRound(context.Background(), "round-1"))

	assert.False(t, env.seats["seat-1"].Occupied())
	assert.Empty(t, env.outcomes)
	assert.Empty(t, env.grants)
	assert.True(t, env.rounds["round-1"].Open)
	assert.Nil(t, env.rounds["round-1"].ClosedAt)
}

func TestCloseReopenCloseRepeatsSettlement(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, false)
	env.addCategory("cat-open", models.KindOpen)
	env.addCategory("cat-q", models.KindIncome)
	env.addEdge("cat-q", "cat-q", "cat-open")
	env.addSeat("seat-q", "course-1", "cat-q")
	env.addSeat("seat-o", "course-1", "cat-open")
	env.addRegistration("reg-a", "cand-a", "course-1", "cat-open", models.KindOpen, "round-1")
	env.addRegistration("reg-b", "cand-b", "course-1", "cat-open", models.KindOpen, "round-1")
	env.addRegistration("reg-c", "cand-c", "course-1", "cat-open", models.KindOpen, "round-1")
	env.confirm("reg-a", "round-1")
	env.confirm("reg-b", "round-1")
	env.confirm("reg-c", "round-1")
	env.addList("list-q", "round-1", "course-1", "cat-q", 1)
	env.addList("list-open", "round-1", "course-1", "cat-open", 2, "reg-a", "reg-b", "reg-c")

	snapshot := func() map[string]string {
		out := make(map[string]string, len(env.outcomes))
		for key, outcome := range env.outcomes {
			out[key] = string(outcome.Status) + "|" + outcome.Reason
		}
		return out
	}
	granted := func() []string {
		out := make([]string, 0, len(env.grants))
		for regID := range env.grants {
			out = append(out, regID)
		}
		sort.Strings(out)
		return out
	}

	closer := newCloser(env)
	require.NoError(t, closer.CloseRound(context.Background(), "round-1"))
	firstOutcomes := snapshot()
	firstGranted := granted()
	require.NotEmpty(t, firstOutcomes)
	// The cascade moved the unclaimed quota seat into the open pool.
	require.Equal(t, []string{"seat-q:cat-q>cat-open"}, env.moves)

	require.NoError(t, closer.ReopenRound(context.Background(), "round-1"))
	require.Empty(t, env.outcomes)
	require.Empty(t, env.grants)

	require.NoError(t, closer.CloseRound(context.Background(), "round-1"))

	assert.Equal(t, firstOutcomes, snapshot())
	assert.Equal(t, firstGranted, granted())
	assert.Equal(t, models.OutcomeWaitlisted, env.outcomeOf("reg-c", "round-1").Status)
	// Cascaded seat categories survive the reopen, so the second close
	// serves the open queue directly instead of moving the seat again.
	assert.Equal(t, []string{"seat-q:cat-q>cat-open"}, env.moves)
}

func TestReopenRoundOnlyMostRecentlyClosed(t *testing.T) {
	env := newCloserEnv()
	earlier := time.Now().UTC().Add(-2 * time.Hour)
	later := time.Now().UTC().Add(-time.Hour)
	first := closableRound("round-1", 0, false)
	first.Open = false
	first.ClosedAt = &earlier
	second := closableRound("round-2", 1, false)
	second.Open = false
	second.ClosedAt = &later
	env.rounds["round-1"] = first
	env.rounds["round-2"] = second

	err := newCloser(env).ReopenRound(context.Background(), "round-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestReopenRoundRejectsOpenRound(t *testing.T) {
	env := newCloserEnv()
	env.rounds["round-1"] = closableRound("round-1", 0, false)

	err := newCloser(env).ReopenRound(context.Background(), "round-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
