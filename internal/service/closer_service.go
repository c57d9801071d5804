package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/internal/graph"
	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/pkg/cache"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
)

type closerRoundStore interface {
	FindByID(ctx context.Context, id string) (*models.Round, error)
	LastClosed(ctx context.Context, editionID string, campusID *string) (*models.Round, error)
	MarkClosed(ctx context.Context, id string, at time.Time) error
	MarkReopened(ctx context.Context, id string) error
}

type closerListStore interface {
	Find(ctx context.Context, roundID, courseID, categoryID string) (*models.CallList, error)
	ListByRound(ctx context.Context, roundID string) ([]models.CallList, error)
	Entries(ctx context.Context, listID string) ([]models.CallListEntry, error)
	MemberPosition(ctx context.Context, listID, registrationID string) (int, error)
}

type closerRegistrationStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	ListByCandidateRound(ctx context.Context, candidateID, roundID string) ([]models.RegistrationDetail, error)
}

type closerInterestStore interface {
	ListConfirmedRegistrations(ctx context.Context, roundID string) ([]string, error)
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.InterestConfirmation, error)
	Move(ctx context.Context, id, toRegistrationID string) error
}

type closerReviewStore interface {
	FindByRegistrationRound(ctx context.Context, registrationID, roundID string) (*models.EligibilityReview, error)
	Bundle(ctx context.Context, registrationID, roundID string) (models.ReviewBundle, error)
	Move(ctx context.Context, id, toRegistrationID string) error
	SubReviewCount(ctx context.Context, registrationID, roundID string, allowed []models.ReviewType) (total int, extraneous int, err error)
}

type closerCategoryStore interface {
	ListEdges(ctx context.Context) ([]models.TransitionEdge, error)
	ReviewTypes(ctx context.Context, categoryID string) ([]models.ReviewType, error)
}

type closerSeatStore interface {
	ListFree(ctx context.Context, editionID, courseID string) ([]models.Seat, error)
}

type seatCascader interface {
	Advance(ctx context.Context, seat *models.Seat, g *graph.ModalityGraph, hasDemand func(categoryID string) bool) (*models.Seat, error)
	Occupy(ctx context.Context, seatID, candidateID string) error
	Release(ctx context.Context, seatID string) error
}

type outcomeStore interface {
	Create(ctx context.Context, outcome *models.Outcome) error
	DeleteByRound(ctx context.Context, roundID string) error
}

type grantStore interface {
	Create(ctx context.Context, grant *models.SeatGrant) error
	ExistsForCandidateEdition(ctx context.Context, candidateID, editionID string) (bool, error)
	ListByRound(ctx context.Context, roundID string) ([]models.SeatGrant, error)
	DeleteByRound(ctx context.Context, roundID string) error
}

type closerMetrics interface {
	RoundClosed()
	RoundReopened()
	OutcomeRecorded(status string)
}

// CloserService closes and reopens rounds. A close is one transaction under a
// per-round advisory lock: precondition check, reconciliation of quota/open
// pairs, seat filling with the fallback cascade, outcome writing and the
// completeness audit. Any failure rolls the whole round back.
type CloserService struct {
	tx            txRunner
	rounds        closerRoundStore
	lists         closerListStore
	registrations closerRegistrationStore
	interests     closerInterestStore
	reviews       closerReviewStore
	categories    closerCategoryStore
	seats         closerSeatStore
	vacancies     seatCascader
	outcomes      outcomeStore
	grants        grantStore
	cache         *cache.Store
	metrics       closerMetrics
	logger        *zap.Logger
}

// NewCloserService constructs CloserService. metrics may be nil.
func NewCloserService(
	tx txRunner,
	rounds closerRoundStore,
	lists closerListStore,
	registrations closerRegistrationStore,
	interests closerInterestStore,
	reviews closerReviewStore,
	categories closerCategoryStore,
	seats closerSeatStore,
	vacancies seatCascader,
	outcomes outcomeStore,
	grants grantStore,
	store *cache.Store,
	metrics closerMetrics,
	logger *zap.Logger,
) *CloserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloserService{
		tx:            tx,
		rounds:        rounds,
		lists:         lists,
		registrations: registrations,
		interests:     interests,
		reviews:       reviews,
		categories:    categories,
		seats:         seats,
		vacancies:     vacancies,
		outcomes:      outcomes,
		grants:        grants,
		cache:         store,
		metrics:       metrics,
		logger:        logger,
	}
}

// fillEntry is one confirmed registration inside a demand queue, in call-list
// position order.
type fillEntry struct {
	registration *models.RegistrationDetail
	bundle       models.ReviewBundle
	eligible     bool
	seatID       string
}

// CloseRound settles every confirmed registration of the round into Deferred,
// Waitlisted or Denied, granting and cascading seats along the way.
func (s *CloserService) CloseRound(ctx context.Context, roundID string) error {
	round, err := s.rounds.FindByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch round")
	}
	if !round.Open || round.ClosedAt != nil {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "round is already closed")
	}

	edges, err := s.categories.ListEdges(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fallback edges")
	}
	cascade, err := graph.Load(edges)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tx.AdvisoryLock(ctx, "round:"+roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock round")
		}

		confirmed, err := s.loadConfirmed(ctx, round)
		if err != nil {
			return err
		}
		if err := s.checkPrecondition(ctx, round, confirmed); err != nil {
			return err
		}
		if round.Waitlist() {
			if err := s.reconcile(ctx, round, confirmed); err != nil {
				return err
			}
		}
		if err := s.auditCompleteness(ctx, round, confirmed); err != nil {
			return err
		}
		if err := s.fill(ctx, round, cascade, confirmed); err != nil {
			return err
		}
		if err := s.rounds.MarkClosed(ctx, roundID, time.Now().UTC()); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark round closed")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, roundID)
	if s.metrics != nil {
		s.metrics.RoundClosed()
	}
	s.logger.Info("round closed", zap.String("round_id", roundID))
	return nil
}

// loadConfirmed loads every confirmed registration of the round with its
// review bundle, keyed by registration id.
func (s *CloserService) loadConfirmed(ctx context.Context, round *models.Round) (map[string]*fillEntry, error) {
	ids, err := s.interests.ListConfirmedRegistrations(ctx, round.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list confirmations")
	}
	confirmed := make(map[string]*fillEntry, len(ids))
	for _, id := range ids {
		detail, err := s.registrations.FindDetailByID(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch registration "+id)
		}
		bundle, err := s.reviews.Bundle(ctx, id, round.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch review for "+id)
		}
		confirmed[id] = &fillEntry{
			registration: detail,
			bundle:       bundle,
			eligible:     finalEligibility(round, detail, bundle),
		}
	}
	return confirmed, nil
}

// finalEligibility derives the settled verdict: rounds without review accept
// every confirmation; open-pool registrations carry no documentation burden;
// quota registrations answer to their review bundle.
func finalEligibility(round *models.Round, registration *models.RegistrationDetail, bundle models.ReviewBundle) bool {
	if !round.RequiresReview {
		return true
	}
	if registration.CategoryKind == models.KindOpen {
		return true
	}
	return bundle.FinalEligible()
}

func (s *CloserService) checkPrecondition(ctx context.Context, round *models.Round, confirmed map[string]*fillEntry) error {
	if !round.RequiresReview {
		return nil
	}
	var missing []string
	for id, entry := range confirmed {
		if entry.registration.CategoryKind == models.KindOpen {
			continue
		}
		if entry.bundle.Review == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return appErrors.Clone(appErrors.ErrIncompleteEvaluation,
			"registrations without eligibility review: "+strings.Join(missing, ", "))
	}
	return nil
}

// reconcile moves a confirmation off a quota registration when the
// candidate's open-pool registration already sits within the open list's
// vacancy, so a covered candidate never consumes scarce quota capacity.
func (s *CloserService) reconcile(ctx context.Context, round *models.Round, confirmed map[string]*fillEntry) error {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(confirmed))
	for id := range confirmed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := confirmed[id]
		candidateID := entry.registration.CandidateID
		if seen[candidateID] {
			continue
		}
		seen[candidateID] = true

		siblings, err := s.registrations.ListByCandidateRound(ctx, candidateID, round.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidate registrations")
		}
		if len(siblings) > 2 {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("candidate %s holds %d registrations in this round", candidateID, len(siblings)))
		}
		if len(siblings) != 2 {
			continue
		}

		var quota, open *models.RegistrationDetail
		for i := range siblings {
			if siblings[i].CategoryKind == models.KindOpen {
				open = &siblings[i]
			} else {
				quota = &siblings[i]
			}
		}
		if quota == nil || open == nil {
			continue
		}
		source, ok := confirmed[quota.ID]
		if !ok || !source.eligible {
			continue
		}

		quotaList, err := s.lists.Find(ctx, round.ID, quota.CourseID, quota.CategoryID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch quota call list")
		}
		if quotaList == nil {
			continue
		}
		quotaPos, err := s.lists.MemberPosition(ctx, quotaList.ID, quota.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch quota position")
		}
		if quotaPos == 0 {
			continue
		}

		openList, err := s.lists.Find(ctx, round.ID, open.CourseID, open.CategoryID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch open call list")
		}
		if openList == nil {
			continue
		}
		openPos, err := s.lists.MemberPosition(ctx, openList.ID, open.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch open position")
		}
		if openPos == 0 || openPos > openList.Vacancy {
			continue
		}

		existing, err := s.interests.FindByRegistrationRound(ctx, open.ID, round.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch destination confirmation")
		}
		if existing != nil {
			return appErrors.Clone(appErrors.ErrAlreadyExists,
				fmt.Sprintf("registration %s already carries a confirmation", open.ID))
		}

		confirmation, err := s.interests.FindByRegistrationRound(ctx, quota.ID, round.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch source confirmation")
		}
		if confirmation == nil {
			continue
		}
		if err := s.interests.Move(ctx, confirmation.ID, open.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move confirmation")
		}
		if source.bundle.Review != nil {
			if err := s.reviews.Move(ctx, source.bundle.Review.ID, open.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move review")
			}
		}

		delete(confirmed, quota.ID)
		confirmed[open.ID] = &fillEntry{
			registration: open,
			bundle:       source.bundle,
			eligible:     finalEligibility(round, open, source.bundle),
		}
		s.logger.Info("confirmation reconciled onto open pool",
			zap.String("candidate_id", candidateID),
			zap.String("from_registration", quota.ID),
			zap.String("to_registration", open.ID),
		)
	}
	return nil
}

// auditCompleteness rejects the close when any confirmed quota registration
// has missing or extraneous sub-reviews for its category's required types.
func (s *CloserService) auditCompleteness(ctx context.Context, round *models.Round, confirmed map[string]*fillEntry) error {
	if !round.RequiresReview {
		return nil
	}
	requiredByCategory := make(map[string][]models.ReviewType)
	var offenders []string
	for id, entry := range confirmed {
		if entry.registration.CategoryKind == models.KindOpen {
			continue
		}
		categoryID := entry.registration.CategoryID
		required, ok := requiredByCategory[categoryID]
		if !ok {
			var err error
			required, err = s.categories.ReviewTypes(ctx, categoryID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load required review types")
			}
			requiredByCategory[categoryID] = required
		}
		if len(required) == 0 {
			continue
		}
		total, extraneous, err := s.reviews.SubReviewCount(ctx, id, round.ID, required)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sub-reviews")
		}
		if total != len(required) || extraneous > 0 {
			offenders = append(offenders, id)
		}
	}
	if len(offenders) > 0 {
		sort.Strings(offenders)
		return appErrors.Clone(appErrors.ErrIncompleteEvaluation,
			"registrations with incomplete evaluation: "+strings.Join(offenders, ", "))
	}
	return nil
}

// fill settles seats course by course: direct assignment from each category's
// free seats in call-list order, then the fallback cascade over leftover quota
// seats, then one immutable outcome per confirmed registration.
func (s *CloserService) fill(ctx context.Context, round *models.Round, cascade *graph.ModalityGraph, confirmed map[string]*fillEntry) error {
	lists, err := s.lists.ListByRound(ctx, round.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list call lists")
	}
	byCourse := make(map[string][]models.CallList)
	courses := make([]string, 0)
	for _, list := range lists {
		if _, ok := byCourse[list.CourseID]; !ok {
			courses = append(courses, list.CourseID)
		}
		byCourse[list.CourseID] = append(byCourse[list.CourseID], list)
	}
	sort.Strings(courses)

	for _, courseID := range courses {
		if err := s.fillCourse(ctx, round, cascade, courseID, byCourse[courseID], confirmed); err != nil {
			return err
		}
	}
	return nil
}

func (s *CloserService) fillCourse(ctx context.Context, round *models.Round, cascade *graph.ModalityGraph, courseID string, lists []models.CallList, confirmed map[string]*fillEntry) error {
	// Demand queues: confirmed entries per category, call-list order.
	queues := make(map[string][]*fillEntry)
	order := make([]string, 0, len(lists))
	for _, list := range lists {
		entries, err := s.lists.Entries(ctx, list.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entries")
		}
		order = append(order, list.CategoryID)
		for _, entry := range entries {
			if fe, ok := confirmed[entry.RegistrationID]; ok {
				queues[list.CategoryID] = append(queues[list.CategoryID], fe)
			}
		}
	}

	free, err := s.seats.ListFree(ctx, round.EditionID, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list free seats")
	}

	hasDemand := func(categoryID string) bool {
		for _, fe := range queues[categoryID] {
			if fe.eligible && fe.seatID == "" {
				return true
			}
		}
		return false
	}
	take := func(categoryID, seatID string) bool {
		for _, fe := range queues[categoryID] {
			if fe.eligible && fe.seatID == "" {
				fe.seatID = seatID
				return true
			}
		}
		return false
	}

	// Direct pass: each seat serves its current category's queue.
	leftover := make([]models.Seat, 0, len(free))
	for i := range free {
		if !take(free[i].CurrentCategoryID, free[i].ID) {
			leftover = append(leftover, free[i])
		}
	}

	// Cascade leftover quota seats toward categories that still have takers.
	for i := range leftover {
		seat, err := s.vacancies.Advance(ctx, &leftover[i], cascade, hasDemand)
		if err != nil {
			return err
		}
		take(seat.CurrentCategoryID, seat.ID)
	}

	// Outcomes, one per confirmed entry, list order.
	for _, categoryID := range order {
		for _, fe := range queues[categoryID] {
			if err := s.settle(ctx, round, fe); err != nil {
				return err
			}
		}
	}
	return nil
}

// settle writes the entry's immutable outcome and, for deferred entries, the
// seat grant and occupancy.
func (s *CloserService) settle(ctx context.Context, round *models.Round, fe *fillEntry) error {
	registration := fe.registration
	outcome := &models.Outcome{RegistrationID: registration.ID, RoundID: round.ID}

	switch {
	case !fe.eligible:
		outcome.Status = models.OutcomeDenied
		outcome.Reason = strings.ToUpper(fe.bundle.DenialReason())
	case fe.seatID != "":
		enrolled, err := s.grants.ExistsForCandidateEdition(ctx, registration.CandidateID, registration.EditionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing grant")
		}
		if enrolled {
			return appErrors.Clone(appErrors.ErrAlreadyEnrolled,
				fmt.Sprintf("candidate %s already holds a seat grant this edition", registration.CandidateID))
		}
		if err := s.vacancies.Occupy(ctx, fe.seatID, registration.CandidateID); err != nil {
			return err
		}
		if err := s.grants.Create(ctx, &models.SeatGrant{
			RegistrationID: registration.ID,
			RoundID:        round.ID,
			SeatID:         fe.seatID,
		}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create seat grant")
		}
		outcome.Status = models.OutcomeDeferred
	default:
		outcome.Status = models.OutcomeWaitlisted
	}

	if err := s.outcomes.Create(ctx, outcome); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create outcome")
	}
	if s.metrics != nil {
		s.metrics.OutcomeRecorded(string(outcome.Status))
	}
	return nil
}

// ReopenRound undoes the most recent close of the round: outcomes and grants
// deleted, seats released, closed flag cleared. Seat categories moved by the
// cascade stay where they are; a re-close walks them again from live counts.
func (s *CloserService) ReopenRound(ctx context.Context, roundID string) error {
	round, err := s.rounds.FindByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch round")
	}
	if round.ClosedAt == nil {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "round is not closed")
	}
	last, err := s.rounds.LastClosed(ctx, round.EditionID, round.CampusID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch last closed round")
	}
	if last == nil || last.ID != roundID {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only the most recently closed round can be reopened")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tx.AdvisoryLock(ctx, "round:"+roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock round")
		}
		grants, err := s.grants.ListByRound(ctx, roundID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grants")
		}
		for _, grant := range grants {
			if err := s.vacancies.Release(ctx, grant.SeatID); err != nil {
				return err
			}
		}
		if err := s.grants.DeleteByRound(ctx, roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grants")
		}
		if err := s.outcomes.DeleteByRound(ctx, roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete outcomes")
		}
		if err := s.rounds.MarkReopened(ctx, roundID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark round reopened")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, roundID)
	if s.metrics != nil {
		s.metrics.RoundReopened()
	}
	s.logger.Info("round reopened", zap.String("round_id", roundID))
	return nil
}

func (s *CloserService) invalidate(ctx context.Context, roundID string) {
	for _, prefix := range []string{"status:" + roundID, "ranked:" + roundID} {
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}
