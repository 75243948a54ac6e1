// README: Matching service; candidate scoring and the assignment transaction.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"homeserve/internal/config"
	"homeserve/internal/logger"
	"homeserve/internal/metrics"
	"homeserve/internal/modules/booking"
	"homeserve/internal/modules/location"
	"homeserve/internal/modules/provider"
	"homeserve/internal/types"
)

type ProviderStore interface {
	SelectCandidates(ctx context.Context, c provider.Criteria) ([]*provider.Provider, error)
	Get(ctx context.Context, id types.ID) (*provider.Provider, error)
	Plans(ctx context.Context) (provider.PlanTable, error)
}

type BookingStore interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	SetCoordinates(ctx context.Context, id types.ID, pt types.Point, locality string) error
	HasScheduleConflict(ctx context.Context, providerID, excludeID types.ID, dayStart, dayEnd time.Time) (bool, error)
	CommitAssignment(ctx context.Context, c booking.AssignmentCommit) error
}

type Geocoder interface {
	Resolve(ctx context.Context, text string) location.Place
}

type Proximity interface {
	Evaluate(ctx context.Context, s location.Subject) location.Proximity
}

type Notifier interface {
	AssignmentCommitted(bookingID, providerID, customerID types.ID)
	ExpiringSoon(providerID types.ID, daysLeft int)
}

type Deps struct {
	Providers ProviderStore
	Bookings  BookingStore
	Geocoder  Geocoder
	Proximity Proximity
	Notifier  Notifier
	Logger    logger.Logger
	Metrics   *metrics.Recorder
}

type Service struct {
	providers ProviderStore
	bookings  BookingStore
	geocoder  Geocoder
	proximity Proximity
	notifier  Notifier
	log       logger.Logger
	metrics   *metrics.Recorder
	workers   int
	loc       *time.Location
	now       func() time.Time
}

func NewService(d Deps, cfg config.MatchingConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		providers: d.Providers,
		bookings:  d.Bookings,
		geocoder:  d.Geocoder,
		proximity: d.Proximity,
		notifier:  d.Notifier,
		log:       logger.OrNop(d.Logger),
		metrics:   d.Metrics,
		workers:   workers,
		loc:       cfg.Location(),
		now:       time.Now,
	}
}

// FindCandidates lists providers near a free-text location, annotated with eligibility.
// It has no side effects besides advisory expiry notices.
func (s *Service) FindCandidates(ctx context.Context, q Query) ([]MatchResult, error) {
	if strings.TrimSpace(q.Location) == "" {
		return nil, fmt.Errorf("%w: location is required", ErrBadRequest)
	}
	place := s.geocoder.Resolve(ctx, q.Location)
	return s.match(ctx, place, q.Skills, nil)
}

// FindCandidatesForBooking uses the booking's cached coordinates and required skill.
// Coordinates geocoded here are not written back.
func (s *Service) FindCandidatesForBooking(ctx context.Context, bookingID types.ID) ([]MatchResult, error) {
	if bookingID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var skills []string
	if b.RequiredSkill != "" {
		skills = []string{b.RequiredSkill}
	}
	return s.match(ctx, s.bookingPlace(ctx, b), skills, b)
}

func (s *Service) bookingPlace(ctx context.Context, b *booking.Booking) location.Place {
	if b.Coordinates != nil {
		locality := b.Locality
		if locality == "" {
			locality = b.Location
		}
		pt := *b.Coordinates
		return location.Place{Resolution: location.Resolved, Coordinates: &pt, Locality: locality}
	}
	return s.geocoder.Resolve(ctx, b.Location)
}

func (s *Service) match(ctx context.Context, place location.Place, skills []string, b *booking.Booking) ([]MatchResult, error) {
	crit := provider.Criteria{Skills: skills}
	if place.Resolution != location.Resolved {
		crit.Locality = place.Locality
	}
	candidates, err := s.providers.SelectCandidates(ctx, crit)
	if err != nil {
		s.log.Errorf("select candidates: %v", err)
		return nil, ErrPersistence
	}
	plans, err := s.providers.Plans(ctx)
	if err != nil {
		s.log.Errorf("load plans: %v", err)
		return nil, ErrPersistence
	}

	now := s.now()
	var dayStart, dayEnd time.Time
	if b != nil {
		dayStart, dayEnd = booking.DayBounds(b.ScheduledTime, s.loc)
	}

	results := make([]*MatchResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, p := range candidates {
		g.Go(func() error {
			res := s.score(ctx, place, p, plans, now)
			if res != nil && b != nil && p.ID != derefID(b.ProviderID) {
				conflict, err := s.bookings.HasScheduleConflict(ctx, p.ID, b.ID, dayStart, dayEnd)
				if err != nil {
					s.log.Warnf("schedule check for %s: %v", p.ID, err)
				}
				res.HasScheduleConflict = conflict
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]MatchResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	location.SortByDistance(out, func(r MatchResult) (int, bool) {
		if r.DistanceMeters == nil {
			return 0, false
		}
		return *r.DistanceMeters, true
	})
	s.metrics.Candidates(len(out))
	return out, nil
}

// score returns nil when the provider is out of range.
func (s *Service) score(ctx context.Context, place location.Place, p *provider.Provider, plans provider.PlanTable, now time.Time) *MatchResult {
	prox := s.proximity.Evaluate(ctx, location.Subject{
		Origin:         place.Coordinates,
		OriginLocality: place.Locality,
		Target:         p.Coordinates,
		TargetLocality: p.Locality,
	})
	if !prox.Within {
		return nil
	}

	el := provider.Evaluate(p, plans, now)
	if el.ExpiringInDays > 0 && s.notifier != nil {
		s.notifier.ExpiringSoon(p.ID, el.ExpiringInDays)
	}

	res := &MatchResult{
		Provider:                  p,
		MatchedBy:                 prox.Strategy,
		IsEligible:                el.IsEligible,
		EligibilityReason:         el.Reason,
		BookingLimit:              el.BookingLimit,
		SubscriptionStatusMessage: el.SubscriptionStatusMessage,
	}
	if prox.Resolution == location.Resolved {
		m := prox.Meters
		res.DistanceMeters = &m
	}
	return res
}

// Assign re-validates the booking and provider and commits the assignment atomically.
// Errors are one of the package's sentinel errors, possibly wrapped with a reason.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*booking.Booking, error) {
	b, err := s.assign(ctx, cmd)
	s.metrics.Assignment(ErrorCode(err))
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			s.log.Errorf("assign booking=%s provider=%s: %v", cmd.BookingID, cmd.ProviderID, err)
		} else {
			s.log.Infof("assign booking=%s provider=%s rejected: %v", cmd.BookingID, cmd.ProviderID, err)
		}
		return nil, err
	}
	s.log.Infof("assign booking=%s provider=%s committed", cmd.BookingID, cmd.ProviderID)
	return b, nil
}

func (s *Service) assign(ctx context.Context, cmd AssignCommand) (*booking.Booking, error) {
	if cmd.BookingID == "" || cmd.ProviderID == "" {
		return nil, fmt.Errorf("%w: booking and provider ids are required", ErrBadRequest)
	}

	b, err := s.getBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusPending {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}

	p, err := s.providers.Get(ctx, cmd.ProviderID)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, cmd.ProviderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !p.Assignable() {
		return nil, fmt.Errorf("%w: %s", ErrIneligible, unassignableReason(p))
	}

	plans, err := s.providers.Plans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if el := provider.Evaluate(p, plans, s.now()); !el.IsEligible {
		return nil, fmt.Errorf("%w: %s", ErrIneligible, el.Reason)
	}

	place := s.bookingPlace(ctx, b)
	if b.Coordinates == nil && place.HasCoordinates() {
		if err := s.bookings.SetCoordinates(ctx, b.ID, *place.Coordinates, place.Locality); err != nil {
			s.log.Warnf("cache coordinates for booking %s: %v", b.ID, err)
		} else {
			b.Coordinates = place.Coordinates
			if b.Locality == "" {
				b.Locality = place.Locality
			}
		}
	}
	prox := s.proximity.Evaluate(ctx, location.Subject{
		Origin:         place.Coordinates,
		OriginLocality: place.Locality,
		Target:         p.Coordinates,
		TargetLocality: p.Locality,
	})
	if !prox.Within {
		if prox.Resolution == location.Resolved {
			return nil, fmt.Errorf("%w: provider is %d m away", ErrOutOfRange, prox.Meters)
		}
		return nil, fmt.Errorf("%w: provider is not in %s", ErrOutOfRange, place.Locality)
	}

	if b.RequiredSkill != "" && !p.HasSkill(b.RequiredSkill) {
		return nil, fmt.Errorf("%w: provider lacks %q", ErrSkillMismatch, b.RequiredSkill)
	}

	dayStart, dayEnd := booking.DayBounds(b.ScheduledTime, s.loc)
	err = s.bookings.CommitAssignment(ctx, booking.AssignmentCommit{
		BookingID:  b.ID,
		ProviderID: p.ID,
		ActorID:    cmd.ActorID,
		DayStart:   dayStart,
		DayEnd:     dayEnd,
	})
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrInvalidState):
		return nil, fmt.Errorf("%w: booking is no longer pending", ErrInvalidState)
	case errors.Is(err, booking.ErrScheduleConflict):
		return nil, fmt.Errorf("%w: provider already has a booking that day", ErrScheduleConflict)
	case errors.Is(err, booking.ErrProviderIneligible):
		return nil, fmt.Errorf("%w: provider quota or status changed", ErrIneligible)
	case errors.Is(err, booking.ErrProviderNotFound):
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, cmd.ProviderID)
	default:
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if s.notifier != nil {
		s.notifier.AssignmentCommitted(b.ID, p.ID, b.CustomerID)
	}

	pid := p.ID
	b.ProviderID = &pid
	b.Status = booking.StatusAssigned
	b.StatusVersion++
	now := s.now()
	b.AssignedAt = &now
	return b, nil
}

func (s *Service) getBooking(ctx context.Context, id types.ID) (*booking.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if errors.Is(err, booking.ErrNotFound) {
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return b, nil
}

func unassignableReason(p *provider.Provider) string {
	switch {
	case p.Role != provider.RoleProvider:
		return "user is not a provider"
	case p.Availability != provider.AvailabilityActive:
		return "provider is not active"
	default:
		return provider.ReasonPastDue
	}
}

// ErrorCode names the assignment outcome; nil is "committed".
func ErrorCode(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{ErrBadRequest, "bad_request"},
		{ErrNotFound, "not_found"},
		{ErrInvalidState, "invalid_state"},
		{ErrIneligible, "ineligible"},
		{ErrOutOfRange, "out_of_range"},
		{ErrSkillMismatch, "skill_mismatch"},
		{ErrScheduleConflict, "schedule_conflict"},
		{ErrPersistence, "persistence"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	if err != nil {
		return "error"
	}
	return "committed"
}

func derefID(id *types.ID) types.ID {
	if id == nil {
		return ""
	}
	return *id
}
