// README: Renewal handler; the only writer of the booking counter besides assignment.
package provider

import (
	"context"
	"fmt"
	"time"

	"homeserve/internal/logger"
	"homeserve/internal/types"
)

// SubscriptionStore is the persistence needed by SubscriptionService.
type SubscriptionStore interface {
	Renew(ctx context.Context, id types.ID, tier Tier, start time.Time) error
	Cancel(ctx context.Context, id types.ID) error
	MarkPastDue(ctx context.Context, id types.ID) error
	UpsertPlan(ctx context.Context, p Plan) error
}

type SubscriptionService struct {
	store SubscriptionStore
	log   logger.Logger
	now   func() time.Time
}

func NewSubscriptionService(store SubscriptionStore, log logger.Logger) *SubscriptionService {
	return &SubscriptionService{store: store, log: logger.OrNop(log), now: time.Now}
}

type RenewCommand struct {
	ProviderID types.ID
	Tier       Tier
	// StartDate defaults to now.
	StartDate *time.Time
}

func (s *SubscriptionService) Renew(ctx context.Context, cmd RenewCommand) error {
	if cmd.ProviderID == "" || !cmd.Tier.Valid() {
		return ErrBadRequest
	}
	start := s.now()
	if cmd.StartDate != nil {
		start = *cmd.StartDate
	}
	if err := s.store.Renew(ctx, cmd.ProviderID, cmd.Tier, start); err != nil {
		return err
	}
	s.log.Infof("subscription renewed provider=%s tier=%s", cmd.ProviderID, cmd.Tier)
	return nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, id types.ID) error {
	if id == "" {
		return ErrBadRequest
	}
	if err := s.store.Cancel(ctx, id); err != nil {
		return err
	}
	s.log.Infof("subscription canceled provider=%s", id)
	return nil
}

func (s *SubscriptionService) MarkPastDue(ctx context.Context, id types.ID) error {
	if id == "" {
		return ErrBadRequest
	}
	if err := s.store.MarkPastDue(ctx, id); err != nil {
		return err
	}
	s.log.Infof("subscription past due provider=%s", id)
	return nil
}

func (s *SubscriptionService) SetPlanLimit(ctx context.Context, p Plan) error {
	if !p.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrBadRequest, p.Tier)
	}
	if p.MonthlyBookingLimit < 0 {
		return fmt.Errorf("%w: monthly booking limit must be >= 0", ErrBadRequest)
	}
	return s.store.UpsertPlan(ctx, p)
}
