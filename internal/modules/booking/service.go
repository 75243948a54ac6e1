// README: Booking service implements lifecycle transitions after assignment.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"homeserve/internal/logger"
	"homeserve/internal/types"
)

var (
	ErrInvalidState       = errors.New("invalid state transition")
	ErrNotFound           = errors.New("booking not found")
	ErrConflict           = errors.New("booking state conflict")
	ErrBadRequest         = errors.New("bad request")
	ErrForbidden          = errors.New("booking belongs to another provider")
	ErrScheduleConflict   = errors.New("provider has another booking that day")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrProviderIneligible = errors.New("provider no longer eligible")
)

type Service struct {
	store *Store
	log   logger.Logger
}

func NewService(store *Store, log logger.Logger) *Service {
	return &Service{store: store, log: logger.OrNop(log)}
}

type CreateCommand struct {
	CustomerID    types.ID
	Location      string
	RequiredSkill string
	ScheduledTime time.Time
}

type AcceptCommand struct {
	BookingID  types.ID
	ProviderID types.ID
}

type RejectCommand struct {
	BookingID  types.ID
	ProviderID types.ID
}

type CompleteCommand struct {
	BookingID  types.ID
	ProviderID types.ID
}

type CancelCommand struct {
	BookingID types.ID
	ActorType string
	ActorID   *types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.CustomerID == "" || strings.TrimSpace(cmd.Location) == "" || cmd.ScheduledTime.IsZero() {
		return "", ErrBadRequest
	}
	id := types.NewID()
	now := time.Now()
	b := &Booking{
		ID:            id,
		CustomerID:    cmd.CustomerID,
		Location:      strings.TrimSpace(cmd.Location),
		RequiredSkill: strings.TrimSpace(cmd.RequiredSkill),
		ScheduledTime: cmd.ScheduledTime,
		Status:        StatusPending,
		CreatedAt:     now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return "", err
	}
	s.appendEvent(ctx, &Event{
		BookingID:  id,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  ActorCustomer,
		ActorID:    &cmd.CustomerID,
		CreatedAt:  now,
	})
	return id, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

// Accept starts work on an assigned booking.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	return s.providerTransition(ctx, cmd.BookingID, cmd.ProviderID, StatusInProgress, false)
}

// Reject hands an assigned booking back; the provider is cleared from the booking.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	return s.providerTransition(ctx, cmd.BookingID, cmd.ProviderID, StatusRejected, true)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	return s.providerTransition(ctx, cmd.BookingID, cmd.ProviderID, StatusCompleted, false)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if cmd.BookingID == "" {
		return ErrBadRequest
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	switch cmd.ActorType {
	case ActorCustomer:
		if cmd.ActorID == nil || *cmd.ActorID != b.CustomerID {
			return ErrForbidden
		}
	case ActorProvider:
		if cmd.ActorID == nil || b.ProviderID == nil || *cmd.ActorID != *b.ProviderID {
			return ErrForbidden
		}
	}
	return s.transition(ctx, b, StatusCancelled, cmd.ActorType, cmd.ActorID, false)
}

func (s *Service) providerTransition(ctx context.Context, bookingID, providerID types.ID, to Status, clearProvider bool) error {
	if bookingID == "" || providerID == "" {
		return ErrBadRequest
	}
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.ProviderID == nil || *b.ProviderID != providerID {
		if CanTransition(b.Status, to) {
			return ErrForbidden
		}
		return ErrInvalidState
	}
	return s.transition(ctx, b, to, ActorProvider, &providerID, clearProvider)
}

func (s *Service) transition(ctx context.Context, b *Booking, to Status, actorType string, actorID *types.ID, clearProvider bool) error {
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, to, b.StatusVersion, clearProvider)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: b.Status,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (s *Service) appendEvent(ctx context.Context, e *Event) {
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.log.Errorf("append booking event %s %s->%s: %v", e.BookingID, e.FromStatus, e.ToStatus, err)
	}
}
