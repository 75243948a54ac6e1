// README: Booking aggregate and status definitions.
package booking

import (
	"time"

	"homeserve/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRejected   Status = "rejected"
)

type Booking struct {
	ID            types.ID
	CustomerID    types.ID
	ProviderID    *types.ID
	Location      string
	Coordinates   *types.Point
	Locality      string
	RequiredSkill string
	ScheduledTime time.Time
	Status        Status
	StatusVersion int
	CreatedAt     time.Time
	AssignedAt    *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

const (
	ActorAdmin    = "admin"
	ActorProvider = "provider"
	ActorCustomer = "customer"
	ActorSystem   = "system"
)

// AllowedTransitions represents the booking state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusRejected, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Holding reports whether a booking in status s occupies the provider's quota and day.
func Holding(s Status) bool {
	return s == StatusAssigned || s == StatusInProgress
}

func Terminal(s Status) bool {
	_, ok := AllowedTransitions[s]
	return !ok
}
