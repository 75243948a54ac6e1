// README: Domain events and the channels they are delivered on.
package notify

import (
	"time"

	"github.com/google/uuid"

	"homeserve/internal/types"
)

type EventType string

const (
	ProviderAssigned         EventType = "providerAssigned"
	BookingAssigned          EventType = "bookingAssigned"
	AdminBookingAssigned     EventType = "adminBookingAssigned"
	SubscriptionExpiringSoon EventType = "subscriptionExpiringSoon"
)

type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	BookingID  types.ID  `json:"booking_id,omitempty"`
	ProviderID types.ID  `json:"provider_id,omitempty"`
	CustomerID types.ID  `json:"customer_id,omitempty"`
	DaysLeft   int       `json:"days_left,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

const AdminChannel = "admin"

func ProviderChannel(id types.ID) string { return "provider:" + string(id) }

func CustomerChannel(id types.ID) string { return "customer:" + string(id) }
