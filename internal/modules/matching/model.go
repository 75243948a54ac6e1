// README: Matching results and the typed assignment errors.
package matching

import (
	"errors"

	"homeserve/internal/modules/provider"
	"homeserve/internal/types"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrIneligible       = errors.New("ineligible")
	ErrOutOfRange       = errors.New("out of range")
	ErrSkillMismatch    = errors.New("skill mismatch")
	ErrScheduleConflict = errors.New("schedule conflict")
	// ErrPersistence is retryable; no partial state is left behind.
	ErrPersistence = errors.New("persistence failure")
)

// MatchResult is produced per request and never stored.
type MatchResult struct {
	Provider *provider.Provider
	// DistanceMeters is nil when the provider matched on locality.
	DistanceMeters            *int
	MatchedBy                 string
	IsEligible                bool
	EligibilityReason         string
	BookingLimit              int
	SubscriptionStatusMessage string
	// HasScheduleConflict is only computed for stored bookings.
	HasScheduleConflict bool
}

type Query struct {
	Location string
	Skills   []string
}

type AssignCommand struct {
	BookingID  types.ID
	ProviderID types.ID
	ActorID    *types.ID
}
