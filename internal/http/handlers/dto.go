// README: Response shapes shared by handlers.
package handlers

import (
	"time"

	"homeserve/internal/modules/booking"
	"homeserve/internal/modules/matching"
	"homeserve/internal/types"
)

type candidateResponse struct {
	ProviderID                string       `json:"provider_id"`
	Skills                    []string     `json:"skills"`
	Locality                  string       `json:"locality"`
	Coordinates               *types.Point `json:"coordinates,omitempty"`
	DistanceMeters            *int         `json:"distance_meters,omitempty"`
	MatchedBy                 string       `json:"matched_by"`
	IsEligible                bool         `json:"is_eligible"`
	EligibilityReason         string       `json:"eligibility_reason,omitempty"`
	BookingLimit              int          `json:"booking_limit"`
	CurrentBookingCount       int          `json:"current_booking_count"`
	SubscriptionTier          string       `json:"subscription_tier"`
	SubscriptionStatusMessage string       `json:"subscription_status_message,omitempty"`
	HasScheduleConflict       bool         `json:"has_schedule_conflict,omitempty"`
}

func toCandidates(rs []matching.MatchResult) []candidateResponse {
	out := make([]candidateResponse, 0, len(rs))
	for _, r := range rs {
		p := r.Provider
		out = append(out, candidateResponse{
			ProviderID:                string(p.ID),
			Skills:                    p.Skills,
			Locality:                  p.Locality,
			Coordinates:               p.Coordinates,
			DistanceMeters:            r.DistanceMeters,
			MatchedBy:                 r.MatchedBy,
			IsEligible:                r.IsEligible,
			EligibilityReason:         r.EligibilityReason,
			BookingLimit:              r.BookingLimit,
			CurrentBookingCount:       p.CurrentBookingCount,
			SubscriptionTier:          string(p.Tier),
			SubscriptionStatusMessage: r.SubscriptionStatusMessage,
			HasScheduleConflict:       r.HasScheduleConflict,
		})
	}
	return out
}

type bookingResponse struct {
	ID            string       `json:"booking_id"`
	CustomerID    string       `json:"customer_id"`
	ProviderID    *string      `json:"provider_id"`
	Location      string       `json:"location"`
	Coordinates   *types.Point `json:"coordinates,omitempty"`
	RequiredSkill string       `json:"required_skill,omitempty"`
	ScheduledTime time.Time    `json:"scheduled_time"`
	Status        string       `json:"status"`
}

func toBooking(b *booking.Booking) bookingResponse {
	res := bookingResponse{
		ID:            string(b.ID),
		CustomerID:    string(b.CustomerID),
		Location:      b.Location,
		Coordinates:   b.Coordinates,
		RequiredSkill: b.RequiredSkill,
		ScheduledTime: b.ScheduledTime,
		Status:        string(b.Status),
	}
	if b.ProviderID != nil {
		p := string(*b.ProviderID)
		res.ProviderID = &p
	}
	return res
}
