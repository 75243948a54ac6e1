// README: Eligibility evaluator; pure quota and subscription arithmetic.
package provider

import (
	"fmt"
	"math"
	"time"
)

const (
	ReasonPastDue = "payment past due"

	// ExpiryNoticeDays is the window before renewal in which providers are warned.
	ExpiryNoticeDays = 3
)

type Eligibility struct {
	IsEligible   bool
	Reason       string
	BookingLimit int
	// SubscriptionStatusMessage is advisory and never affects IsEligible.
	SubscriptionStatusMessage string
	// ExpiringInDays is set when the advisory message is present.
	ExpiringInDays int
}

// Evaluate applies, in order: past-due status, then the monthly quota. It does not mutate p.
func Evaluate(p *Provider, plans PlanTable, now time.Time) Eligibility {
	e := Eligibility{IsEligible: true, BookingLimit: plans.Limit(p.Tier)}

	switch {
	case p.SubscriptionStatus == SubscriptionPastDue:
		e.IsEligible = false
		e.Reason = ReasonPastDue
	case e.BookingLimit > 0 && p.CurrentBookingCount >= e.BookingLimit:
		e.IsEligible = false
		e.Reason = LimitReason(e.BookingLimit)
	}

	if days, ok := DaysUntilExpiry(p, now); ok && days > 0 && days <= ExpiryNoticeDays {
		e.ExpiringInDays = days
		e.SubscriptionStatusMessage = ExpiryMessage(days)
	}
	return e
}

func LimitReason(limit int) string {
	return fmt.Sprintf("monthly limit of %d reached", limit)
}

func ExpiryMessage(days int) string {
	if days == 1 {
		return "subscription expires in 1 day"
	}
	return fmt.Sprintf("subscription expires in %d days", days)
}

// DaysUntilExpiry rounds up the time left until one month after the subscription start.
// Free tier and unknown start dates report ok=false.
func DaysUntilExpiry(p *Provider, now time.Time) (int, bool) {
	if p.Tier == TierFree || p.Tier == "" || p.SubscriptionStartDate == nil {
		return 0, false
	}
	renewal := p.SubscriptionStartDate.AddDate(0, 1, 0)
	left := renewal.Sub(now)
	return int(math.Ceil(left.Hours() / 24)), true
}
