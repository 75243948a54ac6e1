// README: Provider aggregate, subscription tiers and plan limits.
package provider

import (
	"errors"
	"strings"
	"time"

	"homeserve/internal/types"
)

type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierElite:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

type Availability string

const (
	AvailabilityActive   Availability = "active"
	AvailabilityInactive Availability = "inactive"
)

const RoleProvider = "provider"

var (
	ErrNotFound   = errors.New("provider not found")
	ErrBadRequest = errors.New("bad request")
)

type Provider struct {
	ID                    types.ID
	Role                  string
	Skills                []string
	Coordinates           *types.Point
	Locality              string
	Availability          Availability
	Tier                  Tier
	SubscriptionStatus    SubscriptionStatus
	SubscriptionStartDate *time.Time
	CurrentBookingCount   int
}

// HasSkill reports whether the provider lists skill, ignoring case and surrounding space.
func (p *Provider) HasSkill(skill string) bool {
	want := strings.ToLower(strings.TrimSpace(skill))
	if want == "" {
		return true
	}
	for _, s := range p.Skills {
		if strings.ToLower(strings.TrimSpace(s)) == want {
			return true
		}
	}
	return false
}

// Assignable covers the provider-side commit preconditions that do not depend on quota.
func (p *Provider) Assignable() bool {
	return p.Role == RoleProvider &&
		p.Availability == AvailabilityActive &&
		p.SubscriptionStatus != SubscriptionPastDue
}

// Plan is the monthly booking cap of a tier. Zero means unlimited.
type Plan struct {
	Tier                Tier
	MonthlyBookingLimit int
}

// DefaultFreeLimit applies when no free plan row exists.
const DefaultFreeLimit = 5

// PlanTable maps tiers to monthly limits.
type PlanTable map[Tier]int

func NewPlanTable(plans []Plan) PlanTable {
	t := make(PlanTable, len(plans))
	for _, p := range plans {
		t[p.Tier] = p.MonthlyBookingLimit
	}
	return t
}

// Limit returns the tier's limit, falling back to the free tier and then DefaultFreeLimit.
func (t PlanTable) Limit(tier Tier) int {
	if l, ok := t[tier]; ok {
		return l
	}
	if l, ok := t[TierFree]; ok {
		return l
	}
	return DefaultFreeLimit
}
