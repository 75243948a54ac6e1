// README: Proximity chain; ordered strategies deciding whether a provider is close enough to a booking.
package location

import (
	"context"

	"homeserve/internal/types"
)

const (
	StrategyDistance = "distance"
	StrategyLocality = "locality"
)

// ProximityStrategy answers for one Subject or reports Unavailable to pass control to
// the next strategy.
type ProximityStrategy interface {
	Name() string
	Evaluate(ctx context.Context, s Subject) Proximity
}

// DistanceSource is satisfied by *DistanceResolver.
type DistanceSource interface {
	DistanceMeters(ctx context.Context, origin, destination types.Point) (int, error)
}

type distanceStrategy struct {
	source    DistanceSource
	maxMeters int
}

// NewDistanceStrategy includes targets within maxMeters; maxMeters <= 0 disables the limit.
func NewDistanceStrategy(source DistanceSource, maxMeters int) ProximityStrategy {
	return distanceStrategy{source: source, maxMeters: maxMeters}
}

func (d distanceStrategy) Name() string { return StrategyDistance }

func (d distanceStrategy) Evaluate(ctx context.Context, s Subject) Proximity {
	if s.Origin == nil || s.Target == nil || d.source == nil {
		return Proximity{Resolution: Unavailable, Strategy: StrategyDistance}
	}
	m, err := d.source.DistanceMeters(ctx, *s.Origin, *s.Target)
	if err != nil {
		return Proximity{Resolution: Unavailable, Strategy: StrategyDistance}
	}
	return Proximity{
		Resolution: Resolved,
		Strategy:   StrategyDistance,
		Meters:     m,
		Within:     d.maxMeters <= 0 || m <= d.maxMeters,
	}
}

type localityStrategy struct{}

// NewLocalityStrategy matches on case-insensitive, trimmed locality equality.
func NewLocalityStrategy() ProximityStrategy { return localityStrategy{} }

func (localityStrategy) Name() string { return StrategyLocality }

func (localityStrategy) Evaluate(_ context.Context, s Subject) Proximity {
	if NormalizeLocality(s.OriginLocality) == "" || NormalizeLocality(s.TargetLocality) == "" {
		return Proximity{Resolution: Unavailable, Strategy: StrategyLocality}
	}
	return Proximity{
		Resolution: Degraded,
		Strategy:   StrategyLocality,
		Within:     SameLocality(s.OriginLocality, s.TargetLocality),
	}
}

// ProximityChain runs strategies in order; the first answer that is not Unavailable wins.
type ProximityChain struct {
	strategies []ProximityStrategy
}

func NewProximityChain(strategies ...ProximityStrategy) *ProximityChain {
	return &ProximityChain{strategies: strategies}
}

// DefaultProximityChain is distance first, then locality equality.
func DefaultProximityChain(source DistanceSource, maxMeters int) *ProximityChain {
	return NewProximityChain(NewDistanceStrategy(source, maxMeters), NewLocalityStrategy())
}

func (c *ProximityChain) Evaluate(ctx context.Context, s Subject) Proximity {
	for _, st := range c.strategies {
		if p := st.Evaluate(ctx, s); p.Resolution != Unavailable {
			return p
		}
	}
	return Proximity{Resolution: Unavailable}
}
