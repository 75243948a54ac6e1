// README: Tagged results produced by the geocoder and the proximity chain.
package location

import "homeserve/internal/types"

// Resolution tags the outcome of a geo lookup.
type Resolution int

const (
	// Resolved means the lookup produced an authoritative answer.
	Resolved Resolution = iota
	// Degraded means only a locality name is usable.
	Degraded
	// Unavailable means no strategy could answer.
	Unavailable
)

func (r Resolution) String() string {
	switch r {
	case Resolved:
		return "resolved"
	case Degraded:
		return "degraded"
	default:
		return "unavailable"
	}
}

// Place is the result of resolving a location text.
type Place struct {
	Resolution  Resolution
	Coordinates *types.Point
	Locality    string
}

// HasCoordinates reports whether the place carries usable coordinates.
func (p Place) HasCoordinates() bool {
	return p.Coordinates != nil && p.Coordinates.Valid()
}

// Subject is one booking/provider pair to compare. Origin is the booking side.
type Subject struct {
	Origin         *types.Point
	OriginLocality string
	Target         *types.Point
	TargetLocality string
}

// Proximity is the answer of the proximity chain for one Subject.
type Proximity struct {
	Resolution Resolution
	// Strategy names the strategy that produced the answer.
	Strategy string
	// Meters is set only when Strategy is the distance strategy.
	Meters int
	Within bool
}
