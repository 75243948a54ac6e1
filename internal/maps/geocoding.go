package maps

import (
	"context"
	"errors"
	"strings"

	"googlemaps.github.io/maps"

	"homeserve/internal/types"
)

// GeocodeResult is the first match for a free-text address.
type GeocodeResult struct {
	Coordinates      types.Point
	Locality         string
	FormattedAddress string
}

// localityTypes are checked in order when extracting the city component.
var localityTypes = []string{"locality", "postal_town", "administrative_area_level_2"}

// Geocode resolves address into coordinates and its locality component.
func (c *Client) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	if c.client == nil {
		return GeocodeResult{}, ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	results, err := c.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  address,
		Language: c.language,
		Region:   c.region,
	})
	if err != nil {
		return GeocodeResult{}, classify(err)
	}
	if len(results) == 0 {
		return GeocodeResult{}, &StatusError{Status: StatusZeroResults}
	}

	r := results[0]
	return GeocodeResult{
		Coordinates:      types.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		Locality:         extractLocality(r.AddressComponents),
		FormattedAddress: r.FormattedAddress,
	}, nil
}

func extractLocality(components []maps.AddressComponent) string {
	for _, want := range localityTypes {
		for _, comp := range components {
			for _, t := range comp.Types {
				if t == want {
					return comp.LongName
				}
			}
		}
	}
	return ""
}

// IsZeroResults reports whether err means the address matched nothing.
func IsZeroResults(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && strings.EqualFold(se.Status, StatusZeroResults)
}
