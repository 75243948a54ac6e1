package maps

import (
	"context"

	"googlemaps.github.io/maps"

	"homeserve/internal/types"
)

// DistanceMeters returns the driving distance between two points using a 1x1
// Distance Matrix request. Non-OK statuses come back as *StatusError.
func (c *Client) DistanceMeters(ctx context.Context, origin, destination types.Point) (int, error) {
	if c.client == nil {
		return 0, ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin.String()},
		Destinations: []string{destination.String()},
		Mode:         maps.TravelModeDriving,
		Language:     c.language,
	})
	if err != nil {
		return 0, classify(err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0] == nil {
		return 0, &StatusError{Status: StatusOK, Element: StatusZeroResults}
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != StatusOK {
		return 0, &StatusError{Status: StatusOK, Element: el.Status}
	}
	return el.Distance.Meters, nil
}
