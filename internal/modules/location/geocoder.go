// README: Geocoder adapter; resolves free text to coordinates and locality, degrading to the raw text.
package location

import (
	"context"
	"strings"

	"homeserve/internal/logger"
	"homeserve/internal/maps"
	"homeserve/internal/metrics"
)

// GeocodeAPI is the external geocoding service.
type GeocodeAPI interface {
	Geocode(ctx context.Context, address string) (maps.GeocodeResult, error)
}

type Geocoder struct {
	api     GeocodeAPI
	log     logger.Logger
	metrics *metrics.Recorder
}

func NewGeocoder(api GeocodeAPI, log logger.Logger, rec *metrics.Recorder) *Geocoder {
	return &Geocoder{api: api, log: logger.OrNop(log), metrics: rec}
}

// Resolve makes at most one external call. Text without a comma is taken as a bare
// locality name and never sent to the service. Any failure degrades to the original
// text as the locality.
func (g *Geocoder) Resolve(ctx context.Context, text string) Place {
	text = strings.TrimSpace(text)
	degraded := Place{Resolution: Degraded, Locality: text}
	if text == "" || !strings.Contains(text, ",") || g.api == nil {
		return degraded
	}

	res, err := g.api.Geocode(ctx, text)
	if err != nil {
		outcome := "error"
		if maps.IsZeroResults(err) {
			outcome = "zero_results"
		}
		g.metrics.ExternalCall("geocode", outcome)
		g.log.Warnf("geocode degraded for %q: %v", text, err)
		return degraded
	}
	if !res.Coordinates.Valid() {
		g.metrics.ExternalCall("geocode", "invalid")
		g.log.Warnf("geocode returned invalid coordinates for %q", text)
		return degraded
	}
	g.metrics.ExternalCall("geocode", "ok")

	locality := res.Locality
	if locality == "" {
		locality = text
	}
	pt := res.Coordinates
	return Place{Resolution: Resolved, Coordinates: &pt, Locality: locality}
}
