// README: Google Maps client shared by the geocoding and distance-matrix adapters.
package maps

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"googlemaps.github.io/maps"
)

// Response statuses reported by the Google web services.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusNotFound       = "NOT_FOUND"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusInvalidRequest = "INVALID_REQUEST"
)

// ErrNotConfigured is returned by every call when no API key was provided.
var ErrNotConfigured = errors.New("maps: api key not configured")

// StatusError reports a response the service answered with a non-OK status, either at
// the top level or for the single matrix element.
type StatusError struct {
	Status  string
	Element string
}

func (e *StatusError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("maps: status %s, element %s", e.Status, e.Element)
	}
	return "maps: status " + e.Status
}

type Options struct {
	APIKey   string
	Language string
	Region   string
	Timeout  time.Duration
	// BaseURL overrides the Google endpoint, used against local fakes.
	BaseURL string
}

// Client wraps the Google Maps web-service client.
type Client struct {
	client   *maps.Client
	language string
	region   string
	timeout  time.Duration
}

// NewClient creates a Client. An empty API key yields a client whose calls all fail
// with ErrNotConfigured so callers take their fallback path.
func NewClient(opts Options) (*Client, error) {
	c := &Client{language: opts.Language, region: opts.Region, timeout: opts.Timeout}
	if opts.APIKey == "" {
		return c, nil
	}
	clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	c.client = client
	return c, nil
}

var statusPattern = regexp.MustCompile(`maps: ([A-Z_]+) - `)

// classify turns the library's "maps: STATUS - message" errors into *StatusError.
// Transport errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		return &StatusError{Status: m[1]}
	}
	return err
}
