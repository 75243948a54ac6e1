// README: Distance resolver; memoized point-to-point distance with bounded constant-delay retry.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"homeserve/internal/logger"
	"homeserve/internal/maps"
	"homeserve/internal/metrics"
	"homeserve/internal/types"
)

// ErrDistanceUnavailable is returned when no distance could be obtained. Callers fall
// back to locality matching.
var ErrDistanceUnavailable = errors.New("distance unavailable")

// DistanceAPI is the external distance service.
type DistanceAPI interface {
	DistanceMeters(ctx context.Context, origin, destination types.Point) (int, error)
}

type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

type DistanceResolver struct {
	api     DistanceAPI
	cache   *DistanceCache
	policy  RetryPolicy
	log     logger.Logger
	metrics *metrics.Recorder
}

func NewDistanceResolver(api DistanceAPI, cache *DistanceCache, policy RetryPolicy, log logger.Logger, rec *metrics.Recorder) *DistanceResolver {
	if cache == nil {
		cache = NewDistanceCache()
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &DistanceResolver{api: api, cache: cache, policy: policy, log: logger.OrNop(log), metrics: rec}
}

// DistanceMeters returns the travel distance from origin to destination. The cache is
// consulted before any network call. Transport errors are retried up to
// policy.Attempts times with a fixed delay; non-OK service statuses are not retried.
// Only successful answers are cached.
func (r *DistanceResolver) DistanceMeters(ctx context.Context, origin, destination types.Point) (int, error) {
	if !origin.Valid() || !destination.Valid() {
		return 0, fmt.Errorf("%w: invalid coordinates", ErrDistanceUnavailable)
	}
	if m, ok := r.cache.Get(origin, destination); ok {
		r.metrics.CacheHit()
		return m, nil
	}
	r.metrics.CacheMiss()
	if r.api == nil {
		return 0, fmt.Errorf("%w: no distance service", ErrDistanceUnavailable)
	}

	var meters int
	op := func() error {
		m, err := r.api.DistanceMeters(ctx, origin, destination)
		if err != nil {
			var se *maps.StatusError
			if errors.As(err, &se) || errors.Is(err, maps.ErrNotConfigured) {
				return backoff.Permanent(err)
			}
			r.log.Debugf("distance call %s -> %s failed: %v", origin, destination, err)
			return err
		}
		meters = m
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.policy.Delay), uint64(r.policy.Attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		var se *maps.StatusError
		if errors.As(err, &se) {
			r.metrics.ExternalCall("distance", "status")
		} else {
			r.metrics.ExternalCall("distance", "error")
		}
		r.log.Warnf("distance unavailable %s -> %s: %v", origin, destination, err)
		return 0, fmt.Errorf("%w: %w", ErrDistanceUnavailable, err)
	}

	r.metrics.ExternalCall("distance", "ok")
	r.cache.Put(origin, destination, meters)
	return meters, nil
}
