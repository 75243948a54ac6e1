// README: Prometheus collectors for matching, assignment and notification fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records dispatch-engine metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	cacheLookups  *prometheus.CounterVec
	externalCalls *prometheus.CounterVec
	assignments   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	candidates    prometheus.Histogram
}

// New registers the collectors on the default Prometheus registerer.
func New() (*Recorder, error) {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. A nil registerer defaults to the
// global registerer. Collectors already registered by an earlier call are reused.
func NewWithRegistry(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distance_cache_lookups_total",
			Help: "Distance cache lookups by result",
		}, []string{"result"}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "external_calls_total",
			Help: "Calls to external geo services by service and outcome",
		}, []string{"service", "outcome"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignments_total",
			Help: "Assignment attempts by outcome",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Published notifications by event type and outcome",
		}, []string{"event", "outcome"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matching_candidates",
			Help:    "Number of providers returned per matching request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}

	var err error
	if r.cacheLookups, err = register(reg, r.cacheLookups); err != nil {
		return nil, err
	}
	if r.externalCalls, err = register(reg, r.externalCalls); err != nil {
		return nil, err
	}
	if r.assignments, err = register(reg, r.assignments); err != nil {
		return nil, err
	}
	if r.notifications, err = register(reg, r.notifications); err != nil {
		return nil, err
	}
	if r.candidates, err = register(reg, r.candidates); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// CacheHit counts a distance cache hit.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss counts a distance cache miss.
func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// ExternalCall counts one call to service ("geocode", "distance") with its outcome.
func (r *Recorder) ExternalCall(service, outcome string) {
	if r == nil {
		return
	}
	r.externalCalls.WithLabelValues(service, outcome).Inc()
}

// Assignment counts an assignment attempt outcome ("committed", "invalid_state", ...).
func (r *Recorder) Assignment(outcome string) {
	if r == nil {
		return
	}
	r.assignments.WithLabelValues(outcome).Inc()
}

// Notification counts a publish attempt.
func (r *Recorder) Notification(event, outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(event, outcome).Inc()
}

// Candidates observes the size of a matching result list.
func (r *Recorder) Candidates(n int) {
	if r == nil {
		return
	}
	r.candidates.Observe(float64(n))
}
