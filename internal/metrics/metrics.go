package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	transitions       *prometheus.CounterVec
	failures          *prometheus.CounterVec
	opDuration        *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	resourcesHeld     *prometheus.CounterVec
	resourcesReleased *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_transitions_total",
				Help: "Committed stage transitions",
			},
			[]string{"from", "to"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_operation_failures_total",
				Help: "Coordinator operations that failed, by error code",
			},
			[]string{"operation", "code"},
		),
		opDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "event_operation_duration_seconds",
				Help:    "Coordinator operation latency including the transaction",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"operation"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_snapshot_cache_lookups_total",
				Help: "Snapshot cache lookups by result",
			},
			[]string{"result"},
		),
		resourcesHeld: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resource_units_reserved_total",
				Help: "Resource units reserved on approval",
			},
			[]string{"resource_id"},
		),
		resourcesReleased: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resource_units_released_total",
				Help: "Resource units returned on completion or rejection",
			},
			[]string{"resource_id"},
		),
	}
}

// ObserveOperation records one coordinator call. code is empty on success.
func (m *Metrics) ObserveOperation(op string, started time.Time, code string) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if code != "" {
		m.failures.WithLabelValues(op, code).Inc()
	}
}

// Transition counts a committed stage change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Reserved counts units taken from a resource.
func (m *Metrics) Reserved(resourceID string, qty int) {
	if m == nil {
		return
	}
	m.resourcesHeld.WithLabelValues(resourceID).Add(float64(qty))
}

// Released counts units returned to a resource.
func (m *Metrics) Released(resourceID string, qty int) {
	if m == nil {
		return
	}
	m.resourcesReleased.WithLabelValues(resourceID).Add(float64(qty))
}

// CacheHit and CacheMiss count snapshot cache lookups.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}
