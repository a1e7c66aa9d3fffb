package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transition("", "pending_hod")
	m.Transition("pending_head", "approved")
	m.Transition("pending_head", "approved")
	m.Reserved("projector", 2)
	m.Released("projector", 2)
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("none", "pending_hod")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending_head", "approved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resourcesHeld.WithLabelValues("projector")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resourcesReleased.WithLabelValues("projector")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestMetrics_ObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("advance", time.Now(), "")
	m.ObserveOperation("advance", time.Now(), "WRONG_APPROVER")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("advance", "WRONG_APPROVER")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.opDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("a", "b")
		m.ObserveOperation("submit", time.Now(), "INTERNAL")
		m.Reserved("r", 1)
		m.Released("r", 1)
		m.CacheHit()
		m.CacheMiss()
	})
}
