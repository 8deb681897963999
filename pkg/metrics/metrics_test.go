package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTemplateLabel(t *testing.T) {
	assert.Equal(t, "fx/bullet", TemplateLabel("fx/bullet", "Bullet"))
	assert.Equal(t, "Bullet", TemplateLabel("", "Bullet"))
	assert.Equal(t, "unknown", TemplateLabel("", ""))
}

func TestRateTracker(t *testing.T) {
	start := time.Unix(100, 0)
	clock := start
	tr := NewRateTracker("metrics-test")
	tr.now = func() time.Time { return clock }
	tr.lastReset = start

	tr.Increment(30)
	clock = start.Add(2 * time.Second)
	assert.InDelta(t, 15.0, tr.Sample(), 1e-9)
	assert.InDelta(t, 15.0, testutil.ToFloat64(SpawnRate.WithLabelValues("metrics-test")), 1e-9)

	assert.Zero(t, tr.Sample(), "no time has passed")
}

func TestTimer(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "timer_test_seconds", Help: "test"})
	d := NewTimer().ObserveTo(h)
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, 1, testutil.CollectAndCount(h))
}

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(InstancesCreated.WithLabelValues("metrics-test"))
	InstancesCreated.WithLabelValues("metrics-test").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(InstancesCreated.WithLabelValues("metrics-test")))
}
