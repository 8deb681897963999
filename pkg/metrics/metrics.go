// Package metrics exposes Prometheus collectors for pool and cache activity.
//
// All collectors register with the default registry through promauto. Labels use the
// template's source path, or its name when it was never loaded from a path:
//
//	metrics.InstancesCreated.WithLabelValues(metrics.TemplateLabel(tmpl.Path, tmpl.Name)).Inc()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution results for TemplateResolutions.
const (
	ResultHit      = "hit"
	ResultLoaded   = "loaded"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Resolution modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

var (
	// InstancesCreated counts instances built because no pooled instance could be reused.
	InstancesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_instances_created_total",
			Help: "Instances created on a pool miss",
		},
		[]string{"template"},
	)

	// InstancesReused counts requests satisfied from the disabled set.
	InstancesReused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_instances_reused_total",
			Help: "Instances reused from the disabled set",
		},
		[]string{"template"},
	)

	// InstancesReturned counts instances moved back into the disabled set.
	InstancesReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_instances_returned_total",
			Help: "Instances returned to the pool",
		},
		[]string{"template"},
	)

	// InstancesDestroyed counts pooled instances removed from bookkeeping.
	InstancesDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_instances_destroyed_total",
			Help: "Pooled instances destroyed",
		},
		[]string{"template"},
	)

	// PoolEnabled is the current enabled-set size per template.
	PoolEnabled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prefabpool_pool_enabled",
			Help: "Instances currently in use",
		},
		[]string{"template"},
	)

	// PoolDisabled is the current disabled-set size per template.
	PoolDisabled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prefabpool_pool_disabled",
			Help: "Instances available for reuse",
		},
		[]string{"template"},
	)

	// TemplateResolutions counts cache lookups by mode and result.
	TemplateResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_template_resolutions_total",
			Help: "Template resolutions by mode and result",
		},
		[]string{"mode", "result"},
	)

	// TemplateLoadSeconds is the latency of underlying loader calls.
	TemplateLoadSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "prefabpool_template_load_seconds",
			Help: "Latency of template loads that missed the cache",
			Buckets: []float64{
				0.0001, // 100µs - in-memory loads
				0.001,  // 1ms - small files
				0.01,   // 10ms - compressed files
				0.1,    // 100ms - large trees
				1,
			},
		},
		[]string{"mode"},
	)

	// PreloadSpares is the number of spares waiting per template.
	PreloadSpares = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prefabpool_preload_spares",
			Help: "Preloaded spare instances waiting to be consumed",
		},
		[]string{"template"},
	)

	// PreloadConsumed counts spares handed out by Instantiate.
	PreloadConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefabpool_preload_consumed_total",
			Help: "Preloaded spares consumed",
		},
		[]string{"template"},
	)

	// SpawnRate is the most recent spawns-per-second sample per spawner.
	SpawnRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prefabpool_spawn_rate_per_second",
			Help: "Spawn rate of a simulation spawner",
		},
		[]string{"spawner"},
	)

	// ResidentMemory is the process resident set size sampled by the simulation.
	ResidentMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prefabpool_process_resident_bytes",
			Help: "Resident memory of the process in bytes",
		},
	)
)

// TemplateLabel picks the label value for a template.
func TemplateLabel(path, name string) string {
	if path != "" {
		return path
	}
	if name != "" {
		return name
	}
	return "unknown"
}

// Timer measures one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveTo records the elapsed seconds on o and returns the elapsed duration.
func (t *Timer) ObserveTo(o prometheus.Observer) time.Duration {
	d := time.Since(t.start)
	o.Observe(d.Seconds())
	return d
}

// RateTracker turns a running count into a per-second SpawnRate sample.
// Safe for concurrent use.
type RateTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	spawner   string
	now       func() time.Time
}

// NewRateTracker creates a tracker reporting under the given spawner label.
func NewRateTracker(spawner string) *RateTracker {
	return &RateTracker{spawner: spawner, lastReset: time.Now(), now: time.Now}
}

// Increment adds n to the count.
func (t *RateTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// Sample computes the rate since the previous sample, publishes it and resets the count.
func (t *RateTracker) Sample() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	elapsed := now.Sub(t.lastReset).Seconds()
	if elapsed <= 0 {
		return 0
	}
	rate := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = now
	SpawnRate.WithLabelValues(t.spawner).Set(rate)
	return rate
}
