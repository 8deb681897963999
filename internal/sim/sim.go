// Package sim is the demo workload: spawners that fire projectiles into a scene every
// frame and movers that fly them forward until their lifetime runs out and they fall
// back into the pool.
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	"github.com/ajitpratap0/prefabpool/pkg/metrics"
	"github.com/ajitpratap0/prefabpool/pkg/observability"
	"github.com/ajitpratap0/prefabpool/pkg/performance"
	"github.com/ajitpratap0/prefabpool/pkg/pool"
	"github.com/ajitpratap0/prefabpool/pkg/resource"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

// Names of the two spawners, used as log fields and metric labels.
const (
	SpawnerCoroutine = "coroutine"
	SpawnerTask      = "task"
)

// SceneRootName is the node spawned instances are parented to.
const SceneRootName = "SampleScene"

// coroutineInterval is how long the coroutine-style spawner waits between spawns.
const coroutineInterval = 10 * time.Millisecond

// Report summarizes a finished run.
type Report struct {
	Frames        int                        `json:"frames"`
	SimulatedTime time.Duration              `json:"simulated_time"`
	Spawned       map[string]int             `json:"spawned"`
	Throttled     int                        `json:"throttled"`
	PeakChildren  int                        `json:"peak_children"`
	Stats         pool.Stats                 `json:"stats"`
	Occupancy     []pool.Occupancy           `json:"occupancy"`
	Preloaded     map[string]int             `json:"preloaded,omitempty"`
	Rates         map[string]float64         `json:"rates,omitempty"`
	Usage         *performance.ResourceUsage `json:"usage,omitempty"`
	PeakRSS       uint64                     `json:"peak_rss,omitempty"`
	Errors        []string                   `json:"errors,omitempty"`
	Elapsed       time.Duration              `json:"elapsed"`
}

// Total returns the number of spawns across spawners.
func (r *Report) Total() int {
	total := 0
	for _, n := range r.Spawned {
		total += n
	}
	return total
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the simulation's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithTracer sets the tracer for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulation) { s.tracer = t }
}

// WithMeter sets the meter the spawn counter is created on.
func WithMeter(m metric.Meter) Option {
	return func(s *Simulation) { s.meter = m }
}

// WithMonitor samples process memory every report interval.
func WithMonitor(m *performance.ResourceMonitor) Option {
	return func(s *Simulation) { s.monitor = m }
}

// Simulation drives spawners and movers over a pool manager for a fixed number of
// simulated frames.
type Simulation struct {
	cfg   *config.Config
	world *hierarchy.World
	cache *resource.Cache
	pool  *pool.Manager
	sched *scheduler.Scheduler

	logger  *zap.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	monitor *performance.ResourceMonitor

	flags   pool.Flags
	limiter *rate.Limiter
	spawns  metric.Int64Counter
	rates   map[string]*metrics.RateTracker

	scene    *hierarchy.Node
	now      time.Time
	rotation float64
	report   *Report
}

// New creates a simulation. cfg must already be valid.
func New(cfg *config.Config, mgr *pool.Manager, sched *scheduler.Scheduler, opts ...Option) (*Simulation, error) {
	flags, ok := pool.ParseFlags(cfg.Pool.Flags)
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "unknown pool flags").WithDetail("flags", cfg.Pool.Flags)
	}
	s := &Simulation{
		cfg:   cfg,
		world: mgr.Cache().World(),
		cache: mgr.Cache(),
		pool:  mgr,
		sched: sched,
		flags: flags,
		rates: map[string]*metrics.RateTracker{
			SpawnerCoroutine: metrics.NewRateTracker(SpawnerCoroutine),
			SpawnerTask:      metrics.NewRateTracker(SpawnerTask),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.Or(s.logger, "sim")
	if s.tracer == nil {
		s.tracer = observability.Tracer()
	}
	if s.meter == nil {
		s.meter = otel.Meter(observability.ScopeName)
	}

	var err error
	s.spawns, err = s.meter.Int64Counter("prefabpool.sim.spawned",
		metric.WithDescription("Instances handed out by the simulation spawners"),
		metric.WithUnit("{instance}"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create spawn counter")
	}

	if cfg.Simulation.IsRateLimited() {
		limit := cfg.Simulation.SpawnRateLimit
		s.limiter = rate.NewLimiter(rate.Limit(limit), int(math.Max(1, math.Ceil(limit/float64(cfg.Simulation.FrameRate)))))
	}
	return s, nil
}

// Run preloads the configured spares, spawns for the configured duration and returns
// a report. Cancelling ctx stops the run early; the partial report is returned with
// an error of type errors.ErrorTypeCancelled.
func (s *Simulation) Run(ctx context.Context) (report *Report, err error) {
	sc := s.cfg.Simulation
	ctx, span := observability.StartSpan(ctx, s.tracer, "sim.run",
		attribute.String("mode", sc.Mode),
		attribute.Int("frames", sc.Frames()))
	defer func() { observability.EndSpan(span, err) }()

	started := time.Now()
	s.now = time.Unix(0, 0)
	s.rotation = 0
	s.report = &Report{
		Spawned:   map[string]int{},
		Preloaded: map[string]int{},
		Rates:     map[string]float64{},
	}

	s.cache.BindPostLoad(s, s.attachMover)
	defer s.cache.UnbindPostLoad(s)

	s.sched.Run(func() {
		s.preload()
		s.scene = s.world.NewRoot(SceneRootName)
	})

	spawnCtx, stop := context.WithCancel(context.WithValue(ctx, logger.SceneKey, s.world.ActiveScene().Name()))
	defer stop()
	if sc.Mode == config.ModeCoroutine || sc.Mode == config.ModeBoth {
		s.sched.Go(spawnCtx, SpawnerCoroutine, s.coroutineSpawner)
	}
	if sc.Mode == config.ModeTask || sc.Mode == config.ModeBoth {
		s.sched.Go(spawnCtx, SpawnerTask, s.taskSpawner)
	}

	dt := sc.FrameDuration()
	sampleEvery := 0
	if iv := s.cfg.Observability.ReportInterval; iv > 0 {
		sampleEvery = int(math.Max(1, math.Round(iv.Seconds()*float64(sc.FrameRate))))
	}

	frames := sc.Frames()
	for frame := 0; frame < frames && ctx.Err() == nil; frame++ {
		s.sched.Step()
		s.now = s.now.Add(dt)
		s.sched.Run(func() {
			UpdateTree(s.scene, dt)
			if c := s.scene.ChildCount(); c > s.report.PeakChildren {
				s.report.PeakChildren = c
			}
		})
		s.report.Frames++
		if sampleEvery > 0 && s.report.Frames%sampleEvery == 0 {
			s.sample()
		}
	}

	stop()
	s.sched.Drain(frames + 1)
	err = s.sched.Wait()
	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "simulation cancelled")
	}

	s.sched.Run(func() {
		if s.cfg.Pool.CollapseOnSceneChange {
			s.pool.CollapseAll(nil)
			s.world.LoadScene(s.world.ActiveScene().Name())
		}
		s.report.Stats = s.pool.Stats()
		s.report.Occupancy = s.pool.Occupancy()
	})
	s.sample()

	s.report.SimulatedTime = time.Duration(s.report.Frames) * dt
	s.report.Elapsed = time.Since(started)
	if s.monitor != nil {
		s.report.PeakRSS = s.monitor.PeakRSS()
	}
	if err != nil {
		s.report.Errors = append(s.report.Errors, err.Error())
	}

	s.logger.Info("simulation finished",
		zap.Int("frames", s.report.Frames),
		zap.Int("spawned", s.report.Total()),
		zap.Int("throttled", s.report.Throttled),
		zap.Int64("created", s.report.Stats.Created),
		zap.Int64("reused", s.report.Stats.Reused),
		zap.Duration("elapsed", s.report.Elapsed))
	return s.report, err
}

// preload builds the configured spares. A failing entry is logged and skipped.
func (s *Simulation) preload() {
	for _, entry := range s.cfg.Preload {
		if entry.Count == 0 {
			continue
		}
		if err := s.cache.AddPreloadPath(entry.Path, entry.Count); err != nil {
			s.logger.Error("preload failed", zap.String("path", entry.Path), zap.Error(err))
			s.report.Errors = append(s.report.Errors, fmt.Sprintf("preload %s: %v", entry.Path, err))
			continue
		}
		s.report.Preloaded[entry.Path] += entry.Count
	}
}

func (s *Simulation) sample() {
	for name, tracker := range s.rates {
		s.report.Rates[name] = tracker.Sample()
	}
	if s.monitor != nil {
		s.report.Usage = s.monitor.Sample()
	}
}

// attachMover gives every new projectile instance its movement behaviour.
func (s *Simulation) attachMover(tmpl *asset.Template, root *hierarchy.Node) {
	if b, ok := tmpl.Labels["behaviour"]; ok && b != "move-forward" {
		return
	}
	if _, ok := hierarchy.GetComponent[*Mover](root); ok {
		return
	}
	sc := s.cfg.Simulation
	root.AddComponent(NewMover(root, sc.Speed, sc.Lifetime))
}

// allow reports whether the rate limit leaves room for one more spawn this frame.
func (s *Simulation) allow() bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.AllowN(s.now, 1) {
		return true
	}
	s.report.Throttled++
	return false
}

// spawned aims n along the next rotation step and primes its mover.
func (s *Simulation) spawned(ctx context.Context, spawner string, n *hierarchy.Node) {
	sc := s.cfg.Simulation
	s.rotation = math.Mod(s.rotation+sc.RotationStep, 360)
	n.SetLocalRotation(hierarchy.Euler(0, s.rotation, 0))
	if m, ok := hierarchy.GetComponent[*Mover](n); ok {
		m.SetData(sc.Speed, sc.Lifetime)
	}

	s.report.Spawned[spawner]++
	s.rates[spawner].Increment(1)
	s.spawns.Add(ctx, 1, metric.WithAttributes(attribute.String("spawner", spawner)))
}

// stopOnMissing turns a missing template into a clean spawner exit.
func (s *Simulation) stopOnMissing(ctx context.Context, path string, err error) error {
	if errors.IsType(err, errors.ErrorTypeNotFound) {
		s.logger.With(logger.Fields(ctx)...).Warn("spawner stopped, template missing",
			zap.String("path", path))
		return nil
	}
	return err
}

// coroutineSpawner spawns SpawnPerFrame instances, then waits about ten
// milliseconds of simulated time before spawning again.
func (s *Simulation) coroutineSpawner(ctx context.Context, t *scheduler.Task) error {
	sc := s.cfg.Simulation
	wait := int(math.Max(1, math.Round(coroutineInterval.Seconds()*float64(sc.FrameRate))))
	for {
		for i := 0; i < sc.SpawnPerFrame; i++ {
			if !s.allow() {
				continue
			}
			n, err := s.pool.GetOrCreatePath(sc.Template, s.scene, s.flags)
			if err != nil {
				return s.stopOnMissing(ctx, sc.Template, err)
			}
			s.spawned(ctx, SpawnerCoroutine, n)
		}
		if err := t.WaitFrames(ctx, wait); err != nil {
			return err
		}
	}
}

// taskSpawner checks for cancellation before every request, resolves through the
// async path and yields once per frame.
func (s *Simulation) taskSpawner(ctx context.Context, t *scheduler.Task) error {
	sc := s.cfg.Simulation
	path := sc.TaskTemplatePath()
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeCancelled, "task spawner cancelled")
		}
		for i := 0; i < sc.SpawnPerFrame; i++ {
			if !s.allow() {
				continue
			}
			n, err := s.pool.GetOrCreateAsync(ctx, t, path, s.scene, s.flags)
			if err != nil {
				return s.stopOnMissing(ctx, path, err)
			}
			s.spawned(ctx, SpawnerTask, n)
		}
		if err := t.Yield(ctx); err != nil {
			return err
		}
	}
}
