package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/internal/sim"
	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/json"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	"github.com/ajitpratap0/prefabpool/pkg/observability"
	"github.com/ajitpratap0/prefabpool/pkg/performance"
	"github.com/ajitpratap0/prefabpool/pkg/pool"
	"github.com/ajitpratap0/prefabpool/pkg/resource"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

func newRunCommand(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	var profileDir, profileTypes string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the spawn simulation",
		Long: `Run the spawn simulation: preload spares, fire projectiles from the configured
spawners for the configured duration and print a JSON report.

Every setting can also come from a config file (--config) or a PREFABPOOL_* environment
variable, e.g. PREFABPOOL_SIMULATION_DURATION=10s.

Example:
  prefabpool run --duration 10s --mode task --spawn-per-frame 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.Get()
			prof, err := startProfiler(profileDir, profileTypes, log)
			if err != nil {
				return err
			}
			defer prof.Stop()
			return runSimulation(cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.Duration("duration", 5*time.Second, "Simulated run length")
	f.String("mode", config.ModeBoth, "Spawner style (coroutine, task, both)")
	f.Int("frame-rate", 60, "Frames per simulated second")
	f.Int("spawn-per-frame", 1, "Instances each spawner requests per frame")
	f.Float64("rate-limit", 0, "Maximum spawns per simulated second across spawners (0 = unlimited)")
	f.Duration("lifetime", 2*time.Second, "How long a projectile stays active")
	f.String("template", "fx/projectile", "Template the coroutine spawner requests")
	f.String("task-template", "fx/tracer", "Template the task spawner requests")
	f.String("flags", "reset-on-return", "Instance flags (hold-parent|manual-return|reset-on-return)")
	f.Bool("reuse", true, "Reuse disabled instances")
	f.Bool("preload", true, "Hand out preloaded spares before building new instances")
	f.Bool("editor", false, "Record provenance on every instance and warn on cache conflicts")
	f.Bool("trace", false, "Export spans to stderr")
	f.Bool("metrics", true, "Print pool metrics after the run")
	f.StringVar(&profileDir, "profile-dir", "", "Write pprof profiles of the run to this directory")
	f.StringVar(&profileTypes, "profile-types", "cpu,memory", "Profile types (cpu,memory,block,mutex,goroutine,all)")

	for key, flag := range map[string]string{
		"simulation.duration":          "duration",
		"simulation.mode":              "mode",
		"simulation.frame_rate":        "frame-rate",
		"simulation.spawn_per_frame":   "spawn-per-frame",
		"simulation.spawn_rate_limit":  "rate-limit",
		"simulation.lifetime":          "lifetime",
		"simulation.template":          "template",
		"simulation.task_template":     "task-template",
		"pool.flags":                   "flags",
		"pool.reuse":                   "reuse",
		"resource.use_preload":         "preload",
		"resource.editor_mode":         "editor",
		"observability.enable_tracing": "trace",
		"observability.enable_metrics": "metrics",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func runSimulation(out io.Writer, cfg *config.Config) error {
	log := logger.Get().With(zap.String("component", "prefabpool-cli"), zap.String("run", cfg.Name))

	ctx, cancel := signalContext()
	defer cancel()

	src, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to close template source", zap.Error(err))
		}
	}()

	obs := observability.DefaultConfig()
	obs.ServiceName = cfg.Name
	obs.ServiceVersion = cfg.Version
	obs.SamplingRate = cfg.Observability.TracingSampleRate
	obs.EnableMetrics = cfg.Observability.EnableMetrics
	if cfg.Observability.EnableTracing {
		obs.TraceExporter = "stdout"
		obs.TraceWriter = os.Stderr
	}
	provider, err := observability.New(ctx, obs)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	world := hierarchy.NewWorld("main")
	ropts := []resource.Option{resource.WithLogger(log), resource.WithTracer(provider.Tracer())}
	if cfg.Resource.EditorMode {
		ropts = append(ropts, resource.WithEditorMode())
	}
	cache := resource.New(world, src, ropts...)
	mgr := pool.NewManager(cache,
		pool.WithLogger(log),
		pool.WithReuse(cfg.Pool.Reuse),
		pool.WithPreload(cfg.Resource.UsePreload))
	sched := scheduler.New(scheduler.WithLogger(log))

	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithTracer(provider.Tracer()),
		sim.WithMeter(provider.Meter(observability.ScopeName)),
	}
	if monitor, err := performance.NewResourceMonitor(); err != nil {
		log.Warn("resource monitoring unavailable", zap.Error(err))
	} else {
		opts = append(opts, sim.WithMonitor(monitor))
	}

	s, err := sim.New(cfg, mgr, sched, opts...)
	if err != nil {
		return err
	}

	log.Info("starting simulation",
		zap.String("mode", cfg.Simulation.Mode),
		zap.Duration("duration", cfg.Simulation.Duration),
		zap.Int("frame_rate", cfg.Simulation.FrameRate),
		zap.Int("preload", cfg.PreloadTotal()))

	report, runErr := s.Run(ctx)
	if report != nil {
		if err := json.WriteTo(out, report, "  "); err != nil {
			return err
		}
	}
	sched.Run(mgr.LogOccupancy)

	if cfg.Observability.EnableMetrics {
		if rm, err := provider.Collect(ctx); err == nil {
			if n, ok := observability.CounterValue(rm, "prefabpool.sim.spawned"); ok {
				fmt.Fprintf(out, "\nspawned (otel): %d\n", n)
			}
		}
		if err := printMetrics(out, prometheus.DefaultGatherer); err != nil {
			log.Warn("failed to gather metrics", zap.Error(err))
		}
	}
	return runErr
}

// printMetrics writes one line per prefabpool series.
func printMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "prefabpool_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	fmt.Fprintln(out, "\nmetrics:")
	for _, l := range lines {
		fmt.Fprintf(out, "  %s\n", l)
	}
	return nil
}
