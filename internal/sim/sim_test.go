package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/observability"
	"github.com/ajitpratap0/prefabpool/pkg/testutil"
)

func testConfig(mode string, duration time.Duration) *config.Config {
	cfg := config.NewDefault()
	cfg.Preload = nil
	cfg.Pool.CollapseOnSceneChange = false
	cfg.Simulation.Mode = mode
	cfg.Simulation.Duration = duration
	cfg.Simulation.TaskTemplate = "fx/spark"
	cfg.Simulation.Lifetime = time.Second
	return cfg
}

func newSimulation(t *testing.T, env *testutil.TestEnvironment, cfg *config.Config, opts ...Option) *Simulation {
	t.Helper()
	require.NoError(t, cfg.Validate())
	opts = append([]Option{WithLogger(testutil.TestLogger(t))}, opts...)
	s, err := New(cfg, env.Pool, env.Scheduler, opts...)
	require.NoError(t, err)
	return s
}

func TestRunRecyclesProjectiles(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, 3*time.Second)

	report, err := newSimulation(t, env, cfg).Run(env.Context())
	require.NoError(t, err)

	assert.Equal(t, 180, report.Frames)
	assert.Equal(t, 180, report.Spawned[SpawnerCoroutine])
	assert.Zero(t, report.Spawned[SpawnerTask])
	assert.Equal(t, int64(180), report.Stats.Created+report.Stats.Reused)
	assert.LessOrEqual(t, report.Stats.Created, int64(62), "a projectile lives for one second")
	assert.Greater(t, report.Stats.Reused, int64(100))
	assert.Equal(t, 3*time.Second, report.SimulatedTime.Round(time.Millisecond))

	require.Len(t, report.Occupancy, 1)
	assert.Equal(t, "fx/projectile", report.Occupancy[0].Path)
	assert.Equal(t, int(report.Stats.Created), report.Occupancy[0].Total())
	assert.Equal(t, int(report.Stats.Created), report.PeakChildren)
}

func TestRunTaskSpawner(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeTask, time.Second)
	env.Template(t, "fx/spark")

	report, err := newSimulation(t, env, cfg).Run(env.Context())
	require.NoError(t, err)

	assert.Equal(t, 60, report.Spawned[SpawnerTask])
	assert.Zero(t, report.Spawned[SpawnerCoroutine])
}

func TestRunBothSpawners(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeBoth, time.Second)
	env.Template(t, "fx/spark")

	report, err := newSimulation(t, env, cfg).Run(env.Context())
	require.NoError(t, err)

	assert.Equal(t, 60, report.Spawned[SpawnerCoroutine])
	assert.Equal(t, 60, report.Spawned[SpawnerTask])
	assert.Equal(t, 120, report.Total())
	assert.Len(t, report.Occupancy, 2)
}

func TestRunHandsOutPreloadedSpares(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, 50*time.Millisecond)
	cfg.Preload = []config.PreloadEntry{{Path: "fx/projectile", Count: 5}}

	report, err := newSimulation(t, env, cfg).Run(env.Context())
	require.NoError(t, err)

	tmpl := env.Template(t, "fx/projectile")
	assert.Equal(t, 3, report.Spawned[SpawnerCoroutine])
	assert.Equal(t, 5, report.Preloaded["fx/projectile"])
	assert.Equal(t, 2, env.Cache.PreloadCount(tmpl))

	scene := env.World.Find(SceneRootName)
	require.NotNil(t, scene)
	require.Equal(t, 3, scene.ChildCount())
	for _, n := range scene.Children() {
		_, ok := hierarchy.GetComponent[*Mover](n)
		assert.True(t, ok, "spares get their mover at preload time")
		assert.Equal(t, "Projectile", n.Name())
	}
}

func TestRunMissingTemplate(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, 100*time.Millisecond)
	cfg.Simulation.Template = "fx/missing"
	cfg.Preload = []config.PreloadEntry{{Path: "fx/missing", Count: 2}}

	core, logs := observer.New(zap.WarnLevel)
	report, err := newSimulation(t, env, cfg, WithLogger(zap.New(core))).Run(env.Context())
	require.NoError(t, err, "a missing template stops the spawner without failing the run")

	assert.Zero(t, report.Total())
	assert.Equal(t, 6, report.Frames)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "fx/missing")
	assert.Empty(t, report.Preloaded)

	stopped := logs.FilterMessage("spawner stopped, template missing").All()
	require.Len(t, stopped, 1)
	fields := stopped[0].ContextMap()
	assert.Equal(t, SpawnerCoroutine, fields["task"])
	assert.Equal(t, "test", fields["scene"])
}

func TestRunRateLimited(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, time.Second)
	cfg.Simulation.SpawnPerFrame = 10
	cfg.Simulation.SpawnRateLimit = 60

	report, err := newSimulation(t, env, cfg).Run(env.Context())
	require.NoError(t, err)

	assert.Equal(t, 600, report.Total()+report.Throttled)
	assert.LessOrEqual(t, report.Total(), 61)
	assert.Greater(t, report.Total(), 0)
}

func TestRunCancelled(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeBoth, time.Second)

	ctx, cancel := context.WithCancel(env.Context())
	cancel()

	report, err := newSimulation(t, env, cfg).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
	require.NotNil(t, report)
	assert.Zero(t, report.Frames)
	assert.Zero(t, report.Total())
	assert.Zero(t, env.Scheduler.Live())
}

func TestRunCollapsesOnSceneChange(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, 500*time.Millisecond)
	cfg.Pool.CollapseOnSceneChange = true

	report, err := newSimulation(t, env, cfg).Run(env.Context())
	require.NoError(t, err)

	assert.Nil(t, env.World.Find(SceneRootName), "the scene was unloaded")
	require.Len(t, report.Occupancy, 1)
	assert.Zero(t, report.Occupancy[0].Enabled)
	assert.Equal(t, 30, report.Occupancy[0].Disabled)

	tmpl := env.Template(t, "fx/projectile")
	assert.Equal(t, 30, env.Pool.DisabledCount(tmpl))
	assert.Equal(t, 30, env.Pool.Root().ChildCount())
}

func TestRunCountsSpawns(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, 250*time.Millisecond)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	report, err := newSimulation(t, env, cfg, WithMeter(mp.Meter("test"))).Run(env.Context())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	v, ok := observability.CounterValue(rm, "prefabpool.sim.spawned")
	require.True(t, ok)
	assert.Equal(t, int64(report.Total()), v)
}

func TestNewRejectsBadFlags(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	cfg := testConfig(config.ModeCoroutine, time.Second)
	cfg.Pool.Flags = "sticky"

	_, err := New(cfg, env.Pool, env.Scheduler)
	require.Error(t, err)
}
