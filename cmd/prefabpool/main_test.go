package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/prefabpool/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "prefabpool v"+version)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PREFABPOOL_SIMULATION_MODE", "task")
	t.Setenv("PREFABPOOL_SIMULATION_DURATION", "250ms")
	t.Setenv("PREFABPOOL_POOL_REUSE", "false")

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)
	assert.Equal(t, config.ModeTask, cfg.Simulation.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.Duration)
	assert.False(t, cfg.Pool.Reuse)
	assert.Equal(t, "fx/projectile", cfg.Simulation.Template, "untouched keys keep defaults")
}

func TestLoadConfigFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefabpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from-file
simulation:
  mode: coroutine
  frame_rate: 30
`), 0o600))
	t.Setenv("PREFABPOOL_SIMULATION_FRAME_RATE", "120")

	cfg, err := loadConfig(newViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, config.ModeCoroutine, cfg.Simulation.Mode)
	assert.Equal(t, 120, cfg.Simulation.FrameRate)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("PREFABPOOL_SIMULATION_MODE", "sideways")
	_, err := loadConfig(newViper(), "")
	require.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--duration", "100ms", "--mode", "coroutine", "--metrics=false", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"frames": 6`)
	assert.Contains(t, out, `"fx/projectile"`)
}

func TestRunCommandRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "run", "--duration", "100ms", "--flags", "sticky", "--log-level", "error")
	require.Error(t, err)
}

func TestTemplatesImportAndList(t *testing.T) {
	store := t.TempDir()

	out, err := execute(t, "templates", "import", "--store-dir", store, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "+ fx/projectile")
	assert.Contains(t, out, "+ fx/tracer")

	out, err = execute(t, "templates", "--loader", "store", "--store-dir", store, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "store loader")
	assert.Contains(t, out, "- fx/projectile")
	assert.Contains(t, out, "- fx/tracer")
}

func TestTemplatesMemoryLoader(t *testing.T) {
	out, err := execute(t, "templates", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "- fx/projectile")
}

func TestPrintMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "prefabpool_test_total", Help: "test"}, []string{"template"})
	reg.MustRegister(c)
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "other_total", Help: "ignored"}))
	c.WithLabelValues("fx/projectile").Add(3)

	var out bytes.Buffer
	require.NoError(t, printMetrics(&out, reg))
	assert.Contains(t, out.String(), "prefabpool_test_total{template=fx/projectile} 3")
	assert.NotContains(t, out.String(), "other_total")
}

func TestParseProfileTypes(t *testing.T) {
	assert.Equal(t, []string{"cpu", "memory"}, parseProfileTypes("cpu, mem"))
	assert.Equal(t, []string{"cpu", "memory", "block", "mutex", "goroutine"}, parseProfileTypes("all"))
	assert.Empty(t, parseProfileTypes("flame"))
}

func TestRunWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--duration", "50ms", "--mode", "coroutine", "--metrics=false",
		"--log-level", "error", "--profile-dir", dir, "--profile-types", "cpu,memory")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "cpu.prof"))
	assert.FileExists(t, filepath.Join(dir, "mem.prof"))
}
