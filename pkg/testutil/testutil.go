// Package testutil provides testing utilities for prefabpool
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// StepUntil advances s one frame at a time until condition holds, failing the test
// after maxFrames frames. It returns the number of frames stepped.
func StepUntil(t testing.TB, s *scheduler.Scheduler, condition func() bool, maxFrames int) int {
	t.Helper()
	for i := 0; i < maxFrames; i++ {
		if condition() {
			return i
		}
		s.Step()
	}
	if condition() {
		return maxFrames
	}
	t.Fatalf("condition not met within %d frames", maxFrames)
	return maxFrames
}

// Projectile returns the template the simulation spawns: a body with a trail.
func Projectile() *asset.Template {
	trail := asset.New("Trail")
	trail.Transform.Position = hierarchy.Vec3{Z: -0.5}
	return asset.New("Projectile", asset.New("Body"), trail)
}

// Fixtures are the templates registered by NewMemoryLoader.
func Fixtures() map[string]*asset.Template {
	spark := asset.New("Spark")
	spark.Labels = map[string]string{"kind": "fx"}
	return map[string]*asset.Template{
		"fx/projectile": Projectile(),
		"fx/spark":      spark,
		"ui/marker":     asset.New("Marker"),
	}
}

// NewMemoryLoader returns a memory loader with Fixtures registered.
func NewMemoryLoader() *asset.MemoryLoader {
	m := asset.NewMemoryLoader()
	for path, tmpl := range Fixtures() {
		m.Register(path, tmpl)
	}
	return m
}
