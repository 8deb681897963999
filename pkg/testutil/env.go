package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/pool"
	"github.com/ajitpratap0/prefabpool/pkg/resource"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

// TestEnvironment wires a world, cache, pool manager and scheduler the way the
// simulation does, with every component logging to the test output.
type TestEnvironment struct {
	World     *hierarchy.World
	Loader    *asset.MemoryLoader
	Cache     *resource.Cache
	Pool      *pool.Manager
	Scheduler *scheduler.Scheduler

	ctx context.Context
}

// NewTestEnvironment creates a test environment backed by NewMemoryLoader.
func NewTestEnvironment(t testing.TB, opts ...resource.Option) *TestEnvironment {
	t.Helper()
	log := TestLogger(t)
	world := hierarchy.NewWorld("test")
	loader := NewMemoryLoader()
	cache := resource.New(world, loader, append([]resource.Option{resource.WithLogger(log)}, opts...)...)
	return &TestEnvironment{
		World:     world,
		Loader:    loader,
		Cache:     cache,
		Pool:      pool.NewManager(cache, pool.WithLogger(log)),
		Scheduler: scheduler.New(scheduler.WithLogger(log)),
		ctx:       TestContext(t),
	}
}

// Context returns the test context
func (e *TestEnvironment) Context() context.Context {
	return e.ctx
}

// Template resolves path through the cache and fails the test when it cannot.
func (e *TestEnvironment) Template(t testing.TB, path string) *asset.Template {
	t.Helper()
	tmpl, err := e.Cache.ResolveTemplate(path)
	if err != nil {
		t.Fatalf("resolve %s: %v", path, err)
	}
	return tmpl
}

// PoolSuite provides a fresh TestEnvironment for every test in the suite.
type PoolSuite struct {
	suite.Suite
	Env *TestEnvironment
}

// SetupTest runs before each test in the suite
func (s *PoolSuite) SetupTest() {
	s.Env = NewTestEnvironment(s.T())
}

// TearDownTest destroys everything the test left in the pool and cache.
func (s *PoolSuite) TearDownTest() {
	s.Env.Pool.ClearAll()
	s.Env.Cache.Clear()
}
