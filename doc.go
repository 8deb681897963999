// Package prefabpool reuses instances of templates across spawn/despawn cycles, for
// simulations that create and discard many short-lived objects every frame.
//
// # Architecture
//
// Three pieces cooperate over a containment hierarchy (pkg/hierarchy):
//
// 1. Resource Cache (pkg/resource): resolves a path to one canonical template handle,
// synchronously or from a cooperative task, and keeps a preload pool of pre-warmed
// spare instances per template.
//
// 2. Object Pool Manager (pkg/pool): tracks enabled and disabled instances per
// template and decides whether a request reuses a disabled instance or builds a new
// one through the cache.
//
// 3. Poolable Instance (pool.Instance): the component attached to every pooled root
// node. It returns itself to the pool when its node is deactivated and drops out of
// the pool when its node is destroyed.
//
// All pool and cache state is mutated on a single cooperative scheduler
// (pkg/scheduler). Asynchronous template loads run off the scheduler inside the
// loaders and hand their result back at a frame boundary.
//
// # Quick Start
//
//	world := hierarchy.NewWorld("main")
//	loader := asset.NewMemoryLoader()
//	loader.Register("fx/projectile", asset.New("Projectile"))
//
//	cache := resource.New(world, loader)
//	if err := cache.AddPreloadPath("fx/projectile", 32); err != nil {
//	    return err
//	}
//
//	mgr := pool.NewManager(cache)
//	n, err := mgr.GetOrCreatePath("fx/projectile", nil, pool.FlagResetOnReturn)
//	if err != nil {
//	    return err
//	}
//	n.SetActive(false) // back in the pool
//
// # Packages
//
//   - pkg/hierarchy: worlds, scenes, nodes, transforms and component hooks
//   - pkg/asset: templates and loaders (memory, file, pebble store)
//   - pkg/scheduler: frame-stepped cooperative tasks
//   - pkg/resource: the resource cache and preload pool
//   - pkg/pool: the pool manager and poolable instance
//   - pkg/config: YAML configuration
//   - pkg/logger, pkg/errors, pkg/metrics, pkg/observability: ambient stack
//   - internal/sim: the demo spawn simulation
//   - cmd/prefabpool: the CLI
package prefabpool
