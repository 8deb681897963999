// Package pool reuses template instances instead of building new ones.
//
// A Manager keeps two sets per template: instances that are handed out (enabled)
// and instances waiting to be reused (disabled). Every pooled node carries an
// *Instance component that moves it between the sets as the node is activated
// and deactivated, so callers normally only ever call GetOrCreate and
// deactivate the node when they are done with it.
//
//	bullet, err := mgr.GetOrCreatePath("fx/bullet", nil, pool.FlagResetOnReturn)
//	if err != nil {
//		return err
//	}
//	pool.OnDeactivate(bullet, "trail", func(showCount int) { ... })
//	...
//	bullet.SetActive(false) // back to the disabled set
//
// Sets are keyed by template identity. Two templates loaded from the same path
// are two pools.
//
// # Reuse order
//
// GetOrCreate prefers a disabled instance already under the requested parent,
// then any other reusable one. Held instances are never reused, and instances
// created with FlagHoldParent are only reused under their current parent or
// while parked under the pool root.
//
// # Concurrency
//
// A Manager is not safe for concurrent use. Call it while holding the scheduler
// baton, the same as the resource cache it builds on.
package pool
