package pool

import "github.com/ajitpratap0/prefabpool/pkg/hierarchy"

// InstanceOf returns the pool instance attached to n itself.
func InstanceOf(n *hierarchy.Node) (*Instance, bool) {
	if n == nil {
		return nil, false
	}
	return hierarchy.GetComponent[*Instance](n)
}

// ShowCount returns how many times n has been handed out, or -1 when n is not pooled.
func ShowCount(n *hierarchy.Node) int {
	if inst, ok := InstanceOf(n); ok {
		return inst.ShowCount()
	}
	return -1
}

// SetHold locks or unlocks n against reuse. It does nothing when n is not pooled.
func SetHold(n *hierarchy.Node, hold bool) {
	if inst, ok := InstanceOf(n); ok {
		inst.SetHold(hold)
	}
}

// Deactivate deactivates n. When force is set, or n is already inactive in the
// hierarchy, the instance is returned to the pool explicitly, which also covers
// instances created with FlagManualReturn.
func Deactivate(n *hierarchy.Node, force bool) {
	if n == nil || n.Destroyed() {
		return
	}
	if force || !n.ActiveInHierarchy() {
		if inst, ok := InstanceOf(n); ok {
			inst.ReturnToPool()
		}
	}
	n.SetActive(false)
}

// OnActivate registers fn on the nearest pooled ancestor of n, n included.
// It reports whether one was found.
func OnActivate(n *hierarchy.Node, key any, fn Callback) bool {
	inst, ok := hierarchy.GetComponentInAncestors[*Instance](n)
	if ok {
		inst.AddOnActivate(key, fn)
	}
	return ok
}

// OnDeactivate registers fn on the nearest pooled ancestor of n, n included.
// It reports whether one was found.
func OnDeactivate(n *hierarchy.Node, key any, fn Callback) bool {
	inst, ok := hierarchy.GetComponentInAncestors[*Instance](n)
	if ok {
		inst.AddOnDeactivate(key, fn)
	}
	return ok
}
