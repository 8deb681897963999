package pool

import (
	"github.com/google/uuid"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
)

// State is the lifecycle state of an Instance.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDisabled
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

type membership int

const (
	memberNone membership = iota
	memberEnabled
	memberDisabled
)

// Callback receives the instance's show count.
type Callback func(showCount int)

type keyedCallback struct {
	key any
	fn  Callback
}

// callbacks is an ordered list of callbacks, at most one per key.
type callbacks []keyedCallback

func (c *callbacks) add(key any, fn Callback) {
	c.remove(key)
	*c = append(*c, keyedCallback{key: key, fn: fn})
}

func (c *callbacks) remove(key any) bool {
	for i, kc := range *c {
		if kc.key == key {
			*c = append((*c)[:i], (*c)[i+1:]...)
			return true
		}
	}
	return false
}

func (c callbacks) fire(showCount int) {
	snapshot := make([]keyedCallback, len(c))
	copy(snapshot, c)
	for _, kc := range snapshot {
		kc.fn(showCount)
	}
}

// Instance is the pool bookkeeping attached to the root node of every pooled
// instance. It reacts to the node's lifecycle hooks.
type Instance struct {
	id       uuid.UUID
	manager  *Manager
	node     *hierarchy.Node
	template *asset.Template

	flags     Flags
	hold      bool
	destroyed bool
	loaded    bool
	forgotten bool
	member    membership
	showCount int
	original  hierarchy.Transform

	onActivate   callbacks
	onDeactivate callbacks
}

func newInstance(m *Manager, n *hierarchy.Node) *Instance {
	return &Instance{
		id:       uuid.New(),
		manager:  m,
		node:     n,
		original: n.LocalTransform(),
	}
}

// ID returns the instance's unique id.
func (i *Instance) ID() uuid.UUID { return i.id }

// Node returns the instance's root node.
func (i *Instance) Node() *hierarchy.Node { return i.node }

// Template returns the template the instance was built from.
func (i *Instance) Template() *asset.Template { return i.template }

// Flags returns the flags set at creation.
func (i *Instance) Flags() Flags { return i.flags }

// Hold reports whether the instance is locked against reuse.
func (i *Instance) Hold() bool { return i.hold }

// SetHold locks or unlocks the instance against reuse.
func (i *Instance) SetHold(hold bool) { i.hold = hold }

// Destroyed reports whether the instance has been destroyed.
func (i *Instance) Destroyed() bool { return i.destroyed }

// ShowCount returns how many times the instance has been handed out.
func (i *Instance) ShowCount() int { return i.showCount }

// OriginalTransform returns the local transform captured when the instance was created.
func (i *Instance) OriginalTransform() hierarchy.Transform { return i.original }

// State returns the lifecycle state.
func (i *Instance) State() State {
	switch {
	case i.destroyed:
		return StateDestroyed
	case !i.loaded:
		return StateUninitialized
	case i.member == memberEnabled:
		return StateActive
	case i.member == memberDisabled:
		return StateDisabled
	case i.node.ActiveInHierarchy():
		return StateActive
	default:
		return StateDisabled
	}
}

// AddOnActivate registers fn to run each time the instance is handed out.
// Registering the same key again replaces the earlier callback.
func (i *Instance) AddOnActivate(key any, fn Callback) { i.onActivate.add(key, fn) }

// RemoveOnActivate unregisters the activate callback for key.
func (i *Instance) RemoveOnActivate(key any) bool { return i.onActivate.remove(key) }

// AddOnDeactivate registers fn to run each time the instance enters the disabled set.
// Registering the same key again replaces the earlier callback.
func (i *Instance) AddOnDeactivate(key any, fn Callback) { i.onDeactivate.add(key, fn) }

// RemoveOnDeactivate unregisters the deactivate callback for key.
func (i *Instance) RemoveOnDeactivate(key any) bool { return i.onDeactivate.remove(key) }

// Activate runs the activate callbacks with the current show count.
func (i *Instance) Activate() { i.onActivate.fire(i.showCount) }

// Deactivate runs the deactivate callbacks with the current show count.
func (i *Instance) Deactivate() { i.onDeactivate.fire(i.showCount) }

// MarkDestroyed flags the instance as destroyed. There is no way back.
func (i *Instance) MarkDestroyed() { i.destroyed = true }

// ReturnToPool hands the instance back to its manager. Instances created with
// FlagManualReturn must be returned this way.
func (i *Instance) ReturnToPool() {
	if i.manager != nil {
		i.manager.ReturnToPool(i)
	}
}

func (i *Instance) resetTransform() {
	i.node.SetLocalTransform(i.original)
}

// OnEnable implements hierarchy.Enabler.
func (i *Instance) OnEnable() {
	if !i.loaded || i.manager == nil {
		return
	}
	i.manager.moveToEnabled(i)
}

// OnDisable implements hierarchy.Disabler.
func (i *Instance) OnDisable() {
	if i.flags.Has(FlagManualReturn) {
		return
	}
	i.ReturnToPool()
}

// OnDestroyNow implements hierarchy.DestroyNotifier.
func (i *Instance) OnDestroyNow() { i.MarkDestroyed() }

// OnDestroy implements hierarchy.Destroyer.
func (i *Instance) OnDestroy() {
	if i.manager != nil {
		i.manager.NotifyDestroyed(i)
	}
}
