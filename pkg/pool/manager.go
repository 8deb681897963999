package pool

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	"github.com/ajitpratap0/prefabpool/pkg/metrics"
	"github.com/ajitpratap0/prefabpool/pkg/resource"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

// RootName names the container disabled instances are collapsed under.
const RootName = "PoolableObject"

// Stats counts pool activity since the manager was created.
type Stats struct {
	Created   int64 `json:"created"`
	Reused    int64 `json:"reused"`
	Returned  int64 `json:"returned"`
	Destroyed int64 `json:"destroyed"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithReuse turns reuse on or off from the start.
func WithReuse(reuse bool) Option {
	return func(m *Manager) { m.reuse = reuse }
}

// WithPreload controls whether new instances may come from the cache's preload spares.
func WithPreload(use bool) Option {
	return func(m *Manager) { m.usePreload = use }
}

// Manager tracks enabled and disabled instances per template.
type Manager struct {
	cache  *resource.Cache
	world  *hierarchy.World
	logger *zap.Logger

	reuse      bool
	usePreload bool
	clearing   bool
	root       *hierarchy.Node

	enabled  map[*asset.Template]*instanceSet
	disabled map[*asset.Template]*instanceSet
	stats    Stats
}

// NewManager creates a manager that builds instances through cache.
func NewManager(cache *resource.Cache, opts ...Option) *Manager {
	m := &Manager{
		cache:      cache,
		world:      cache.World(),
		reuse:      true,
		usePreload: true,
		enabled:    make(map[*asset.Template]*instanceSet),
		disabled:   make(map[*asset.Template]*instanceSet),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.Or(m.logger, "pool")
	return m
}

// Cache returns the resource cache the manager builds through.
func (m *Manager) Cache() *resource.Cache { return m.cache }

// Reuse reports whether instances are tracked and reused.
func (m *Manager) Reuse() bool { return m.reuse }

// SetReuse turns reuse on or off. While off nothing is tracked and every request
// builds a new instance. Instances already tracked stay where they are.
func (m *Manager) SetReuse(reuse bool) { m.reuse = reuse }

// Stats returns the activity counters.
func (m *Manager) Stats() Stats { return m.stats }

// Root returns the hidden persistent container, creating it on first use.
func (m *Manager) Root() *hierarchy.Node {
	if m.root == nil || m.root.Destroyed() {
		m.root = m.world.NewPersistentRoot(RootName)
		m.root.SetActive(false)
		m.root.SetHidden(true)
	}
	return m.root
}

// GetOrCreate hands out an active instance of tmpl under parent, reusing a disabled
// one when the reuse rules allow and building a new one otherwise. A destroyed parent
// fails the request before any instance is touched.
func (m *Manager) GetOrCreate(tmpl *asset.Template, parent *hierarchy.Node, flags Flags) (*hierarchy.Node, error) {
	if tmpl == nil {
		err := errors.New(errors.ErrorTypeNullSource, "get or create called with nil template")
		m.logger.Error("get or create failed", zap.Error(err))
		return nil, err
	}
	if parent != nil && parent.Destroyed() {
		return nil, errors.New(errors.ErrorTypeNullSource, "parent is destroyed").
			WithDetail("template", tmpl.Name)
	}

	inst := m.takeDisabled(tmpl, parent)
	if inst != nil {
		m.moveToEnabled(inst)
		if inst.node.Parent() != parent {
			m.reparent(inst.node, parent)
		}
		m.stats.Reused++
		metrics.InstancesReused.WithLabelValues(m.label(tmpl)).Inc()
	} else {
		n, err := m.cache.Instantiate(tmpl, parent, m.usePreload)
		if err != nil {
			return nil, err
		}
		inst = m.attach(tmpl, n, flags)
		m.addEnabled(tmpl, inst)
		m.stats.Created++
		metrics.InstancesCreated.WithLabelValues(m.label(tmpl)).Inc()
		m.logger.Debug("instance created",
			zap.String("template", tmpl.Name),
			zap.Stringer("id", inst.id),
			zap.Stringer("flags", flags))
	}

	inst.showCount++
	inst.Activate()
	return inst.node, nil
}

// GetOrCreatePath resolves path through the cache and calls GetOrCreate.
func (m *Manager) GetOrCreatePath(path string, parent *hierarchy.Node, flags Flags) (*hierarchy.Node, error) {
	tmpl, err := m.cache.ResolveTemplate(path)
	if err != nil {
		return nil, err
	}
	return m.GetOrCreate(tmpl, parent, flags)
}

// GetOrCreateAsync resolves path from a running task and calls GetOrCreate. A parent
// destroyed while the task was suspended fails the request.
func (m *Manager) GetOrCreateAsync(ctx context.Context, task *scheduler.Task, path string, parent *hierarchy.Node, flags Flags) (*hierarchy.Node, error) {
	tmpl, err := m.cache.ResolveTemplateAsync(ctx, task, path)
	if err != nil {
		return nil, err
	}
	return m.GetOrCreate(tmpl, parent, flags)
}

func (m *Manager) attach(tmpl *asset.Template, n *hierarchy.Node, flags Flags) *Instance {
	inst, ok := hierarchy.GetComponent[*Instance](n)
	if !ok {
		inst = newInstance(m, n)
		n.AddComponent(inst)
	}
	if inst.showCount == 0 {
		inst.original = n.LocalTransform()
	}
	inst.manager = m
	inst.template = tmpl
	inst.flags = flags
	inst.loaded = true
	return inst
}

// takeDisabled finds a reusable instance and activates it. Instances under parent
// are preferred so that most reuses skip reparenting.
func (m *Manager) takeDisabled(tmpl *asset.Template, parent *hierarchy.Node) *Instance {
	if !m.reuse {
		return nil
	}
	set := m.disabled[tmpl]
	if set == nil || set.len() == 0 {
		return nil
	}

	inst := set.find(func(i *Instance) bool {
		return i.node.Parent() == parent && !i.hold && !i.destroyed
	})
	if inst == nil {
		inst = set.find(func(i *Instance) bool {
			if i.hold || i.destroyed {
				return false
			}
			if i.flags.Has(FlagHoldParent) {
				p := i.node.Parent()
				return p == parent || (m.root != nil && p == m.root)
			}
			return true
		})
	}
	if inst == nil {
		return nil
	}
	inst.node.SetActive(true)
	return inst
}

func (m *Manager) reparent(n, parent *hierarchy.Node) {
	if parent != nil {
		if err := n.SetParent(parent); err != nil {
			m.logger.Warn("reparent failed", zap.String("node", n.Name()), zap.Error(err))
		}
		return
	}
	_ = n.SetParent(nil)
	if err := m.world.MoveToActiveScene(n); err != nil {
		m.logger.Warn("move to active scene failed", zap.String("node", n.Name()), zap.Error(err))
	}
}

// ReturnToPool moves inst from the enabled set to the disabled set and runs its
// deactivate callbacks. Returning an instance that is already disabled does nothing.
func (m *Manager) ReturnToPool(inst *Instance) {
	if inst == nil {
		return
	}
	if inst.flags.Has(FlagResetOnReturn) {
		inst.resetTransform()
	}
	tmpl := inst.template
	if tmpl == nil {
		return
	}
	m.removeFrom(m.enabled, tmpl, inst)
	if m.clearing || inst.destroyed || inst.node.Destroyed() || !m.reuse {
		return
	}
	if !m.addTo(m.disabled, tmpl, inst, memberDisabled) {
		return
	}
	m.stats.Returned++
	metrics.InstancesReturned.WithLabelValues(m.label(tmpl)).Inc()
	inst.Deactivate()
}

// moveToEnabled runs when a loaded instance becomes active.
func (m *Manager) moveToEnabled(inst *Instance) {
	tmpl := inst.template
	if tmpl == nil {
		return
	}
	m.removeFrom(m.disabled, tmpl, inst)
	if inst.destroyed {
		return
	}
	m.addEnabled(tmpl, inst)
}

func (m *Manager) addEnabled(tmpl *asset.Template, inst *Instance) {
	if !m.reuse {
		return
	}
	m.addTo(m.enabled, tmpl, inst, memberEnabled)
}

// NotifyDestroyed forgets inst. Calling it again has no effect.
func (m *Manager) NotifyDestroyed(inst *Instance) {
	if inst == nil || inst.template == nil || inst.forgotten {
		return
	}
	inst.forgotten = true
	m.removeFrom(m.enabled, inst.template, inst)
	m.removeFrom(m.disabled, inst.template, inst)
	m.stats.Destroyed++
	metrics.InstancesDestroyed.WithLabelValues(m.label(inst.template)).Inc()
}

// ClearAll destroys every tracked instance and forgets all of them.
func (m *Manager) ClearAll() {
	m.clearing = true
	defer func() { m.clearing = false }()

	destroyed := 0
	for _, sets := range []map[*asset.Template]*instanceSet{m.enabled, m.disabled} {
		for _, set := range sets {
			for _, inst := range set.items() {
				if inst.destroyed || inst.node.Destroyed() {
					continue
				}
				inst.node.Destroy()
				destroyed++
			}
		}
	}
	for tmpl := range m.enabled {
		metrics.PoolEnabled.WithLabelValues(m.label(tmpl)).Set(0)
	}
	for tmpl := range m.disabled {
		metrics.PoolDisabled.WithLabelValues(m.label(tmpl)).Set(0)
	}
	m.enabled = make(map[*asset.Template]*instanceSet)
	m.disabled = make(map[*asset.Template]*instanceSet)
	m.logger.Info("pool cleared", zap.Int("destroyed", destroyed))
}

// CollapseAll returns every enabled instance and parks every disabled instance under
// root, or under the pool root when root is nil.
func (m *Manager) CollapseAll(root *hierarchy.Node) {
	if root == nil {
		root = m.Root()
	}

	var active []*Instance
	for _, set := range m.enabled {
		for _, inst := range set.items() {
			if !inst.destroyed {
				active = append(active, inst)
			}
		}
	}
	for _, inst := range active {
		inst.node.SetActive(false)
		if m.enabled[inst.template].contains(inst) {
			m.ReturnToPool(inst)
		}
	}

	for _, set := range m.disabled {
		for _, inst := range set.items() {
			if inst.destroyed || inst.node.Parent() == root {
				continue
			}
			if err := inst.node.SetParent(root); err != nil {
				m.logger.Warn("collapse reparent failed", zap.String("node", inst.node.Name()), zap.Error(err))
			}
		}
	}
}

// Count returns the number of tracked instances of tmpl.
func (m *Manager) Count(tmpl *asset.Template) int {
	return m.EnabledCount(tmpl) + m.DisabledCount(tmpl)
}

// EnabledCount returns the number of handed out instances of tmpl.
func (m *Manager) EnabledCount(tmpl *asset.Template) int {
	if s := m.enabled[tmpl]; s != nil {
		return s.len()
	}
	return 0
}

// DisabledCount returns the number of instances of tmpl waiting for reuse.
func (m *Manager) DisabledCount(tmpl *asset.Template) int {
	if s := m.disabled[tmpl]; s != nil {
		return s.len()
	}
	return 0
}

func (m *Manager) addTo(sets map[*asset.Template]*instanceSet, tmpl *asset.Template, inst *Instance, member membership) bool {
	set := sets[tmpl]
	if set == nil {
		set = newInstanceSet()
		sets[tmpl] = set
	}
	if !set.add(inst) {
		return false
	}
	inst.member = member
	m.publish(tmpl)
	return true
}

func (m *Manager) removeFrom(sets map[*asset.Template]*instanceSet, tmpl *asset.Template, inst *Instance) bool {
	set := sets[tmpl]
	if set == nil || !set.remove(inst) {
		return false
	}
	inst.member = memberNone
	m.publish(tmpl)
	return true
}

func (m *Manager) publish(tmpl *asset.Template) {
	label := m.label(tmpl)
	metrics.PoolEnabled.WithLabelValues(label).Set(float64(m.EnabledCount(tmpl)))
	metrics.PoolDisabled.WithLabelValues(label).Set(float64(m.DisabledCount(tmpl)))
}

func (m *Manager) label(tmpl *asset.Template) string {
	path, ok := m.cache.TemplatePath(tmpl)
	if !ok {
		path = tmpl.Path
	}
	return metrics.TemplateLabel(path, tmpl.Name)
}
