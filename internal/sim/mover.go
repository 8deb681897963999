package sim

import (
	"time"

	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/pool"
)

// Updater is a component that advances once per frame while its node is active.
type Updater interface {
	Update(dt time.Duration)
}

// Mover flies its node forward and deactivates it when its lifetime runs out, which
// returns it to the pool.
type Mover struct {
	node     *hierarchy.Node
	speed    float64
	lifetime time.Duration
	elapsed  time.Duration
	started  bool
}

// NewMover creates a mover for n. A negative lifetime never expires.
func NewMover(n *hierarchy.Node, speed float64, lifetime time.Duration) *Mover {
	return &Mover{node: n, speed: speed, lifetime: lifetime}
}

// SetData changes speed and lifetime.
func (m *Mover) SetData(speed float64, lifetime time.Duration) {
	m.speed = speed
	m.lifetime = lifetime
}

// Elapsed returns the time since the node was last handed out.
func (m *Mover) Elapsed() time.Duration { return m.elapsed }

func (m *Mover) start() {
	m.started = true
	pool.OnActivate(m.node, m, func(int) { m.elapsed = 0 })
	pool.OnDeactivate(m.node, m, func(int) { m.elapsed = 0 })
}

// Update implements Updater.
func (m *Mover) Update(dt time.Duration) {
	if !m.started {
		m.start()
	}
	m.elapsed += dt
	if m.lifetime >= 0 && m.lifetime <= m.elapsed {
		m.node.SetActive(false)
		return
	}
	m.node.Translate(hierarchy.Forward.Mul(dt.Seconds() * m.speed))
}

type scheduled struct {
	node    *hierarchy.Node
	updater Updater
}

// UpdateTree calls Update on every Updater in the active part of root's subtree. A node
// deactivated earlier in the same pass is skipped.
func UpdateTree(root *hierarchy.Node, dt time.Duration) int {
	var queue []scheduled
	root.Walk(func(n *hierarchy.Node) bool {
		if !n.ActiveInHierarchy() {
			return false
		}
		for _, c := range n.Components() {
			if u, ok := c.(Updater); ok {
				queue = append(queue, scheduled{node: n, updater: u})
			}
		}
		return true
	})

	ran := 0
	for _, s := range queue {
		if s.node.Destroyed() || !s.node.ActiveInHierarchy() {
			continue
		}
		s.updater.Update(dt)
		ran++
	}
	return ran
}
