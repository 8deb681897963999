package hierarchy

import (
	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// Node is one element of the containment tree. A node without a parent is a root of
// exactly one Scene. Nodes are not safe for concurrent use; callers serialize access
// through the scheduler baton.
type Node struct {
	world      *World
	scene      *Scene // set only while the node is a root
	name       string
	parent     *Node
	children   []*Node
	activeSelf bool
	hidden     bool
	destroyed  bool
	local      Transform
	components []Component
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// SetName renames the node.
func (n *Node) SetName(name string) {
	if n.destroyed {
		return
	}
	n.name = name
}

// World returns the owning world.
func (n *Node) World() *World { return n.world }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Root returns the topmost ancestor of n (n itself for a root).
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Scene returns the scene the node's root belongs to.
func (n *Node) Scene() *Scene { return n.Root().scene }

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the i-th direct child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Children returns a copy of the direct children.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// FindChild returns the first direct child named name.
func (n *Node) FindChild(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Hidden reports whether the node is excluded from user-facing listings.
func (n *Node) Hidden() bool { return n.hidden }

// SetHidden marks the node hidden.
func (n *Node) SetHidden(hidden bool) { n.hidden = hidden }

// Destroyed reports whether Destroy has been called on the node or an ancestor.
func (n *Node) Destroyed() bool { return n.destroyed }

// ActiveSelf returns the node's own active flag.
func (n *Node) ActiveSelf() bool { return n.activeSelf }

// ActiveInHierarchy reports whether the node and all of its ancestors are active.
func (n *Node) ActiveInHierarchy() bool {
	if n.destroyed {
		return false
	}
	for cur := n; cur != nil; cur = cur.parent {
		if !cur.activeSelf {
			return false
		}
	}
	return true
}

// SetActive sets the node's own active flag, firing OnEnable or OnDisable across the
// subtree when the effective state changes.
func (n *Node) SetActive(active bool) {
	if n.destroyed || n.activeSelf == active {
		return
	}
	was := n.ActiveInHierarchy()
	n.activeSelf = active
	if now := n.ActiveInHierarchy(); now != was {
		n.notifyActive(now)
	}
}

// SetParent moves n under parent, or makes it a root of its current scene when parent
// is nil. Moving a node under one of its own descendants is rejected.
func (n *Node) SetParent(parent *Node) error {
	if n.destroyed {
		return nil
	}
	if parent == n.parent {
		return nil
	}
	if parent != nil {
		if parent.destroyed {
			return errors.New(errors.ErrorTypeValidation, "cannot parent to a destroyed node").
				WithDetail("node", n.name).WithDetail("parent", parent.name)
		}
		for cur := parent; cur != nil; cur = cur.parent {
			if cur == n {
				return errors.New(errors.ErrorTypeValidation, "cannot parent a node under its own descendant").
					WithDetail("node", n.name).WithDetail("parent", parent.name)
			}
		}
	}

	was := n.ActiveInHierarchy()
	scene := n.Scene()
	n.detach()
	if parent == nil {
		scene.addRoot(n)
	} else {
		parent.children = append(parent.children, n)
		n.parent = parent
	}
	if now := n.ActiveInHierarchy(); now != was {
		n.notifyActive(now)
	}
	return nil
}

// LocalTransform returns the local transform.
func (n *Node) LocalTransform() Transform { return n.local }

// SetLocalTransform replaces the local transform.
func (n *Node) SetLocalTransform(t Transform) {
	if n.destroyed {
		return
	}
	n.local = t
}

// LocalPosition returns the local position.
func (n *Node) LocalPosition() Vec3 { return n.local.Position }

// SetLocalPosition sets the local position.
func (n *Node) SetLocalPosition(p Vec3) {
	if n.destroyed {
		return
	}
	n.local.Position = p
}

// SetLocalRotation sets the local rotation.
func (n *Node) SetLocalRotation(q Quat) {
	if n.destroyed {
		return
	}
	n.local.Rotation = q
}

// Translate moves the node by delta expressed in its own rotated frame.
func (n *Node) Translate(delta Vec3) {
	if n.destroyed {
		return
	}
	n.local.Position = n.local.Position.Add(n.local.Rotation.Rotate(delta))
}

// AddComponent attaches c. If the node is active in the hierarchy and c implements
// Enabler, OnEnable fires immediately.
func (n *Node) AddComponent(c Component) {
	if n.destroyed || c == nil {
		return
	}
	n.components = append(n.components, c)
	if e, ok := c.(Enabler); ok && n.ActiveInHierarchy() {
		e.OnEnable()
	}
}

// RemoveComponent detaches c without firing any callback.
func (n *Node) RemoveComponent(c Component) bool {
	for i, existing := range n.components {
		if existing == c {
			n.components = append(n.components[:i], n.components[i+1:]...)
			return true
		}
	}
	return false
}

// Components returns a copy of the attached components.
func (n *Node) Components() []Component {
	out := make([]Component, len(n.components))
	copy(out, n.components)
	return out
}

// Walk visits n and its descendants depth first. Returning false from fn skips the
// node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Destroy tears down the subtree immediately. Every component first receives
// OnDestroyNow, then OnDisable if the node was active, then OnDestroy. The node is
// detached last. Calling Destroy again is a no-op.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	wasActive := n.ActiveInHierarchy()

	var subtree []*Node
	n.Walk(func(x *Node) bool {
		if x.destroyed {
			return false
		}
		subtree = append(subtree, x)
		return true
	})
	for _, x := range subtree {
		x.destroyed = true
	}
	for _, x := range subtree {
		for _, c := range x.snapshotComponents() {
			if d, ok := c.(DestroyNotifier); ok {
				d.OnDestroyNow()
			}
		}
	}
	if wasActive {
		n.notifyActive(false)
	}
	for i := len(subtree) - 1; i >= 0; i-- {
		for _, c := range subtree[i].snapshotComponents() {
			if d, ok := c.(Destroyer); ok {
				d.OnDestroy()
			}
		}
	}
	n.detach()
}

func (n *Node) snapshotComponents() []Component {
	return n.Components()
}

// notifyActive fires the enable or disable callbacks on n and on every descendant
// whose own flag does not already keep it inactive.
func (n *Node) notifyActive(active bool) {
	for _, c := range n.snapshotComponents() {
		if active {
			if e, ok := c.(Enabler); ok {
				e.OnEnable()
			}
		} else if d, ok := c.(Disabler); ok {
			d.OnDisable()
		}
	}
	for _, child := range n.Children() {
		if child.activeSelf {
			child.notifyActive(active)
		}
	}
}

func (n *Node) detach() {
	if n.parent != nil {
		siblings := n.parent.children
		for i, c := range siblings {
			if c == n {
				n.parent.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		n.parent = nil
		return
	}
	if n.scene != nil {
		n.scene.removeRoot(n)
	}
}
