package hierarchy

import (
	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// PersistentSceneName names the scene that survives LoadScene.
const PersistentSceneName = "persistent"

// Scene is an ordered set of root nodes.
type Scene struct {
	name       string
	persistent bool
	roots      []*Node
}

// Name returns the scene name.
func (s *Scene) Name() string { return s.name }

// Persistent reports whether the scene survives scene transitions.
func (s *Scene) Persistent() bool { return s.persistent }

// Roots returns a copy of the scene's root nodes.
func (s *Scene) Roots() []*Node {
	out := make([]*Node, len(s.roots))
	copy(out, s.roots)
	return out
}

func (s *Scene) addRoot(n *Node) {
	n.scene = s
	s.roots = append(s.roots, n)
}

func (s *Scene) removeRoot(n *Node) {
	for i, r := range s.roots {
		if r == n {
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			break
		}
	}
	n.scene = nil
}

// World owns one active scene and one persistent scene.
type World struct {
	active     *Scene
	persistent *Scene
}

// NewWorld creates a world whose active scene is named sceneName.
func NewWorld(sceneName string) *World {
	return &World{
		active:     &Scene{name: sceneName},
		persistent: &Scene{name: PersistentSceneName, persistent: true},
	}
}

// ActiveScene returns the current active scene.
func (w *World) ActiveScene() *Scene { return w.active }

// PersistentScene returns the scene that survives LoadScene.
func (w *World) PersistentScene() *Scene { return w.persistent }

// NewRoot creates an active root node in the active scene.
func (w *World) NewRoot(name string) *Node {
	n := w.newNode(name)
	w.active.addRoot(n)
	return n
}

// NewPersistentRoot creates an active root node in the persistent scene.
func (w *World) NewPersistentRoot(name string) *Node {
	n := w.newNode(name)
	w.persistent.addRoot(n)
	return n
}

// NewChild creates an active node under parent, or in the active scene when parent is nil.
func (w *World) NewChild(name string, parent *Node) *Node {
	if parent == nil || parent.destroyed {
		return w.NewRoot(name)
	}
	n := w.newNode(name)
	n.parent = parent
	parent.children = append(parent.children, n)
	return n
}

// NewInactiveChild creates a node whose own flag is false, so no component is ever
// enabled until the caller activates it.
func (w *World) NewInactiveChild(name string, parent *Node) *Node {
	n := w.newNode(name)
	n.activeSelf = false
	if parent == nil || parent.destroyed {
		w.active.addRoot(n)
		return n
	}
	n.parent = parent
	parent.children = append(parent.children, n)
	return n
}

func (w *World) newNode(name string) *Node {
	return &Node{
		world:      w,
		name:       name,
		activeSelf: true,
		local:      DefaultTransform(),
	}
}

// LoadScene destroys every root of the active scene and replaces it with a new, empty
// scene. The persistent scene is untouched.
func (w *World) LoadScene(name string) *Scene {
	for _, r := range w.active.Roots() {
		r.Destroy()
	}
	w.active = &Scene{name: name}
	return w.active
}

// MoveToActiveScene relocates a root node into the active scene.
func (w *World) MoveToActiveScene(n *Node) error {
	if n.destroyed {
		return nil
	}
	if n.parent != nil {
		return errors.New(errors.ErrorTypeValidation, "only root nodes can change scene").
			WithDetail("node", n.name)
	}
	if n.scene == w.active {
		return nil
	}
	if n.scene != nil {
		n.scene.removeRoot(n)
	}
	w.active.addRoot(n)
	return nil
}

// Find returns the first node named name among the roots of both scenes and their
// descendants, searching the active scene first.
func (w *World) Find(name string) *Node {
	var found *Node
	for _, s := range []*Scene{w.active, w.persistent} {
		for _, r := range s.Roots() {
			r.Walk(func(n *Node) bool {
				if found != nil {
					return false
				}
				if n.name == name {
					found = n
					return false
				}
				return true
			})
			if found != nil {
				return found
			}
		}
	}
	return nil
}
