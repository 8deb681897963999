package hierarchy

// Component is anything attached to a Node. Components opt into lifecycle
// callbacks by implementing the interfaces below.
type Component interface{}

// Enabler is notified when its node becomes active in the hierarchy.
type Enabler interface {
	OnEnable()
}

// Disabler is notified when its node stops being active in the hierarchy.
type Disabler interface {
	OnDisable()
}

// DestroyNotifier is notified first when its node is being destroyed, before any
// OnDisable or OnDestroy callback runs.
type DestroyNotifier interface {
	OnDestroyNow()
}

// Destroyer is notified last when its node is destroyed.
type Destroyer interface {
	OnDestroy()
}

// GetComponent returns the first component of type T attached to n.
func GetComponent[T any](n *Node) (T, bool) {
	var zero T
	if n == nil {
		return zero, false
	}
	for _, c := range n.components {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	return zero, false
}

// GetComponentInAncestors returns the first component of type T found on n or the
// closest ancestor that carries one.
func GetComponentInAncestors[T any](n *Node) (T, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if v, ok := GetComponent[T](cur); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
