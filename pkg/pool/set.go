package pool

import "container/list"

// instanceSet is an insertion-ordered set of instances.
type instanceSet struct {
	order *list.List
	index map[*Instance]*list.Element
}

func newInstanceSet() *instanceSet {
	return &instanceSet{order: list.New(), index: make(map[*Instance]*list.Element)}
}

func (s *instanceSet) add(i *Instance) bool {
	if _, ok := s.index[i]; ok {
		return false
	}
	s.index[i] = s.order.PushBack(i)
	return true
}

func (s *instanceSet) remove(i *Instance) bool {
	e, ok := s.index[i]
	if !ok {
		return false
	}
	s.order.Remove(e)
	delete(s.index, i)
	return true
}

func (s *instanceSet) contains(i *Instance) bool {
	_, ok := s.index[i]
	return ok
}

func (s *instanceSet) len() int { return len(s.index) }

// find returns the first instance in insertion order that matches.
func (s *instanceSet) find(match func(*Instance) bool) *Instance {
	for e := s.order.Front(); e != nil; e = e.Next() {
		if i := e.Value.(*Instance); match(i) {
			return i
		}
	}
	return nil
}

// items returns a snapshot, safe to range over while the set changes.
func (s *instanceSet) items() []*Instance {
	out := make([]*Instance, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Instance))
	}
	return out
}
