package asset

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// MemoryLoader serves templates registered in process. Every Load returns a fresh deep
// copy, so repeated loads of one path produce distinct handles.
type MemoryLoader struct {
	mu        sync.RWMutex
	templates map[string]*Template
	gate      chan struct{}
	loads     atomic.Int64
}

// NewMemoryLoader creates an empty loader.
func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{templates: make(map[string]*Template)}
}

// Register stores a copy of t under path, replacing any previous entry.
func (m *MemoryLoader) Register(path string, t *Template) {
	c := t.Clone()
	setPath(c, path)
	m.mu.Lock()
	m.templates[path] = c
	m.mu.Unlock()
}

// Load implements Loader.
func (m *MemoryLoader) Load(path string) (*Template, error) {
	m.mu.RLock()
	t, ok := m.templates[path]
	m.mu.RUnlock()
	if !ok {
		return nil, NotFound(path)
	}
	m.loads.Add(1)
	return t.Clone(), nil
}

// LoadAsync implements Loader. While the loader is held, async loads wait for release.
func (m *MemoryLoader) LoadAsync(ctx context.Context, path string) Request {
	m.mu.RLock()
	gate := m.gate
	m.mu.RUnlock()
	return Go(ctx, func() (*Template, error) {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return m.Load(path)
	})
}

// Hold blocks async loads started from now on until the returned release func runs.
func (m *MemoryLoader) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Loads returns the number of successful loads served.
func (m *MemoryLoader) Loads() int64 { return m.loads.Load() }

// List returns the registered paths in sorted order.
func (m *MemoryLoader) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.templates))
	for p := range m.templates {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
