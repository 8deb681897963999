package pool

import (
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/json"
	"github.com/ajitpratap0/prefabpool/pkg/resource"
)

// Occupancy is the number of tracked instances loaded from one path.
type Occupancy struct {
	Path     string `json:"path"`
	Enabled  int    `json:"enabled"`
	Disabled int    `json:"disabled"`
}

// Total returns enabled plus disabled.
func (o Occupancy) Total() int { return o.Enabled + o.Disabled }

// Occupancy groups tracked instances by the path their template was loaded from,
// sorted by path. Templates loaded from the same path share an entry.
func (m *Manager) Occupancy() []Occupancy {
	byPath := make(map[string]*Occupancy)
	entry := func(tmpl *asset.Template, set *instanceSet) *Occupancy {
		path := m.occupancyPath(tmpl, set)
		o, ok := byPath[path]
		if !ok {
			o = &Occupancy{Path: path}
			byPath[path] = o
		}
		return o
	}
	for tmpl, set := range m.enabled {
		if set.len() > 0 {
			entry(tmpl, set).Enabled += set.len()
		}
	}
	for tmpl, set := range m.disabled {
		if set.len() > 0 {
			entry(tmpl, set).Disabled += set.len()
		}
	}

	out := make([]Occupancy, 0, len(byPath))
	for _, o := range byPath {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// occupancyPath prefers the provenance recorded on an instance, then the cache's
// path for the template, then the template's own fields.
func (m *Manager) occupancyPath(tmpl *asset.Template, set *instanceSet) string {
	if first := set.find(func(*Instance) bool { return true }); first != nil {
		if p, ok := hierarchy.GetComponent[*resource.Provenance](first.node); ok && p.Path != "" {
			return p.Path
		}
	}
	if path, ok := m.cache.TemplatePath(tmpl); ok {
		return path
	}
	if tmpl.Path != "" {
		return tmpl.Path
	}
	return tmpl.Name
}

// DumpOccupancy writes Occupancy to w as indented JSON.
func (m *Manager) DumpOccupancy(w io.Writer) error {
	return json.WriteTo(w, m.Occupancy(), "  ")
}

// LogOccupancy logs one line per path.
func (m *Manager) LogOccupancy() {
	for _, o := range m.Occupancy() {
		m.logger.Info("pool occupancy",
			zap.String("path", o.Path),
			zap.Int("enabled", o.Enabled),
			zap.Int("disabled", o.Disabled),
			zap.Int("total", o.Total()))
	}
}
