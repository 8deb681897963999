package sim

import (
	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
)

// BuiltinTemplates returns the templates the demo spawns when no template source is
// configured, keyed by path.
func BuiltinTemplates() map[string]*asset.Template {
	trail := asset.New("Trail")
	trail.Transform.Position = hierarchy.Vec3{Z: -0.5}
	projectile := asset.New("Projectile", asset.New("Body"), trail)
	projectile.Labels = map[string]string{"behaviour": "move-forward"}

	glow := asset.New("Glow")
	glow.Transform.Scale = hierarchy.Vec3{X: 0.2, Y: 0.2, Z: 2}
	tracer := asset.New("Tracer", glow)
	tracer.Labels = map[string]string{"behaviour": "move-forward"}

	return map[string]*asset.Template{
		"fx/projectile": projectile,
		"fx/tracer":     tracer,
	}
}

// RegisterBuiltins registers BuiltinTemplates with m.
func RegisterBuiltins(m *asset.MemoryLoader) {
	for path, tmpl := range BuiltinTemplates() {
		m.Register(path, tmpl)
	}
}
