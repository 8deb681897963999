package resource

import (
	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
)

// Provenance records where an instance node came from.
type Provenance struct {
	Template *asset.Template
	Path     string
	Root     *hierarchy.Node
}

// PostLoadHook runs after a new instance of tmpl has been built, with root being the
// instance's root node.
type PostLoadHook func(tmpl *asset.Template, root *hierarchy.Node)

type boundHook struct {
	key  any
	hook PostLoadHook
}

type provenanceKey struct{}

// BindPostLoad registers hook under key. Binding a key again replaces the earlier
// hook and moves it to the end of the run order. Keys must be comparable.
func (c *Cache) BindPostLoad(key any, hook PostLoadHook) {
	c.UnbindPostLoad(key)
	c.hooks = append(c.hooks, boundHook{key: key, hook: hook})
}

// UnbindPostLoad removes the hook registered under key.
func (c *Cache) UnbindPostLoad(key any) bool {
	for i, h := range c.hooks {
		if h.key == key {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cache) runPostLoad(tmpl *asset.Template, root *hierarchy.Node) {
	hooks := make([]boundHook, len(c.hooks))
	copy(hooks, c.hooks)
	for _, h := range hooks {
		h.hook(tmpl, root)
	}
}

// attachProvenance is the editor-mode post-load hook.
func (c *Cache) attachProvenance(tmpl *asset.Template, root *hierarchy.Node) {
	path, ok := c.TemplatePath(tmpl)
	if !ok {
		path = tmpl.Path
	}
	root.Walk(func(n *hierarchy.Node) bool {
		p, ok := hierarchy.GetComponent[*Provenance](n)
		if !ok {
			p = &Provenance{}
			n.AddComponent(p)
		}
		if p.Root == nil {
			p.Template = tmpl
			p.Path = path
			p.Root = root
		}
		return true
	})
}
