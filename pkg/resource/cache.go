package resource

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	"github.com/ajitpratap0/prefabpool/pkg/metrics"
	"github.com/ajitpratap0/prefabpool/pkg/observability"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

const (
	// PreloadRootName names the container spares wait under.
	PreloadRootName = "PreloadObject"
	// CloneSuffix marks a spare that has not been handed out yet.
	CloneSuffix = "(Clone)"
)

// pendingLoad coalesces concurrent async resolutions of one path.
type pendingLoad struct {
	done chan struct{}
	tmpl *asset.Template
	err  error
}

// Cache is the resource cache. Construct one per world with New.
type Cache struct {
	world  *hierarchy.World
	loader asset.Loader
	logger *zap.Logger
	tracer trace.Tracer
	editor bool

	paths   map[string]*asset.Template
	reverse map[*asset.Template]string
	pending map[string]*pendingLoad

	preload     map[*asset.Template][]*hierarchy.Node
	preloadRoot *hierarchy.Node

	hooks []boundHook
}

// New creates a cache that builds instances into world from templates served by loader.
func New(world *hierarchy.World, loader asset.Loader, opts ...Option) *Cache {
	c := &Cache{
		world:   world,
		loader:  loader,
		paths:   make(map[string]*asset.Template),
		reverse: make(map[*asset.Template]string),
		pending: make(map[string]*pendingLoad),
		preload: make(map[*asset.Template][]*hierarchy.Node),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.Or(c.logger, "resource")
	if c.tracer == nil {
		c.tracer = observability.Tracer()
	}
	if c.editor {
		c.BindPostLoad(provenanceKey{}, c.attachProvenance)
	}
	return c
}

// World returns the world instances are built into.
func (c *Cache) World() *hierarchy.World { return c.world }

// Loader returns the backing loader.
func (c *Cache) Loader() asset.Loader { return c.loader }

// EditorMode reports whether provenance tracking is on.
func (c *Cache) EditorMode() bool { return c.editor }

// RegisterTemplate maps path to tmpl. It fails when path already maps to another
// template, or tmpl is already registered under another path.
func (c *Cache) RegisterTemplate(path string, tmpl *asset.Template) bool {
	if path == "" || tmpl == nil {
		return false
	}
	if existing, ok := c.paths[path]; ok {
		if existing == tmpl {
			return true
		}
		c.warnConflict("path already bound to another template", path, existing)
		return false
	}
	if other, ok := c.reverse[tmpl]; ok {
		c.warnConflict("template already bound to another path", path, tmpl, zap.String("bound_path", other))
		return false
	}
	c.paths[path] = tmpl
	c.reverse[tmpl] = path
	return true
}

func (c *Cache) warnConflict(msg, path string, tmpl *asset.Template, fields ...zap.Field) {
	if !c.editor {
		return
	}
	c.logger.Warn(msg, append(fields, zap.String("path", path), zap.String("template", tmpl.Name))...)
}

// TemplatePath returns the path tmpl is cached under.
func (c *Cache) TemplatePath(tmpl *asset.Template) (string, bool) {
	p, ok := c.reverse[tmpl]
	return p, ok
}

// Cached returns the template cached for path, if any.
func (c *Cache) Cached(path string) (*asset.Template, bool) {
	t, ok := c.paths[path]
	return t, ok
}

// ResolveTemplate returns the template for path, loading it synchronously on a miss.
func (c *Cache) ResolveTemplate(path string, opts ...ResolveOption) (*asset.Template, error) {
	o := resolveOptions(opts)
	if path == "" {
		return nil, c.resolveFailed(path, o, metrics.ModeSync, errors.New(errors.ErrorTypeNullSource, "empty template path"))
	}
	if o.UseCache {
		if t, ok := c.paths[path]; ok {
			metrics.TemplateResolutions.WithLabelValues(metrics.ModeSync, metrics.ResultHit).Inc()
			return t, nil
		}
	}

	_, span := observability.StartSpan(context.Background(), c.tracer, "resource.load",
		attribute.String("path", path), attribute.String("mode", metrics.ModeSync))
	timer := metrics.NewTimer()
	t, err := c.loader.Load(path)
	timer.ObserveTo(metrics.TemplateLoadSeconds.WithLabelValues(metrics.ModeSync))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, c.resolveFailed(path, o, metrics.ModeSync, err)
	}
	return c.loaded(path, t, o, metrics.ModeSync), nil
}

// ResolveTemplateAsync is ResolveTemplate for a running task. The task is suspended
// until the load completes. Concurrent resolutions of one path that use the cache
// share a single underlying load.
func (c *Cache) ResolveTemplateAsync(ctx context.Context, task *scheduler.Task, path string, opts ...ResolveOption) (*asset.Template, error) {
	if task == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "async resolution requires a task")
	}
	o := resolveOptions(opts)
	if path == "" {
		return nil, c.resolveFailed(path, o, metrics.ModeAsync, errors.New(errors.ErrorTypeNullSource, "empty template path"))
	}

	for {
		if o.UseCache {
			if t, ok := c.paths[path]; ok {
				metrics.TemplateResolutions.WithLabelValues(metrics.ModeAsync, metrics.ResultHit).Inc()
				return t, nil
			}
			if p, ok := c.pending[path]; ok {
				if err := task.Await(ctx, p.done); err != nil {
					return nil, err
				}
				if p.err != nil && errors.IsType(p.err, errors.ErrorTypeCancelled) {
					// the task that started the load gave up; try again on our own
					continue
				}
				return p.tmpl, p.err
			}
		}
		return c.loadAsync(ctx, task, path, o)
	}
}

func (c *Cache) loadAsync(ctx context.Context, task *scheduler.Task, path string, o ResolveOptions) (*asset.Template, error) {
	var p *pendingLoad
	if o.UseCache {
		p = &pendingLoad{done: make(chan struct{})}
		c.pending[path] = p
	}
	finish := func(t *asset.Template, err error) (*asset.Template, error) {
		if p != nil {
			p.tmpl, p.err = t, err
			delete(c.pending, path)
			close(p.done)
		}
		return t, err
	}

	spanCtx, span := observability.StartSpan(ctx, c.tracer, "resource.load",
		attribute.String("path", path), attribute.String("mode", metrics.ModeAsync))
	timer := metrics.NewTimer()
	req := c.loader.LoadAsync(spanCtx, path)
	if err := task.Await(ctx, req.Done()); err != nil {
		observability.EndSpan(span, err)
		return finish(nil, err)
	}
	timer.ObserveTo(metrics.TemplateLoadSeconds.WithLabelValues(metrics.ModeAsync))
	t, err := req.Result()
	observability.EndSpan(span, err)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeCancelled) {
			return finish(nil, err)
		}
		return finish(nil, c.resolveFailed(path, o, metrics.ModeAsync, err))
	}
	return finish(c.loaded(path, t, o, metrics.ModeAsync), nil)
}

func (c *Cache) loaded(path string, t *asset.Template, o ResolveOptions, mode string) *asset.Template {
	metrics.TemplateResolutions.WithLabelValues(mode, metrics.ResultLoaded).Inc()
	if o.SaveCache {
		c.RegisterTemplate(path, t)
	}
	return t
}

func (c *Cache) resolveFailed(path string, o ResolveOptions, mode string, cause error) error {
	result := metrics.ResultError
	err := cause
	if errors.IsType(cause, errors.ErrorTypeNotFound) {
		result = metrics.ResultNotFound
	} else {
		err = errors.Wrap(cause, errors.ErrorTypeNotFound, "template could not be resolved").
			WithDetail("path", path)
	}
	metrics.TemplateResolutions.WithLabelValues(mode, result).Inc()
	if o.ShowLog {
		c.logger.Error("template not found",
			zap.String("path", path),
			zap.String("mode", mode),
			zap.Error(cause))
	}
	return err
}

// Instantiate returns an active instance of tmpl under parent, or at the root of the
// active scene when parent is nil. With usePreload, the oldest spare for tmpl is used
// before building a new instance. Post-load hooks run only for newly built instances.
func (c *Cache) Instantiate(tmpl *asset.Template, parent *hierarchy.Node, usePreload bool) (*hierarchy.Node, error) {
	if tmpl == nil {
		err := errors.New(errors.ErrorTypeNullSource, "instantiate called with nil template")
		c.logger.Error("instantiate failed", zap.Error(err))
		return nil, err
	}
	if usePreload {
		if n := c.popSpare(tmpl, parent); n != nil {
			return n, nil
		}
	}

	n, err := c.build(tmpl, parent)
	if err != nil {
		c.logger.Error("instantiate failed", zap.String("template", tmpl.Name), zap.Error(err))
		return nil, err
	}
	n.SetName(strings.TrimSuffix(n.Name(), CloneSuffix))
	n.SetActive(true)
	c.runPostLoad(tmpl, n)
	return n, nil
}

// LoadInstance resolves path and instantiates the result.
func (c *Cache) LoadInstance(path string, parent *hierarchy.Node, usePreload, showLog bool) (*hierarchy.Node, error) {
	opts := []ResolveOption{Quiet()}
	tmpl, err := c.ResolveTemplate(path, opts...)
	if err != nil {
		if showLog {
			c.logger.Error("load instance failed", zap.String("path", path), zap.Error(err))
		}
		return nil, err
	}
	return c.Instantiate(tmpl, parent, usePreload)
}

// LoadInstanceAsync resolves path from a task and instantiates the result.
func (c *Cache) LoadInstanceAsync(ctx context.Context, task *scheduler.Task, path string, parent *hierarchy.Node, usePreload bool) (*hierarchy.Node, error) {
	tmpl, err := c.ResolveTemplateAsync(ctx, task, path, Quiet())
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeCancelled) {
			c.logger.Error("load instance failed", zap.String("path", path), zap.Error(err))
		}
		return nil, err
	}
	if parent != nil && parent.Destroyed() {
		return nil, errors.New(errors.ErrorTypeNullSource, "parent destroyed while loading").WithDetail("path", path)
	}
	return c.Instantiate(tmpl, parent, usePreload)
}

// build creates an inactive copy of tmpl's node tree under parent.
func (c *Cache) build(tmpl *asset.Template, parent *hierarchy.Node) (*hierarchy.Node, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInstantiate, "cannot build instance").
			WithDetail("template", tmpl.Name)
	}
	if parent != nil && parent.Destroyed() {
		return nil, errors.New(errors.ErrorTypeInstantiate, "parent is destroyed").
			WithDetail("template", tmpl.Name)
	}
	root := c.world.NewInactiveChild(tmpl.Name+CloneSuffix, parent)
	root.SetLocalTransform(tmpl.Transform.Normalized())
	for _, child := range tmpl.Children {
		c.buildChild(child, root)
	}
	return root, nil
}

func (c *Cache) buildChild(tmpl *asset.Template, parent *hierarchy.Node) {
	n := c.world.NewInactiveChild(tmpl.Name, parent)
	n.SetLocalTransform(tmpl.Transform.Normalized())
	for _, child := range tmpl.Children {
		c.buildChild(child, n)
	}
	n.SetActive(tmpl.Active)
}

// Clear empties the template cache and destroys every preload spare.
func (c *Cache) Clear() {
	for tmpl, spares := range c.preload {
		for _, n := range spares {
			n.Destroy()
		}
		metrics.PreloadSpares.WithLabelValues(c.label(tmpl)).Set(0)
	}
	c.preload = make(map[*asset.Template][]*hierarchy.Node)
	c.paths = make(map[string]*asset.Template)
	c.reverse = make(map[*asset.Template]string)
}

func (c *Cache) label(tmpl *asset.Template) string {
	path, ok := c.reverse[tmpl]
	if !ok {
		path = tmpl.Path
	}
	return metrics.TemplateLabel(path, tmpl.Name)
}
