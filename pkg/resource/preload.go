package resource

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/metrics"
	"github.com/ajitpratap0/prefabpool/pkg/observability"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

// PreloadRoot returns the hidden persistent container spares wait under, creating it
// on first use.
func (c *Cache) PreloadRoot() *hierarchy.Node {
	if c.preloadRoot == nil || c.preloadRoot.Destroyed() {
		c.preloadRoot = c.world.NewPersistentRoot(PreloadRootName)
		c.preloadRoot.SetActive(false)
		c.preloadRoot.SetHidden(true)
	}
	return c.preloadRoot
}

// AddPreload builds count inactive spares of tmpl. Spares added before a failure are kept.
func (c *Cache) AddPreload(tmpl *asset.Template, count int) error {
	if tmpl == nil {
		err := errors.New(errors.ErrorTypeNullSource, "preload called with nil template")
		c.logger.Error("preload failed", zap.Error(err))
		return err
	}
	if count <= 0 {
		return nil
	}

	_, span := observability.StartSpan(context.Background(), c.tracer, "resource.preload",
		attribute.String("template", tmpl.Name), attribute.Int("count", count))
	root := c.PreloadRoot()
	label := c.label(tmpl)
	for i := 0; i < count; i++ {
		n, err := c.build(tmpl, root)
		if err != nil {
			c.logger.Error("preload failed",
				zap.String("template", tmpl.Name),
				zap.Int("added", i),
				zap.Error(err))
			observability.EndSpan(span, err)
			return err
		}
		// the container is inactive, so this only sets the node's own flag
		n.SetActive(true)
		c.runPostLoad(tmpl, n)
		n.SetActive(false)
		c.preload[tmpl] = append(c.preload[tmpl], n)
		metrics.PreloadSpares.WithLabelValues(label).Set(float64(len(c.preload[tmpl])))
	}
	observability.EndSpan(span, nil)
	c.logger.Debug("preloaded spares",
		zap.String("template", tmpl.Name),
		zap.Int("count", count),
		zap.Int("spares", len(c.preload[tmpl])))
	return nil
}

// AddPreloadPath resolves path and preloads count spares of the result.
func (c *Cache) AddPreloadPath(path string, count int) error {
	tmpl, err := c.ResolveTemplate(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeLoadFailed, "preload resolution failed").WithDetail("path", path)
	}
	return c.AddPreload(tmpl, count)
}

// AddPreloadAsync is AddPreloadPath for a running task. A cancelled task adds nothing.
func (c *Cache) AddPreloadAsync(ctx context.Context, task *scheduler.Task, path string, count int) error {
	tmpl, err := c.ResolveTemplateAsync(ctx, task, path)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeCancelled) {
			return err
		}
		return errors.Wrap(err, errors.ErrorTypeLoadFailed, "preload resolution failed").WithDetail("path", path)
	}
	return c.AddPreload(tmpl, count)
}

// IsPreloaded reports whether at least one spare of tmpl is waiting.
func (c *Cache) IsPreloaded(tmpl *asset.Template) bool {
	return c.PreloadCount(tmpl) > 0
}

// PreloadCount returns the number of spares waiting for tmpl.
func (c *Cache) PreloadCount(tmpl *asset.Template) int {
	return len(c.preload[tmpl])
}

// popSpare hands out the oldest live spare of tmpl, or nil when there is none.
func (c *Cache) popSpare(tmpl *asset.Template, parent *hierarchy.Node) *hierarchy.Node {
	spares := c.preload[tmpl]
	for len(spares) > 0 {
		n := spares[0]
		spares[0] = nil
		spares = spares[1:]
		if n.Destroyed() {
			continue
		}
		c.preload[tmpl] = spares
		if len(spares) == 0 {
			delete(c.preload, tmpl)
		}
		if parent != nil && !parent.Destroyed() {
			_ = n.SetParent(parent)
		} else {
			_ = n.SetParent(nil)
			_ = c.world.MoveToActiveScene(n)
		}
		n.SetName(strings.TrimSuffix(n.Name(), CloneSuffix))
		n.SetActive(true)

		label := c.label(tmpl)
		metrics.PreloadConsumed.WithLabelValues(label).Inc()
		metrics.PreloadSpares.WithLabelValues(label).Set(float64(len(spares)))
		return n
	}
	delete(c.preload, tmpl)
	return nil
}
