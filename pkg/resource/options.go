package resource

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithTracer sets the tracer used for load and preload spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Cache) { c.tracer = t }
}

// WithEditorMode attaches Provenance to every node of fresh instances and reports
// conflicting template registrations as warnings.
func WithEditorMode() Option {
	return func(c *Cache) { c.editor = true }
}

// ResolveOptions controls a single resolution.
type ResolveOptions struct {
	// UseCache returns a cached template for the path when one exists.
	UseCache bool
	// SaveCache registers a freshly loaded template for the path.
	SaveCache bool
	// ShowLog logs a failed resolution at error level.
	ShowLog bool
}

// ResolveOption adjusts ResolveOptions. The defaults have every field set.
type ResolveOption func(*ResolveOptions)

// NoCache forces a fresh load even when the path is cached.
func NoCache() ResolveOption {
	return func(o *ResolveOptions) { o.UseCache = false }
}

// NoSave leaves the cache untouched after a fresh load.
func NoSave() ResolveOption {
	return func(o *ResolveOptions) { o.SaveCache = false }
}

// Quiet suppresses the error log for an expected miss.
func Quiet() ResolveOption {
	return func(o *ResolveOptions) { o.ShowLog = false }
}

func resolveOptions(opts []ResolveOption) ResolveOptions {
	o := ResolveOptions{UseCache: true, SaveCache: true, ShowLog: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
