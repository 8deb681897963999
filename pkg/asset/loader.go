package asset

import (
	"context"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// Loader resolves a path to a fresh template handle. Every Load and LoadAsync call
// returns a distinct handle, so the cache can key pools by handle identity.
type Loader interface {
	// Load returns an error of type errors.ErrorTypeNotFound when nothing exists at path.
	Load(path string) (*Template, error)
	// LoadAsync starts a load and returns immediately. No timeout is applied; a
	// cancelled ctx completes the request with the context error.
	LoadAsync(ctx context.Context, path string) Request
}

// Request is an in-flight asynchronous load.
type Request interface {
	// Done is closed once Result is available.
	Done() <-chan struct{}
	// Result returns the loaded template or the load error. It must only be called after Done is closed.
	Result() (*Template, error)
}

// NotFound builds the error loaders return for a missing path.
func NotFound(path string) error {
	return errors.New(errors.ErrorTypeNotFound, "template not found").WithDetail("path", path)
}

type request struct {
	done chan struct{}
	tmpl *Template
	err  error
}

func (r *request) Done() <-chan struct{}      { return r.done }
func (r *request) Result() (*Template, error) { return r.tmpl, r.err }

// Go runs load on its own goroutine and returns a Request tracking it. If ctx is
// cancelled first the request completes with the context error; load keeps running
// to completion in the background.
func Go(ctx context.Context, load func() (*Template, error)) Request {
	r := &request{done: make(chan struct{})}
	result := make(chan struct{})
	var tmpl *Template
	var err error
	go func() {
		tmpl, err = load()
		close(result)
	}()
	go func() {
		defer close(r.done)
		select {
		case <-result:
			r.tmpl, r.err = tmpl, err
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				r.err = errors.Wrap(err, errors.ErrorTypeCancelled, "load abandoned")
			}
		case <-ctx.Done():
			r.err = errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "load abandoned")
		}
	}()
	return r
}

// Completed returns a Request that is already done.
func Completed(tmpl *Template, err error) Request {
	r := &request{done: make(chan struct{}), tmpl: tmpl, err: err}
	close(r.done)
	return r
}
