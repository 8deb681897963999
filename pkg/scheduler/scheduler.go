// Package scheduler runs cooperative tasks one at a time.
//
// Exactly one party holds the baton at any moment: either a Run callback or a task
// between two suspension points. Code that touches pool or cache state only does so
// while holding the baton, so that state needs no locks of its own.
//
// Time advances in frames. A task suspends with Yield (resume on the next frame) or
// Await (resume on the first frame after a channel closes). Step advances one frame
// and returns once every task woken by it has reached its next suspension point or
// finished, which makes frame-by-frame behaviour deterministic.
//
//	s := scheduler.New()
//	s.Go(ctx, "spawner", func(ctx context.Context, t *scheduler.Task) error {
//		for {
//			spawn()
//			if err := t.Yield(ctx); err != nil {
//				return err
//			}
//		}
//	})
//	for frame := 0; frame < 60; frame++ {
//		s.Step()
//	}
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
)

// gate is one frame boundary. Tasks parked on it are released when it closes.
type gate struct {
	open   chan struct{}
	parked sync.WaitGroup
}

func newGate() *gate {
	return &gate{open: make(chan struct{})}
}

// Scheduler owns the baton and the frame clock.
type Scheduler struct {
	baton  chan struct{}
	logger *zap.Logger

	mu    sync.Mutex
	gate  *gate
	frame uint64
	errs  []error

	live atomic.Int64
	wg   conc.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler at frame zero with the baton free.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		baton: make(chan struct{}, 1),
		gate:  newGate(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.Or(s.logger, "scheduler")
	s.baton <- struct{}{}
	return s
}

func (s *Scheduler) acquire() { <-s.baton }
func (s *Scheduler) release() { s.baton <- struct{}{} }

// Run executes fn while holding the baton. It must not be called from inside a task
// or another Run callback.
func (s *Scheduler) Run(fn func()) {
	s.acquire()
	defer s.release()
	fn()
}

// Frame returns the number of completed Steps.
func (s *Scheduler) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Live returns the number of tasks that have not finished.
func (s *Scheduler) Live() int {
	return int(s.live.Load())
}

// park registers the caller on the current frame gate.
func (s *Scheduler) park() *gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.parked.Add(1)
	return s.gate
}

// Step advances one frame. It must be called without holding the baton.
func (s *Scheduler) Step() {
	s.mu.Lock()
	g := s.gate
	s.gate = newGate()
	s.frame++
	s.mu.Unlock()

	close(g.open)
	g.parked.Wait()
}

// Drain steps until no task is live or maxFrames frames have passed. It reports
// whether every task finished.
func (s *Scheduler) Drain(maxFrames int) bool {
	for i := 0; i < maxFrames && s.Live() > 0; i++ {
		s.Step()
	}
	return s.Live() == 0
}

// Go starts fn as a task. The task first runs on the next Step. If ctx is cancelled
// before then, fn never runs.
func (s *Scheduler) Go(ctx context.Context, name string, fn func(ctx context.Context, t *Task) error) *Task {
	ctx = context.WithValue(ctx, logger.TaskKey, name)
	t := &Task{
		name:    name,
		s:       s,
		done:    make(chan struct{}),
		pending: s.park(),
	}
	s.live.Add(1)

	s.wg.Go(func() {
		defer close(t.done)
		log := s.logger.With(logger.Fields(ctx)...)

		select {
		case <-t.pending.open:
		case <-ctx.Done():
		}
		s.acquire()
		defer s.release()
		defer t.settle()
		defer s.live.Add(-1)

		if ctx.Err() != nil {
			t.err = cancelled(ctx, name)
			return
		}

		var pc panics.Catcher
		pc.Try(func() { t.err = fn(ctx, t) })
		if r := pc.Recovered(); r != nil {
			t.err = errors.Wrap(r.AsError(), errors.ErrorTypeInternal, "task panicked").
				WithDetail("task", name)
			log.Error("task panicked", zap.Any("value", r.Value))
		}
		if t.err != nil && !errors.IsType(t.err, errors.ErrorTypeCancelled) {
			s.mu.Lock()
			s.errs = append(s.errs, t.err)
			s.mu.Unlock()
		}
		log.Debug("task finished", zap.Error(t.err))
	})
	return t
}

// Wait blocks until every task has finished and returns the first task error.
// Cancellation is not reported as an error. Something must keep calling Step while
// tasks are suspended, or Wait never returns.
func (s *Scheduler) Wait() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	return nil
}

func cancelled(ctx context.Context, name string) error {
	return errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "task cancelled").WithDetail("task", name)
}
