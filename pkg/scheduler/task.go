package scheduler

import (
	"context"
)

// Task is a running cooperative task. Its methods must only be called from the
// task's own function.
type Task struct {
	name string
	s    *Scheduler
	done chan struct{}
	err  error

	// pending is the gate that last woke the task; it is settled at the next
	// suspension point so Step knows the task has gone quiet.
	pending *gate
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's result. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

// Scheduler returns the scheduler running the task.
func (t *Task) Scheduler() *Scheduler { return t.s }

func (t *Task) settle() {
	if t.pending != nil {
		t.pending.parked.Done()
		t.pending = nil
	}
}

// Yield suspends the task until the next frame. A cancelled ctx is reported before
// suspending and again on wake-up, as an error of type errors.ErrorTypeCancelled.
func (t *Task) Yield(ctx context.Context) error {
	if ctx.Err() != nil {
		return cancelled(ctx, t.name)
	}
	g := t.s.park()
	t.settle()
	t.s.release()

	select {
	case <-g.open:
	case <-ctx.Done():
	}
	t.s.acquire()
	t.pending = g
	if ctx.Err() != nil {
		return cancelled(ctx, t.name)
	}
	return nil
}

// Await suspends the task frame by frame until done is closed. It returns without
// suspending when done is already closed.
func (t *Task) Await(ctx context.Context, done <-chan struct{}) error {
	for {
		if ctx.Err() != nil {
			return cancelled(ctx, t.name)
		}
		select {
		case <-done:
			return nil
		default:
		}
		if err := t.Yield(ctx); err != nil {
			return err
		}
	}
}

// WaitFrames yields n times.
func (t *Task) WaitFrames(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := t.Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}
