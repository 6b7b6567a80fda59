package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loomshell/loom/internal/diag"
)

// WorkerFunc is a long-running producer. It must return promptly once
// its context is cancelled.
type WorkerFunc func(ctx context.Context) error

// Supervisor owns the producer goroutines.
//
// Failure isolation: a worker that panics or returns an error is
// reported through diagnostics and stays dead. Its failure never
// cancels siblings and never reaches the consumer loop.
//
// Shutdown is a bounded join: cancel the shared context, then wait for
// workers up to a deadline. Workers that ignore cancellation are
// abandoned with ErrShutdownTimeout rather than hanging exit.
type Supervisor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	diag     *diag.Emitter
	failures atomic.Uint64
}

// NewSupervisor creates a supervisor whose workers inherit from parent.
func NewSupervisor(parent context.Context, d *diag.Emitter) *Supervisor {
	if d == nil {
		d = diag.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, diag: d}
}

// Go starts a named worker goroutine under supervision.
func (s *Supervisor) Go(name string, fn WorkerFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.failures.Add(1)
				s.diag.WorkerFailure(name, r)
			}
		}()

		if err := fn(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.failures.Add(1)
			s.diag.WorkerFailure(name, err)
		}
	}()
}

// Context returns the shared cancellation context. Producers use it for
// blocking enqueues so shutdown unblocks them.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Cancel signals all workers to stop without waiting.
func (s *Supervisor) Cancel() {
	s.cancel()
}

// Shutdown cancels all workers and waits up to timeout for them to exit.
// Returns ErrShutdownTimeout if any worker is still running at the
// deadline.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// Failures returns the number of worker panics and error exits observed.
func (s *Supervisor) Failures() uint64 {
	return s.failures.Load()
}
