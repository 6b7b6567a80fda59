package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// DefaultTickInterval paces the consumer loop when no embedding engine
// drives it per-frame.
const DefaultTickInterval = 16 * time.Millisecond

// DefaultJoinTimeout bounds the worker join during shutdown.
const DefaultJoinTimeout = 5 * time.Second

// Renderer receives the settled model at the end of every tick.
// Render runs on the consumer goroutine after the guard disarms, so the
// model is stable for the duration of the call.
type Renderer interface {
	Render(model *graph.Model, tick uint64)
}

// Orchestrator runs the per-tick frame sequence:
//
//	capture locals -> drain queue -> sort -> apply -> reconcile -> render
//
// CRITICAL: Tick, Run, Restore, and Shutdown must be called from exactly
// one goroutine. SubmitLocal and the queue are safe from any goroutine.
type Orchestrator struct {
	model      *graph.Model
	queue      *Queue
	reducer    *Reducer
	reconciler *Reconciler
	sup        *Supervisor
	renderer   Renderer
	diag       *diag.Emitter

	mu     sync.Mutex
	locals []intent.Queued

	tick         uint64
	tickInterval time.Duration
	joinTimeout  time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRenderer attaches the end-of-tick renderer.
func WithRenderer(r Renderer) OrchestratorOption {
	return func(o *Orchestrator) { o.renderer = r }
}

// WithTickInterval sets the Run loop pacing.
func WithTickInterval(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.tickInterval = d }
}

// WithJoinTimeout sets the bounded worker join during shutdown.
func WithJoinTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.joinTimeout = d }
}

// NewOrchestrator wires the kernel together.
func NewOrchestrator(model *graph.Model, queue *Queue, reducer *Reducer, reconciler *Reconciler, sup *Supervisor, d *diag.Emitter, opts ...OrchestratorOption) *Orchestrator {
	if d == nil {
		d = diag.Nop()
	}
	o := &Orchestrator{
		model:        model,
		queue:        queue,
		reducer:      reducer,
		reconciler:   reconciler,
		sup:          sup,
		diag:         d,
		tickInterval: DefaultTickInterval,
		joinTimeout:  DefaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SubmitLocal records a locally captured intent for the next tick.
// Thread-safe; locals share the queue's sequence space so the batch
// sort stays total.
func (o *Orchestrator) SubmitLocal(in intent.Intent, src intent.Source) {
	qd := o.queue.Stamp(in, src)
	o.mu.Lock()
	o.locals = append(o.locals, qd)
	o.mu.Unlock()
}

// Queue returns the producer queue for workers to enqueue into.
func (o *Orchestrator) Queue() *Queue { return o.queue }

// Supervisor returns the worker supervisor.
func (o *Orchestrator) Supervisor() *Supervisor { return o.sup }

// Model returns the model. Reads outside the tick obey the guard.
func (o *Orchestrator) Model() *graph.Model { return o.model }

// TickCount returns the number of completed ticks.
func (o *Orchestrator) TickCount() uint64 { return o.tick }

// Tick runs one full frame cycle and returns the batch size applied.
func (o *Orchestrator) Tick(ctx context.Context) int {
	locals := o.takeLocals()
	drained := o.queue.Drain()
	batch := Assemble(locals, drained)

	o.reducer.Apply(ctx, batch, o.tick)

	// Phase gap: lifecycle and mapping state is unreadable until the
	// reconciler settles it.
	guard := o.model.Guard()
	guard.Arm()
	o.reconciler.Reconcile(ctx)
	guard.Disarm()

	if o.renderer != nil {
		o.renderer.Render(o.model, o.tick)
	}

	o.tick++
	return len(batch)
}

// Run paces Tick until the context is cancelled. Returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("kernel starting", "tick_interval", o.tickInterval)

	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("kernel stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Shutdown drains the kernel: cancel and join workers (bounded), close
// the queue to new producers, run one final drain-apply-reconcile cycle
// for everything they managed to enqueue, then destroy every remaining
// live resource.
//
// Returns ErrShutdownTimeout if workers outlived the join window; the
// final cycle and resource release still run in that case.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var joinErr error
	if o.sup != nil {
		joinErr = o.sup.Shutdown(o.joinTimeout)
	}

	o.queue.Close()
	o.Tick(ctx)
	o.reconciler.ReleaseAll(ctx)

	slog.Info("kernel shut down",
		"ticks", o.tick,
		"dropped", o.queue.Dropped(),
	)
	return joinErr
}

func (o *Orchestrator) takeLocals() []intent.Queued {
	o.mu.Lock()
	defer o.mu.Unlock()
	locals := o.locals
	o.locals = nil
	return locals
}
