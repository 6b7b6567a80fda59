package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/testutil"
)

// Harness runs scenarios against a real kernel: the production reducer,
// reconciler, queue, and orchestrator over an in-memory mutation log
// and a scripted resource backend. Nothing is mocked out of the apply
// or effect path.
type Harness struct {
	model   *graph.Model
	queue   *engine.Queue
	orch    *engine.Orchestrator
	backend *testutil.ScriptedBackend
	log     *testutil.MemoryLog
	sink    *testutil.CaptureSink
}

// New assembles a fresh kernel for one scenario.
func New(s *Scenario) *Harness {
	model := graph.NewModel()
	// Strict guard: a lifecycle read inside the phase gap panics the
	// test instead of returning torn state.
	model.Guard().SetStrict(true)

	sink := testutil.NewCaptureSink()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := diag.New(logger, diag.WithSink(sink))

	backend := testutil.NewScriptedBackend()
	for _, f := range s.FailCreates {
		backend.FailCreates(graph.NodeID(f.Node), f.Times)
	}

	memlog := testutil.NewMemoryLog()
	clock := engine.NewClock()
	queue := engine.NewQueue(s.Config.QueueCapacity, emitter)
	reducer := engine.NewReducer(model, memlog, clock, "self", emitter)
	reconciler := engine.NewReconciler(model, backend, s.Config.RetryThreshold, s.Config.ActiveLimit, emitter)
	orch := engine.NewOrchestrator(model, queue, reducer, reconciler, nil, emitter)

	return &Harness{
		model:   model,
		queue:   queue,
		orch:    orch,
		backend: backend,
		log:     memlog,
		sink:    sink,
	}
}

// Model exposes the settled model for assertions after Run.
func (h *Harness) Model() *graph.Model { return h.model }

// Backend exposes the scripted backend for call-count assertions.
func (h *Harness) Backend() *testutil.ScriptedBackend { return h.backend }

// Run executes a scenario and evaluates its assertions.
func Run(s *Scenario) (*Result, error) {
	h := New(s)
	return h.run(s)
}

func (h *Harness) run(s *Scenario) (*Result, error) {
	ctx := context.Background()

	for ti, tick := range s.Ticks {
		for _, step := range tick.Local {
			h.orch.SubmitLocal(step.build(false), step.source(intent.SourceLocalInput))
		}

		for _, step := range tick.Remote {
			// Durable enqueue must not be allowed to deadlock a
			// single-threaded run; a scenario overfilling the queue with
			// durable intents is a scripting error.
			enqCtx, cancel := context.WithTimeout(ctx, time.Second)
			err := h.queue.EnqueueDurable(enqCtx, step.build(true), step.source(intent.SourceRemotePeer))
			cancel()
			if err != nil {
				return nil, fmt.Errorf("tick %d: durable enqueue of %s: %w", ti, step.Kind, err)
			}
		}

		for _, step := range tick.Advisory {
			repeat := step.Repeat
			if repeat <= 0 {
				repeat = 1
			}
			for i := 0; i < repeat; i++ {
				h.queue.EnqueueAdvisory(step.build(false), step.source(intent.SourcePrefetch))
			}
		}

		h.orch.Tick(ctx)
	}

	result := &Result{
		Pass:      true,
		Ticks:     h.orch.TickCount(),
		Mutations: h.log.Mutations(),
		Events:    h.sink.Events(),
		Dropped:   h.queue.Dropped(),
	}

	for _, a := range s.Assertions {
		h.assert(a, result)
	}
	return result, nil
}
