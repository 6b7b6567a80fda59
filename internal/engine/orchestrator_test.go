package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/testutil"
)

type kernelFixture struct {
	orch    *Orchestrator
	model   *graph.Model
	backend *testutil.ScriptedBackend
	log     *testutil.MemoryLog
	sink    *testutil.CaptureSink
}

func newKernelFixture(t *testing.T) *kernelFixture {
	t.Helper()

	model := graph.NewModel()
	model.Guard().SetStrict(true)

	backend := testutil.NewScriptedBackend()
	log := testutil.NewMemoryLog()
	sink := testutil.NewCaptureSink()
	d := diag.New(nil, diag.WithSink(sink))

	queue := NewQueue(0, d)
	reducer := NewReducer(model, log, NewClock(), "self", d)
	reconciler := NewReconciler(model, backend, 0, 0, d)
	sup := NewSupervisor(context.Background(), d)
	orch := NewOrchestrator(model, queue, reducer, reconciler, sup, d)

	return &kernelFixture{orch: orch, model: model, backend: backend, log: log, sink: sink}
}

func TestOrchestrator_TickAppliesAndReconciles(t *testing.T) {
	f := newKernelFixture(t)
	ctx := context.Background()

	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "n1", Name: "Home"}, intent.SourceLocalInput)
	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindPromote, Node: "n1", Cause: intent.CauseUserSelect}, intent.SourceLocalInput)

	applied := f.orch.Tick(ctx)
	assert.Equal(t, 2, applied)

	h, ok := f.model.Graph.Resolve("n1")
	require.True(t, ok)
	tier, _ := f.model.Tier(h)
	assert.Equal(t, graph.TierActive, tier)
	_, mapped := f.model.ResourceFor(h)
	assert.True(t, mapped, "reconcile created the resource in the same tick")

	require.NoError(t, f.model.Validate(nil))
	assert.False(t, f.model.Guard().Armed(), "guard must be disarmed after the tick")
}

func TestOrchestrator_IntraTickCollapse(t *testing.T) {
	f := newKernelFixture(t)
	ctx := context.Background()

	// Promote and demote within one tick: the reconciler only sees the
	// settled tier, so no resource is ever created.
	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "n1"}, intent.SourceLocalInput)
	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindPromote, Node: "n1"}, intent.SourceLocalInput)
	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindDemoteCold, Node: "n1"}, intent.SourceLocalInput)

	f.orch.Tick(ctx)

	assert.Equal(t, 0, f.backend.CreateCalls(), "collapsed promote/demote must cause no effect")
	assert.Equal(t, 0, f.backend.LiveCount())
}

func TestOrchestrator_GuardStrictDuringGap(t *testing.T) {
	f := newKernelFixture(t)

	// A renderer runs after the guard disarms: reads are legal there.
	read := false
	f.orch.renderer = rendererFunc(func(m *graph.Model, tick uint64) {
		if h, ok := m.Graph.Resolve("n1"); ok {
			_, _ = m.Tier(h)
			read = true
		}
	})

	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "n1"}, intent.SourceLocalInput)
	assert.NotPanics(t, func() { f.orch.Tick(context.Background()) })
	assert.True(t, read)
	assert.Zero(t, f.model.Guard().Violations())
}

type rendererFunc func(*graph.Model, uint64)

func (f rendererFunc) Render(m *graph.Model, tick uint64) { f(m, tick) }

func TestOrchestrator_LocalInputBeatsEarlierRemote(t *testing.T) {
	f := newKernelFixture(t)
	ctx := context.Background()

	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "n1", Name: "Seed"}, intent.SourceLocalInput)
	f.orch.Tick(ctx)

	// Remote rename enqueues before the local rename, but the local one
	// applies first; the remote's higher clock then wins the merge.
	remote := intent.Intent{Kind: intent.KindSetNodeName, Node: "n1", Name: "FromPeer",
		Remote: &intent.RemoteMeta{Peer: "peer-a", Clock: 50}}
	require.NoError(t, f.orch.Queue().EnqueueDurable(ctx, remote, intent.SourceRemotePeer))
	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindSetNodeName, Node: "n1", Name: "FromUser"}, intent.SourceLocalInput)

	f.orch.Tick(ctx)

	h, _ := f.model.Graph.Resolve("n1")
	n, _ := f.model.Graph.Node(h)
	assert.Equal(t, "FromPeer", n.Name, "merge outcome is clock-driven, not order-driven")

	// Both writes applied; the local one was not skipped.
	assert.Equal(t, 1, f.sink.Count(diag.EventMergeConflict))
}

func TestOrchestrator_ShutdownDrainsAndReleases(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newKernelFixture(t)
	ctx := context.Background()

	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "n1"}, intent.SourceLocalInput)
	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindPromote, Node: "n1"}, intent.SourceLocalInput)
	f.orch.Tick(ctx)
	require.Equal(t, 1, f.backend.LiveCount())

	// A worker that enqueues one final durable intent when cancelled.
	f.orch.Supervisor().Go("peer", func(wctx context.Context) error {
		<-wctx.Done()
		return f.orch.Queue().EnqueueDurable(context.Background(),
			intent.Intent{Kind: intent.KindCreateNode, Node: "late",
				Remote: &intent.RemoteMeta{Peer: "peer-a", Clock: 3}},
			intent.SourceRemotePeer)
	})

	require.NoError(t, f.orch.Shutdown(ctx))

	_, ok := f.model.Graph.Resolve("late")
	assert.True(t, ok, "final drain-apply cycle must absorb worker output")
	assert.Equal(t, 0, f.backend.LiveCount(), "no live resources after shutdown")
	assert.Equal(t, 0, f.model.MappingCount())

	// The queue is closed to stragglers once shutdown has drained.
	err := f.orch.Queue().EnqueueDurable(ctx,
		intent.Intent{Kind: intent.KindCreateNode, Node: "straggler"}, intent.SourceRemotePeer)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestOrchestrator_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newKernelFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	f.orch.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "n1"}, intent.SourceLocalInput)

	require.Eventually(t, func() bool {
		return f.log.Len() == 1
	}, time.Second, 5*time.Millisecond, "run loop should tick and apply")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop on cancellation")
	}

	require.NoError(t, f.orch.Shutdown(context.Background()))
}
