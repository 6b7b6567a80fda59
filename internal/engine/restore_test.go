package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/store"
	"github.com/loomshell/loom/internal/testutil"
)

func buildKernel(log MutationLog) (*Orchestrator, *graph.Model) {
	model := graph.NewModel()
	d := diag.Nop()
	queue := NewQueue(0, d)
	reducer := NewReducer(model, log, NewClock(), "self", d)
	reconciler := NewReconciler(model, testutil.NewScriptedBackend(), 0, 0, d)
	orch := NewOrchestrator(model, queue, reducer, reconciler, nil, d)
	return orch, model
}

func TestRestore_RebuildsGraphFromLog(t *testing.T) {
	ctx := context.Background()
	log := testutil.NewMemoryLog()

	// First session: build some durable state.
	orch1, model1 := buildKernel(log)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "a", Name: "Alpha", URL: "https://a"}, intent.SourceLocalInput)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "b", Name: "Beta", URL: "https://b"}, intent.SourceLocalInput)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindCreateEdge, From: "a", To: "b", EdgeType: graph.EdgeHistory}, intent.SourceLocalInput)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindTagNode, Node: "a", Tag: "work"}, intent.SourceLocalInput)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindPromote, Node: "a"}, intent.SourceLocalInput)
	orch1.Tick(ctx)

	remote := intent.Intent{Kind: intent.KindSetNodeName, Node: "b", Name: "Renamed",
		Remote: &intent.RemoteMeta{Peer: "peer-x", Clock: 30}}
	require.NoError(t, orch1.Queue().EnqueueDurable(ctx, remote, intent.SourceRemotePeer))
	orch1.Tick(ctx)

	// Second session: restore from the log alone.
	orch2, model2 := buildKernel(nil)
	require.NoError(t, orch2.Restore(ctx, log))

	assert.Equal(t, model1.Graph.NodeCount(), model2.Graph.NodeCount())
	assert.Equal(t, model1.Graph.EdgeCount(), model2.Graph.EdgeCount())

	hb, ok := model2.Graph.Resolve("b")
	require.True(t, ok)
	nb, _ := model2.Graph.Node(hb)
	assert.Equal(t, "Renamed", nb.Name, "remote merge result survives restore")

	ha, _ := model2.Graph.Resolve("a")
	na, _ := model2.Graph.Node(ha)
	assert.Equal(t, []string{"work"}, na.SortedTags())
	assert.Equal(t, graph.TierCold, na.Tier, "lifecycle state is not durable")
	assert.Equal(t, 0, model2.MappingCount())
}

func TestRestore_ResumesSequenceAndClock(t *testing.T) {
	ctx := context.Background()
	log := testutil.NewMemoryLog()

	orch1, _ := buildKernel(log)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "a"}, intent.SourceLocalInput)
	remote := intent.Intent{Kind: intent.KindCreateNode, Node: "r",
		Remote: &intent.RemoteMeta{Peer: "peer-x", Clock: 44}}
	require.NoError(t, orch1.Queue().EnqueueDurable(ctx, remote, intent.SourceRemotePeer))
	orch1.Tick(ctx)

	lastSeq, err := log.LastSeq(ctx)
	require.NoError(t, err)
	require.NotZero(t, lastSeq)

	orch2, _ := buildKernel(nil)
	require.NoError(t, orch2.Restore(ctx, log))

	assert.Equal(t, lastSeq, orch2.reducer.ApplySeq(), "apply sequence resumes past the log")
	assert.GreaterOrEqual(t, orch2.reducer.clock.Current(), uint64(44), "clock resumes past observed remote clocks")
}

func TestRestore_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	log := testutil.NewMemoryLog()

	orch1, _ := buildKernel(log)
	orch1.SubmitLocal(intent.Intent{Kind: intent.KindCreateNode, Node: "a", Name: "Alpha"}, intent.SourceLocalInput)
	orch1.Tick(ctx)

	orch2, model2 := buildKernel(nil)
	require.NoError(t, orch2.Restore(ctx, log))
	require.NoError(t, orch2.Restore(ctx, log), "double restore must not error")

	assert.Equal(t, 1, model2.Graph.NodeCount(), "duplicate replay collapses to no-ops")
}

func TestIntentFromMutation_RejectsUnknownKind(t *testing.T) {
	_, err := IntentFromMutation(store.Mutation{ID: "x", Kind: "bogus_kind", Payload: "{}"})
	assert.Error(t, err)
}

func TestIntentFromMutation_RoundTripsRemoteMeta(t *testing.T) {
	in, err := IntentFromMutation(store.Mutation{
		ID:      "x",
		Kind:    "set_node_name",
		Node:    "n1",
		Payload: `{"name":"N","url":"","tag":"","entry":"","from":"","to":"","edge":"unknown","plugin":"","reason":""}`,
		Peer:    "peer-a",
		Clock:   17,
	})
	require.NoError(t, err)
	assert.Equal(t, intent.KindSetNodeName, in.Kind)
	assert.Equal(t, graph.NodeID("n1"), in.Node)
	assert.Equal(t, "N", in.Name)
	require.NotNil(t, in.Remote)
	assert.Equal(t, uint64(17), in.Remote.Clock)
	assert.Equal(t, "peer-a", in.Remote.Peer)
}
