package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// buildModel assembles a model with one Active hub linked to Cold
// neighbors, runs it through the snapshot publisher, and returns both.
func buildModel(t *testing.T) (*graph.Model, Snapshot) {
	t.Helper()

	m := graph.NewModel()
	hub := graph.NewNode("hub", "Hub", "https://hub")
	hub.Tier = graph.TierActive
	hub.PromotedSeq = 10
	hh, _ := m.Graph.Add(hub)

	for _, id := range []graph.NodeID{"cold-a", "cold-b"} {
		n := graph.NewNode(id, string(id), "")
		ch, _ := m.Graph.Add(n)
		m.Graph.AddEdge(hh, ch, graph.EdgeHyperlink)
	}

	warm := graph.NewNode("warm-c", "Warm", "")
	warm.Tier = graph.TierWarm
	wh, _ := m.Graph.Add(warm)
	m.Graph.AddEdge(hh, wh, graph.EdgeHyperlink)

	pub := NewSnapshotPublisher(nil)
	pub.Render(m, 3)
	return m, pub.Latest()
}

func TestSnapshotPublisher(t *testing.T) {
	_, snap := buildModel(t)

	assert.Equal(t, uint64(3), snap.Tick)
	require.Equal(t, []graph.NodeID{"hub"}, snap.Recent)
	// Cold neighbors only, in id order; the Warm one is excluded.
	assert.Equal(t, []graph.NodeID{"cold-a", "cold-b"}, snap.ColdNeighbors["hub"])
}

func TestSnapshotPublisherEmptyBeforeFirstRender(t *testing.T) {
	pub := NewSnapshotPublisher(nil)
	snap := pub.Latest()
	assert.Zero(t, snap.Tick)
	assert.Empty(t, snap.Recent)
}

func TestPrefetcherProposesColdNeighbors(t *testing.T) {
	_, snap := buildModel(t)

	q := engine.NewQueue(8, diag.Nop())
	p := NewPrefetcher(q, func() Snapshot { return snap }, 0, 4)

	require.Equal(t, 2, p.Propose())

	drained := q.Drain()
	require.Len(t, drained, 2)
	for _, d := range drained {
		assert.Equal(t, intent.KindDemoteWarm, d.Intent.Kind)
		assert.Equal(t, intent.CausePrefetch, d.Intent.Cause)
		assert.Equal(t, intent.SourcePrefetch, d.Source)
	}
	assert.Equal(t, graph.NodeID("cold-a"), drained[0].Intent.Node)
	assert.Equal(t, graph.NodeID("cold-b"), drained[1].Intent.Node)
}

func TestPrefetcherSkipsStaleSnapshot(t *testing.T) {
	_, snap := buildModel(t)

	q := engine.NewQueue(8, diag.Nop())
	p := NewPrefetcher(q, func() Snapshot { return snap }, 0, 4)

	require.Equal(t, 2, p.Propose())
	// Same tick again: nothing new to propose.
	assert.Equal(t, 0, p.Propose())
}

func TestPrefetcherHonorsWarmLimit(t *testing.T) {
	_, snap := buildModel(t)

	q := engine.NewQueue(8, diag.Nop())
	p := NewPrefetcher(q, func() Snapshot { return snap }, 0, 1)

	assert.Equal(t, 1, p.Propose())
	assert.Len(t, q.Drain(), 1)
}

func TestPrefetcherDroppedProposalsDoNotCount(t *testing.T) {
	_, snap := buildModel(t)

	q := engine.NewQueue(1, diag.Nop())
	p := NewPrefetcher(q, func() Snapshot { return snap }, 0, 4)

	// Capacity 1: the second proposal is dropped by the advisory path.
	assert.Equal(t, 1, p.Propose())
	assert.Equal(t, uint64(1), q.Dropped())
}

func TestPrefetcherRunStopsOnCancel(t *testing.T) {
	_, snap := buildModel(t)
	q := engine.NewQueue(8, diag.Nop())
	p := NewPrefetcher(q, func() Snapshot { return snap }, 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
