package workers

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// Snapshot is the immutable view the prefetch scheduler plans from.
// Built on the consumer goroutine after reconcile, so the worker never
// reads the live model.
type Snapshot struct {
	Tick uint64

	// Recent holds Active node ids, most recently promoted first.
	Recent []graph.NodeID

	// ColdNeighbors maps each Active node to its Cold, non-placeholder
	// neighbors in id order.
	ColdNeighbors map[graph.NodeID][]graph.NodeID
}

// SnapshotPublisher builds a Snapshot each render and hands it to the
// prefetch scheduler. Implements the orchestrator's render hook; wrap it
// with any display renderer the embedder supplies.
type SnapshotPublisher struct {
	latest atomic.Pointer[Snapshot]
	next   engine.Renderer
}

// NewSnapshotPublisher creates a publisher chaining to next (may be nil).
func NewSnapshotPublisher(next engine.Renderer) *SnapshotPublisher {
	return &SnapshotPublisher{next: next}
}

// Render captures the snapshot, then delegates.
func (p *SnapshotPublisher) Render(m *graph.Model, tick uint64) {
	snap := buildSnapshot(m, tick)
	p.latest.Store(&snap)
	if p.next != nil {
		p.next.Render(m, tick)
	}
}

// Latest returns the most recent snapshot, or an empty one before the
// first render.
func (p *SnapshotPublisher) Latest() Snapshot {
	if s := p.latest.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

func buildSnapshot(m *graph.Model, tick uint64) Snapshot {
	snap := Snapshot{
		Tick:          tick,
		ColdNeighbors: make(map[graph.NodeID][]graph.NodeID),
	}

	type active struct {
		id  graph.NodeID
		seq uint64
	}
	var actives []active

	g := m.Graph
	for _, h := range g.Handles() {
		n, ok := g.Node(h)
		if !ok || n.Tier != graph.TierActive || n.Placeholder {
			continue
		}
		actives = append(actives, active{id: n.ID, seq: n.PromotedSeq})

		var cold []graph.NodeID
		for _, nh := range g.Neighbors(h) {
			nb, ok := g.Node(nh)
			if !ok || nb.Tier != graph.TierCold || nb.Placeholder {
				continue
			}
			cold = append(cold, nb.ID)
		}
		sort.Slice(cold, func(i, j int) bool { return cold[i] < cold[j] })
		snap.ColdNeighbors[n.ID] = cold
	}

	sort.Slice(actives, func(i, j int) bool { return actives[i].seq > actives[j].seq })
	snap.Recent = make([]graph.NodeID, len(actives))
	for i, a := range actives {
		snap.Recent[i] = a.id
	}
	return snap
}

// Prefetcher periodically proposes warming the Cold neighbors of
// recently active nodes. An accepted proposal marks the node for
// prewarm, so the reconciler pre-creates its resource and a later
// promote skips the creation latency. Proposals are advisory: a full
// queue drops them and the next cycle regenerates whatever still
// applies.
type Prefetcher struct {
	queue     *engine.Queue
	source    func() Snapshot
	interval  time.Duration
	warmLimit int

	lastTick uint64
}

// NewPrefetcher creates a scheduler reading snapshots from source.
// warmLimit caps proposals per cycle; <= 0 selects 4. An interval <= 0
// selects 500ms.
func NewPrefetcher(q *engine.Queue, source func() Snapshot, interval time.Duration, warmLimit int) *Prefetcher {
	if warmLimit <= 0 {
		warmLimit = 4
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Prefetcher{
		queue:     q,
		source:    source,
		interval:  interval,
		warmLimit: warmLimit,
	}
}

// Run proposes on an interval until the context is cancelled.
func (p *Prefetcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Propose()
		}
	}
}

// Propose enqueues up to warmLimit advisory warm intents from the
// current snapshot. Cycles are skipped until a new tick publishes a
// fresh snapshot; re-proposing from a stale one would just re-warm the
// same nodes.
func (p *Prefetcher) Propose() int {
	snap := p.source()
	if snap.Tick == p.lastTick {
		return 0
	}
	p.lastTick = snap.Tick

	proposed := 0
	seen := make(map[graph.NodeID]bool)
	for _, id := range snap.Recent {
		for _, cold := range snap.ColdNeighbors[id] {
			if seen[cold] {
				continue
			}
			seen[cold] = true
			in := intent.Intent{
				Kind:  intent.KindDemoteWarm,
				Cause: intent.CausePrefetch,
				Node:  cold,
			}
			if p.queue.EnqueueAdvisory(in, intent.SourcePrefetch) {
				proposed++
			}
			if proposed >= p.warmLimit {
				return proposed
			}
		}
	}
	return proposed
}
