package engine

import (
	"context"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/store"
)

// MutationLog is the durable sink for applied structural mutations.
// Implemented by *store.Store; tests substitute an in-memory fake.
type MutationLog interface {
	AppendMutation(ctx context.Context, m store.Mutation) (bool, error)
}

// Reducer applies ordered batches to the model.
//
// Apply is total: an intent whose preconditions fail becomes a recorded
// no-op (apply_noop event), never an error and never a partial write.
// Structural intents that do mutate the graph are appended to the
// durable log; lifecycle intents only touch runtime state and are not
// logged.
//
// CRITICAL: Apply runs only on the consumer goroutine.
type Reducer struct {
	model *graph.Model
	log   MutationLog // nil disables durable logging
	clock *LogicalClock
	self  string // local peer id for version stamping
	diag  *diag.Emitter

	applySeq uint64
	tick     uint64

	// tombstones records the delete clock of remotely removed nodes so a
	// concurrent remote edit can be detected regardless of arrival order.
	tombstones map[graph.NodeID]uint64

	// graveyard keeps the last state of remotely removed nodes. A newer
	// concurrent edit resurrects from here, so the surviving placeholder
	// carries the same attributes whichever delta arrived first.
	graveyard map[graph.NodeID]*graph.Node
}

// NewReducer creates a reducer over the model. selfPeer identifies this
// replica in last-writer-wins version stamps.
func NewReducer(model *graph.Model, log MutationLog, clock *LogicalClock, selfPeer string, d *diag.Emitter) *Reducer {
	if d == nil {
		d = diag.Nop()
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Reducer{
		model:      model,
		log:        log,
		clock:      clock,
		self:       selfPeer,
		diag:       d,
		tombstones: make(map[graph.NodeID]uint64),
		graveyard:  make(map[graph.NodeID]*graph.Node),
	}
}

// ApplySeq returns the current global apply sequence.
func (r *Reducer) ApplySeq() uint64 { return r.applySeq }

// SetApplySeq resumes the apply sequence after a restore.
func (r *Reducer) SetApplySeq(seq uint64) { r.applySeq = seq }

// Apply applies an already-ordered batch for one tick.
func (r *Reducer) Apply(ctx context.Context, batch []intent.Queued, tick uint64) {
	r.tick = tick
	for _, q := range batch {
		r.applyOne(ctx, q)
	}
}

// applyOne dispatches a single queued intent by family.
func (r *Reducer) applyOne(ctx context.Context, q intent.Queued) {
	switch q.Intent.Family() {
	case intent.FamilyLifecycle:
		r.applyLifecycle(q)
	case intent.FamilyRemoteDelta:
		if applied, reason := r.applyRemote(q); applied {
			r.applySeq++
			r.appendLog(ctx, q)
		} else if reason != "" {
			r.diag.ApplyNoop(q.Intent.Kind.String(), string(q.Intent.Node), reason)
		}
	default:
		if applied, reason := r.applyStructural(q); applied {
			r.applySeq++
			r.appendLog(ctx, q)
		} else {
			r.diag.ApplyNoop(q.Intent.Kind.String(), string(q.Intent.Node), reason)
		}
	}
}

// applyStructural applies a local-origin structural intent.
// Returns whether the graph changed and, if not, why.
func (r *Reducer) applyStructural(q intent.Queued) (bool, string) {
	in := q.Intent
	g := r.model.Graph

	switch in.Kind {
	case intent.KindCreateNode:
		if _, exists := g.Resolve(in.Node); exists {
			return false, "node_exists"
		}
		n := graph.NewNode(in.Node, in.Name, in.URL)
		v := graph.Version{Clock: r.clock.Next(), Peer: r.self}
		n.NameVersion = v
		n.URLVersion = v
		g.Add(n)
		return true, ""

	case intent.KindRemoveNode:
		h, ok := g.Resolve(in.Node)
		if !ok {
			return false, "node_missing"
		}
		g.Remove(h)
		return true, ""

	case intent.KindCreateEdge:
		from, ok := g.Resolve(in.From)
		if !ok {
			return false, "from_missing"
		}
		to, ok := g.Resolve(in.To)
		if !ok {
			return false, "to_missing"
		}
		if !g.AddEdge(from, to, in.EdgeType) {
			return false, "edge_exists"
		}
		return true, ""

	case intent.KindRemoveEdge:
		from, ok := g.Resolve(in.From)
		if !ok {
			return false, "from_missing"
		}
		to, ok := g.Resolve(in.To)
		if !ok {
			return false, "to_missing"
		}
		if !g.RemoveEdge(from, to, in.EdgeType) {
			return false, "edge_missing"
		}
		return true, ""

	case intent.KindSetNodeName:
		n, ok := r.node(in.Node)
		if !ok {
			return false, "node_missing"
		}
		n.Name = in.Name
		n.NameVersion = graph.Version{Clock: r.clock.Next(), Peer: r.self}
		return true, ""

	case intent.KindSetNodeURL:
		n, ok := r.node(in.Node)
		if !ok {
			return false, "node_missing"
		}
		n.URL = in.URL
		n.URLVersion = graph.Version{Clock: r.clock.Next(), Peer: r.self}
		return true, ""

	case intent.KindTagNode:
		n, ok := r.node(in.Node)
		if !ok {
			return false, "node_missing"
		}
		if _, has := n.Tags[in.Tag]; has {
			return false, "tag_exists"
		}
		n.Tags[in.Tag] = struct{}{}
		return true, ""

	case intent.KindUntagNode:
		n, ok := r.node(in.Node)
		if !ok {
			return false, "node_missing"
		}
		if _, has := n.Tags[in.Tag]; !has {
			return false, "tag_missing"
		}
		delete(n.Tags, in.Tag)
		return true, ""

	case intent.KindAppendHistory:
		n, ok := r.node(in.Node)
		if !ok {
			return false, "node_missing"
		}
		// Appending while back in history truncates the forward entries,
		// matching per-node back/forward semantics.
		if n.HistoryIndex < len(n.History)-1 {
			n.History = n.History[:n.HistoryIndex+1]
		}
		n.History = append(n.History, in.Entry)
		n.HistoryIndex = len(n.History) - 1
		n.URL = in.Entry
		n.URLVersion = graph.Version{Clock: r.clock.Next(), Peer: r.self}
		return true, ""

	case intent.KindPluginActivated:
		r.diag.Emit(diag.EventPluginActivated, map[string]any{"plugin": in.Plugin})
		return true, ""

	case intent.KindPluginLoadFailed:
		r.diag.Emit(diag.EventPluginLoadFailed, map[string]any{"plugin": in.Plugin, "reason": in.Reason})
		return true, ""

	default:
		return false, "unknown_kind"
	}
}

// applyLifecycle mutates runtime state only. Never logged.
func (r *Reducer) applyLifecycle(q intent.Queued) {
	in := q.Intent
	g := r.model.Graph

	switch in.Kind {
	case intent.KindPromote:
		h, ok := g.Resolve(in.Node)
		if !ok {
			r.diag.ApplyNoop(in.Kind.String(), string(in.Node), "node_missing")
			return
		}
		n, _ := g.Node(h)
		n.Tier = graph.TierActive
		n.Prewarm = false
		r.applySeq++
		n.PromotedSeq = r.applySeq

	case intent.KindDemoteWarm:
		if n := r.setTier(in, graph.TierWarm); n != nil {
			// Prefetch-driven warming pre-creates the resource, so the
			// eventual promote skips the creation latency.
			if in.Cause == intent.CausePrefetch || in.Cause == intent.CauseSelectedPrewarm {
				n.Prewarm = true
			}
		}

	case intent.KindDemoteCold:
		if n := r.setTier(in, graph.TierCold); n != nil {
			n.Prewarm = false
		}

	case intent.KindMapResource:
		h, ok := g.Resolve(in.Node)
		if !ok {
			r.diag.ApplyNoop(in.Kind.String(), string(in.Node), "node_missing")
			return
		}
		r.model.Mappings().Map(h, in.Resource)

	case intent.KindUnmapResource:
		if in.Node != "" {
			if h, ok := g.Resolve(in.Node); ok {
				r.model.Mappings().UnmapHandle(h)
				return
			}
			r.diag.ApplyNoop(in.Kind.String(), string(in.Node), "node_missing")
			return
		}
		r.model.Mappings().UnmapResource(in.Resource)

	case intent.KindSetMemoryPressure:
		r.model.SetPressure(in.Pressure)

	default:
		r.diag.ApplyNoop(in.Kind.String(), string(in.Node), "unknown_kind")
	}
}

func (r *Reducer) setTier(in intent.Intent, t graph.Tier) *graph.Node {
	h, ok := r.model.Graph.Resolve(in.Node)
	if !ok {
		r.diag.ApplyNoop(in.Kind.String(), string(in.Node), "node_missing")
		return nil
	}
	r.model.SetTier(h, t)
	n, _ := r.model.Graph.Node(h)
	return n
}

func (r *Reducer) node(id graph.NodeID) (*graph.Node, bool) {
	h, ok := r.model.Graph.Resolve(id)
	if !ok {
		return nil, false
	}
	return r.model.Graph.Node(h)
}

// appendLog writes an applied structural mutation to the durable log.
// Restore replays are never re-logged: their rows are already present.
// Log failures are reported and skipped; retrying would reorder the log
// relative to the live apply order.
func (r *Reducer) appendLog(ctx context.Context, q intent.Queued) {
	if r.log == nil || q.Source == intent.SourceRestore {
		return
	}

	in := q.Intent
	id, err := intent.MutationID(in, q.Source, r.applySeq)
	if err != nil {
		r.diag.LogWriteFailed(in.Kind.String(), err)
		return
	}

	payload, err := intent.MarshalCanonical(payloadFields(in))
	if err != nil {
		r.diag.LogWriteFailed(in.Kind.String(), err)
		return
	}

	m := store.Mutation{
		ID:      id,
		Seq:     r.applySeq,
		Tick:    r.tick,
		Kind:    in.Kind.String(),
		Node:    string(in.Node),
		Payload: string(payload),
		Source:  q.Source.String(),
	}
	if in.Remote != nil {
		m.Peer = in.Remote.Peer
		m.Clock = in.Remote.Clock
	}

	if _, err := r.log.AppendMutation(ctx, m); err != nil {
		r.diag.LogWriteFailed(in.Kind.String(), err)
	}
}

// payloadFields extracts the durable operation fields of an intent.
// Keys are fixed so the canonical form is stable across versions.
func payloadFields(in intent.Intent) intent.Payload {
	return intent.Payload{
		"name":   in.Name,
		"url":    in.URL,
		"tag":    in.Tag,
		"entry":  in.Entry,
		"from":   string(in.From),
		"to":     string(in.To),
		"edge":   in.EdgeType.String(),
		"plugin": in.Plugin,
		"reason": in.Reason,
	}
}
