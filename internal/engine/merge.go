package engine

import (
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// Merge resolutions recorded in merge_conflict events.
const (
	mergeKeptLocal        = "lww_kept_local"
	mergeTookRemote       = "lww_took_remote"
	mergePlaceholder      = "delete_edit_placeholder"
	mergeUnionOnly        = "untag_ignored_monotone_union"
	mergeDeleteSuperseded = "delete_superseded_by_edit"
)

// applyRemote merges a remote delta into the graph.
//
// Policy:
//   - Scalar attributes (name, url) resolve last-writer-wins on
//     (clock, peer id), higher wins. The losing write is dropped and a
//     merge_conflict event records the resolution.
//   - Tags merge by monotone union: remote additions apply, remote
//     removals do not.
//   - Delete/edit conflicts resolve non-destructively: the node survives
//     as a tombstoned placeholder rather than losing the edit.
//
// Resolution depends only on (clock, peer), never on arrival order, so
// any interleaving of the same deltas converges to the same graph.
func (r *Reducer) applyRemote(q intent.Queued) (bool, string) {
	in := q.Intent
	meta := in.Remote
	g := r.model.Graph

	// Every observed remote clock ratchets the local clock so later
	// local edits sort after everything already merged.
	r.clock.Observe(meta.Clock)

	switch in.Kind {
	case intent.KindCreateNode:
		if tombClock, dead := r.tombstones[in.Node]; dead && meta.Clock <= tombClock {
			return false, "tombstoned"
		}
		if _, exists := g.Resolve(in.Node); exists {
			return false, "node_exists"
		}
		n := graph.NewNode(in.Node, in.Name, in.URL)
		v := graph.Version{Clock: meta.Clock, Peer: meta.Peer}
		n.NameVersion = v
		n.URLVersion = v
		g.Add(n)
		delete(r.graveyard, in.Node)
		return true, ""

	case intent.KindRemoveNode:
		h, ok := g.Resolve(in.Node)
		if !ok {
			// Record the delete anyway: an older edit arriving later must
			// still lose to it.
			if meta.Clock > r.tombstones[in.Node] {
				r.tombstones[in.Node] = meta.Clock
			}
			return false, "node_missing"
		}
		n, _ := g.Node(h)
		if meta.Clock > r.tombstones[in.Node] {
			r.tombstones[in.Node] = meta.Clock
		}
		if n.NameVersion.Clock > meta.Clock || n.URLVersion.Clock > meta.Clock {
			// Concurrent edit is newer than the delete: keep the node
			// visible as an inert placeholder instead of destroying it.
			// The delete still severs connectivity, matching the state a
			// replica reaches when the delete lands before the edit.
			n.Tombstone = true
			n.Placeholder = true
			n.Tier = graph.TierCold
			n.Prewarm = false
			g.DetachEdges(h)
			r.diag.MergeConflict(string(in.Node), "node", mergePlaceholder)
			return true, ""
		}
		r.graveyard[in.Node] = n
		g.Remove(h)
		return true, ""

	case intent.KindSetNodeName:
		n, ok := r.node(in.Node)
		if !ok {
			return r.resurrectForEdit(q)
		}
		if !n.NameVersion.Supersedes(meta.Clock, meta.Peer) {
			r.diag.MergeConflict(string(in.Node), "name", mergeKeptLocal)
			return false, ""
		}
		if n.NameVersion.Clock > 0 && n.NameVersion.Peer != meta.Peer {
			r.diag.MergeConflict(string(in.Node), "name", mergeTookRemote)
		}
		n.Name = in.Name
		n.NameVersion = graph.Version{Clock: meta.Clock, Peer: meta.Peer}
		return true, ""

	case intent.KindSetNodeURL:
		n, ok := r.node(in.Node)
		if !ok {
			return r.resurrectForEdit(q)
		}
		if !n.URLVersion.Supersedes(meta.Clock, meta.Peer) {
			r.diag.MergeConflict(string(in.Node), "url", mergeKeptLocal)
			return false, ""
		}
		if n.URLVersion.Clock > 0 && n.URLVersion.Peer != meta.Peer {
			r.diag.MergeConflict(string(in.Node), "url", mergeTookRemote)
		}
		n.URL = in.URL
		n.URLVersion = graph.Version{Clock: meta.Clock, Peer: meta.Peer}
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
		// Tags merge by monotone union; remote removals do not propagate.
		r.diag.MergeConflict(string(in.Node), "tags", mergeUnionOnly)
		return false, ""

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

	case intent.KindAppendHistory:
		n, ok := r.node(in.Node)
		if !ok {
			return false, "node_missing"
		}
		if n.HistoryIndex < len(n.History)-1 {
			n.History = n.History[:n.HistoryIndex+1]
		}
		n.History = append(n.History, in.Entry)
		n.HistoryIndex = len(n.History) - 1
		return true, ""

	default:
		return false, "unknown_kind"
	}
}

// resurrectForEdit handles a remote edit targeting a node this replica
// already removed. If the edit is newer than the recorded delete, the
// node returns as a tombstoned placeholder; otherwise the delete stands.
//
// The placeholder restores the node's last known state from the
// graveyard and then applies only the edited field, so the outcome is
// identical to the delete arriving after the edit. A resurrection
// without graveyard state (the delete preceded any sighting of the
// node) populates just the edited field and leaves the other version
// at zero for later deltas to fill.
func (r *Reducer) resurrectForEdit(q intent.Queued) (bool, string) {
	in := q.Intent
	meta := in.Remote

	tombClock, dead := r.tombstones[in.Node]
	if !dead || meta.Clock <= tombClock {
		return false, "node_missing"
	}

	n, buried := r.graveyard[in.Node]
	if !buried {
		n = graph.NewNode(in.Node, "", "")
	}
	delete(r.graveyard, in.Node)
	n.Tombstone = true
	n.Placeholder = true
	n.Tier = graph.TierCold
	n.Prewarm = false
	r.model.Graph.Add(n)

	v := graph.Version{Clock: meta.Clock, Peer: meta.Peer}
	switch in.Kind {
	case intent.KindSetNodeName:
		if n.NameVersion.Supersedes(meta.Clock, meta.Peer) {
			n.Name = in.Name
			n.NameVersion = v
		}
	case intent.KindSetNodeURL:
		if n.URLVersion.Supersedes(meta.Clock, meta.Peer) {
			n.URL = in.URL
			n.URLVersion = v
		}
	}
	r.diag.MergeConflict(string(in.Node), "node", mergeDeleteSuperseded)
	return true, ""
}
