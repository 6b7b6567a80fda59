package graph

import "sort"

// Edge connects two nodes by handle with a typed relationship.
// At most one edge per (from, to, type) triple exists.
type Edge struct {
	From Handle
	To   Handle
	Type EdgeType
}

// Graph is the node arena plus the edge set and the Handle<->NodeID index.
//
// INVARIANTS:
//   - every allocated Handle resolves to exactly one NodeID and back
//   - edges reference live handles only (removal prunes incident edges)
//   - Handle 0 is never allocated
//
// Not safe for concurrent use: exclusively owned by the consumer loop.
type Graph struct {
	nodes map[Handle]*Node
	byID  map[NodeID]Handle
	edges map[Edge]struct{}
	next  Handle
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[Handle]*Node),
		byID:  make(map[NodeID]Handle),
		edges: make(map[Edge]struct{}),
	}
}

// Add inserts a node and returns its freshly allocated handle.
// Returns the existing handle and false if the NodeID is already present.
func (g *Graph) Add(n *Node) (Handle, bool) {
	if h, ok := g.byID[n.ID]; ok {
		return h, false
	}
	g.next++
	h := g.next
	g.nodes[h] = n
	g.byID[n.ID] = h
	return h, true
}

// Remove deletes a node and all incident edges.
// Returns false if the handle is not allocated.
func (g *Graph) Remove(h Handle) bool {
	n, ok := g.nodes[h]
	if !ok {
		return false
	}
	delete(g.nodes, h)
	delete(g.byID, n.ID)
	for e := range g.edges {
		if e.From == h || e.To == h {
			delete(g.edges, e)
		}
	}
	return true
}

// DetachEdges removes all edges incident to h, keeping the node.
// Used when a delete/edit conflict leaves a node behind as an inert
// placeholder: the delete still severs its connectivity.
func (g *Graph) DetachEdges(h Handle) {
	for e := range g.edges {
		if e.From == h || e.To == h {
			delete(g.edges, e)
		}
	}
}

// Node returns the node for a handle.
func (g *Graph) Node(h Handle) (*Node, bool) {
	n, ok := g.nodes[h]
	return n, ok
}

// Resolve maps a durable NodeID to its session handle.
func (g *Graph) Resolve(id NodeID) (Handle, bool) {
	h, ok := g.byID[id]
	return h, ok
}

// AddEdge records a typed edge between two live handles.
// Returns false if either endpoint is missing or the edge already exists.
func (g *Graph) AddEdge(from, to Handle, t EdgeType) bool {
	if _, ok := g.nodes[from]; !ok {
		return false
	}
	if _, ok := g.nodes[to]; !ok {
		return false
	}
	e := Edge{From: from, To: to, Type: t}
	if _, ok := g.edges[e]; ok {
		return false
	}
	g.edges[e] = struct{}{}
	return true
}

// RemoveEdge deletes an edge. Returns false if it does not exist.
func (g *Graph) RemoveEdge(from, to Handle, t EdgeType) bool {
	e := Edge{From: from, To: to, Type: t}
	if _, ok := g.edges[e]; !ok {
		return false
	}
	delete(g.edges, e)
	return true
}

// Neighbors returns the handles reachable from h over any edge type,
// sorted for deterministic iteration.
func (g *Graph) Neighbors(h Handle) []Handle {
	seen := make(map[Handle]struct{})
	for e := range g.edges {
		if e.From == h {
			seen[e.To] = struct{}{}
		}
		if e.To == h {
			seen[e.From] = struct{}{}
		}
	}
	out := make([]Handle, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handles returns all allocated handles in ascending order.
// Deterministic iteration order matters: the reconciler and the renderer
// both walk the arena and must see nodes in the same order every tick.
func (g *Graph) Handles() []Handle {
	out := make([]Handle, 0, len(g.nodes))
	for h := range g.nodes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edges returns all edges sorted by (from, to, type).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }
