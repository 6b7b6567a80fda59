package graph

import "sort"

// Node is one navigation destination in the graph.
//
// Structural fields (ID, Name, URL, Tags, History) are durable: they are
// created by structural intents and persisted in the structural log.
// Runtime fields (Tier, PromotedSeq, Placeholder) are non-durable
// bookkeeping owned by the reducer/reconciler pair.
type Node struct {
	ID   NodeID
	Name string
	URL  string

	// Tags is an unordered collection attribute. Remote merge is a
	// monotone union: a tag observed anywhere is never un-merged.
	Tags map[string]struct{}

	// History holds traversal entries in visit order; HistoryIndex points
	// at the current entry. Cold restore navigates to the current entry.
	History      []string
	HistoryIndex int

	// Tier is the runtime lifecycle classification. Never persisted.
	Tier Tier

	// PromotedSeq is the apply sequence of the most recent promotion,
	// used for least-recently-promoted eviction under the active limit.
	PromotedSeq uint64

	// Prewarm marks a Warm node whose resource should be pre-created so a
	// later promote is instant. Set when a warm intent carries a prefetch
	// or prewarm cause; cleared on promote and on demotion to Cold.
	Prewarm bool

	// Placeholder marks a node that survived a delete/edit conflict: a
	// remote delete was recorded while a concurrent edit kept the node
	// visible as an inert placeholder.
	Placeholder bool

	// Tombstone records that a remote delete has been observed for this
	// node. A tombstoned node without a conflicting edit is removed; with
	// one it stays as a placeholder.
	Tombstone bool

	// NameVersion and URLVersion track last-writer-wins state for the
	// merge-scalar attributes.
	NameVersion Version
	URLVersion  Version
}

// NewNode returns a Cold node with allocated collections.
func NewNode(id NodeID, name, url string) *Node {
	return &Node{
		ID:   id,
		Name: name,
		URL:  url,
		Tags: make(map[string]struct{}),
		Tier: TierCold,
	}
}

// CurrentHistoryEntry returns the entry HistoryIndex points at, or the
// node URL when no history has been recorded. Used by the reconciler when
// recreating a resource for a restored node.
func (n *Node) CurrentHistoryEntry() string {
	if len(n.History) == 0 {
		return n.URL
	}
	idx := n.HistoryIndex
	if idx >= len(n.History) {
		idx = len(n.History) - 1
	}
	if idx < 0 {
		idx = 0
	}
	if entry := n.History[idx]; entry != "" {
		return entry
	}
	return n.URL
}

// SortedTags returns the tag set as a sorted slice for deterministic
// rendering and log output.
func (n *Node) SortedTags() []string {
	if len(n.Tags) == 0 {
		return nil
	}
	tags := make([]string, 0, len(n.Tags))
	for tag := range n.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
