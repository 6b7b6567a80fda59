package harness

import (
	"fmt"
	"reflect"

	"github.com/loomshell/loom/internal/graph"
)

// assert evaluates one assertion against the settled run.
func (h *Harness) assert(a Assertion, r *Result) {
	switch a.Type {
	case AssertTier:
		n, ok := h.lookup(a.Node, r)
		if !ok {
			return
		}
		h2, _ := h.model.Graph.Resolve(graph.NodeID(a.Node))
		tier, _ := h.model.Tier(h2)
		if tier.String() != a.Tier {
			r.AddError(fmt.Sprintf("tier: node %s is %s, want %s", n.ID, tier, a.Tier))
		}

	case AssertName:
		n, ok := h.lookup(a.Node, r)
		if !ok {
			return
		}
		if n.Name != a.Value {
			r.AddError(fmt.Sprintf("name: node %s is %q, want %q", n.ID, n.Name, a.Value))
		}

	case AssertURL:
		n, ok := h.lookup(a.Node, r)
		if !ok {
			return
		}
		if n.URL != a.Value {
			r.AddError(fmt.Sprintf("url: node %s is %q, want %q", n.ID, n.URL, a.Value))
		}

	case AssertTags:
		n, ok := h.lookup(a.Node, r)
		if !ok {
			return
		}
		got := n.SortedTags()
		want := a.Tags
		if len(got) == 0 && len(want) == 0 {
			return
		}
		if !reflect.DeepEqual(got, want) {
			r.AddError(fmt.Sprintf("tags: node %s has %v, want %v", n.ID, got, want))
		}

	case AssertPlaceholder:
		n, ok := h.lookup(a.Node, r)
		if !ok {
			return
		}
		want := a.Value == "true"
		if n.Placeholder != want {
			r.AddError(fmt.Sprintf("placeholder: node %s is %v, want %v", n.ID, n.Placeholder, want))
		}

	case AssertNodeAbsent:
		if _, ok := h.model.Graph.Resolve(graph.NodeID(a.Node)); ok {
			r.AddError(fmt.Sprintf("node_absent: node %s still exists", a.Node))
		}

	case AssertMappings:
		if got := h.model.MappingCount(); got != a.Count {
			r.AddError(fmt.Sprintf("mappings: have %d, want %d", got, a.Count))
		}

	case AssertDropped:
		if got := int(r.Dropped); got != a.Count {
			r.AddError(fmt.Sprintf("dropped: have %d, want %d", got, a.Count))
		}

	case AssertMutations:
		if got := len(r.Mutations); got != a.Count {
			r.AddError(fmt.Sprintf("mutations: have %d, want %d", got, a.Count))
		}

	case AssertCreateCalls:
		if got := h.backend.CreateCalls(); got != a.Count {
			r.AddError(fmt.Sprintf("create_calls: have %d, want %d", got, a.Count))
		}

	case AssertLiveResources:
		if got := h.backend.LiveCount(); got != a.Count {
			r.AddError(fmt.Sprintf("live_resources: have %d, want %d", got, a.Count))
		}

	case AssertEventCount:
		if got := r.EventCount(a.Event); got != a.Count {
			r.AddError(fmt.Sprintf("event_count: %s emitted %d times, want %d", a.Event, got, a.Count))
		}

	default:
		r.AddError(fmt.Sprintf("unknown assertion type %q", a.Type))
	}
}

// lookup resolves a node for node-scoped assertions, recording a
// failure when it does not exist.
func (h *Harness) lookup(id string, r *Result) (*graph.Node, bool) {
	hd, ok := h.model.Graph.Resolve(graph.NodeID(id))
	if !ok {
		r.AddError(fmt.Sprintf("node %s does not exist", id))
		return nil, false
	}
	n, _ := h.model.Graph.Node(hd)
	return n, true
}
