package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/loomshell/loom/internal/intent"
)

// Snapshot reduces a finished run to the canonical map pinned by golden
// files: the settled graph, the mapping and drop counters, and the
// emission-order diagnostics trace. Mutation hashes and resource ids
// are excluded; they are covered by their own unit tests and would make
// goldens churn on unrelated payload changes.
func (h *Harness) Snapshot(s *Scenario, r *Result) intent.Payload {
	g := h.model.Graph

	nodes := make([]any, 0, g.NodeCount())
	for _, hd := range g.Handles() {
		n, ok := g.Node(hd)
		if !ok {
			continue
		}
		tier, _ := h.model.Tier(hd)
		nodes = append(nodes, intent.Payload{
			"id":          string(n.ID),
			"name":        n.Name,
			"url":         n.URL,
			"tier":        tier.String(),
			"tags":        n.SortedTags(),
			"placeholder": n.Placeholder,
		})
	}

	edges := make([]any, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		from, _ := g.Node(e.From)
		to, _ := g.Node(e.To)
		edges = append(edges, intent.Payload{
			"from": string(from.ID),
			"to":   string(to.ID),
			"type": e.Type.String(),
		})
	}

	return intent.Payload{
		"scenario":  s.Name,
		"ticks":     int(r.Ticks),
		"nodes":     nodes,
		"edges":     edges,
		"mappings":  h.model.MappingCount(),
		"mutations": len(r.Mutations),
		"dropped":   int(r.Dropped),
		"events":    r.EventNames(),
	}
}

// RunWithGolden executes a scenario, checks its assertions, and compares
// the canonical snapshot against testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	h := New(s)
	result, err := h.run(s)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}
	for _, e := range result.Errors {
		t.Errorf("scenario %s: %s", s.Name, e)
	}

	snapshot, err := intent.MarshalCanonical(h.Snapshot(s, result))
	if err != nil {
		t.Fatalf("scenario %s: snapshot: %v", s.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, snapshot)

	return result
}
