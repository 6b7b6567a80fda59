package engine

import (
	"context"
	"sort"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// DefaultRetryThreshold is the number of consecutive creation failures
// before a node is forcibly demoted to Cold.
const DefaultRetryThreshold = 3

// DefaultActiveLimit caps concurrently Active nodes under Normal
// pressure.
const DefaultActiveLimit = 12

// ResourceBackend creates and destroys the engine-side resources backing
// Active and Warm nodes. Implemented by the embedding engine adapter;
// tests substitute a scripted fake.
type ResourceBackend interface {
	Create(ctx context.Context, node *graph.Node) (graph.ResourceID, error)
	Destroy(ctx context.Context, id graph.ResourceID) error
}

// Reconciler is the effect phase: it diffs desired lifecycle state
// against the mapping table and drives the backend to match.
//
// Creation failures are retried on subsequent ticks up to the retry
// threshold, then the node is forcibly demoted to Cold and left alone
// until a fresh promote arrives. Destroy failures are reported and the
// mapping dropped; the backend owns cleanup of orphaned resources.
type Reconciler struct {
	model     *graph.Model
	backend   ResourceBackend
	diag      *diag.Emitter
	threshold int
	limit     int

	retries map[graph.Handle]int
}

// NewReconciler creates a reconciler. threshold <= 0 selects
// DefaultRetryThreshold; limit <= 0 selects DefaultActiveLimit.
func NewReconciler(model *graph.Model, backend ResourceBackend, threshold, limit int, d *diag.Emitter) *Reconciler {
	if d == nil {
		d = diag.Nop()
	}
	if threshold <= 0 {
		threshold = DefaultRetryThreshold
	}
	if limit <= 0 {
		limit = DefaultActiveLimit
	}
	return &Reconciler{
		model:     model,
		backend:   backend,
		diag:      d,
		threshold: threshold,
		limit:     limit,
	}
}

// Reconcile runs one effect pass. Called once per tick from the
// consumer goroutine, with the phase-gap guard armed.
func (c *Reconciler) Reconcile(ctx context.Context) {
	view := c.model.BeginReconcile()

	c.pruneStale(ctx, view)
	c.enforceActiveLimit(view)
	c.settleTiers(ctx, view)
	c.pruneRetries(view)
}

// pruneStale destroys resources whose node no longer exists.
func (c *Reconciler) pruneStale(ctx context.Context, view *graph.EffectView) {
	table := view.Resources()
	for _, h := range table.MappedHandles() {
		if _, ok := view.Node(h); ok {
			continue
		}
		id, _ := table.ResourceFor(h)
		c.destroy(ctx, id)
		table.UnmapHandle(h)
	}
}

// enforceActiveLimit evicts least-recently-promoted Active nodes when
// the pressure-adjusted limit is exceeded. Plain limit evictions demote
// to Warm, which keeps the resource alive so the node re-activates
// without a create. Evictions forced by a pressure-lowered limit demote
// to Cold instead: the whole point is releasing memory, and a Warm
// mapping would hold it.
func (c *Reconciler) enforceActiveLimit(view *graph.EffectView) {
	level := view.Pressure().Level
	limit := AdjustedActiveLimit(c.limit, level)

	var active []*graph.Node
	var handles []graph.Handle
	for _, h := range c.model.Graph.Handles() {
		n, _ := view.Node(h)
		if n.Tier == graph.TierActive {
			active = append(active, n)
			handles = append(handles, h)
		}
	}
	if len(active) <= limit {
		return
	}

	// Oldest promotions first.
	order := make([]int, len(active))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return active[order[a]].PromotedSeq < active[order[b]].PromotedSeq
	})

	excess := len(active) - limit
	pressured := limit < c.limit
	for _, idx := range order[:excess] {
		n := active[idx]
		if pressured {
			view.SetTier(handles[idx], graph.TierCold)
			n.Prewarm = false
			cause := intent.CausePressureWarning
			if level == graph.PressureCritical {
				cause = intent.CausePressureCritical
			}
			c.diag.Emit(diag.EventForcedDemotion, map[string]any{
				"node":  string(n.ID),
				"cause": string(cause),
				"limit": limit,
			})
			continue
		}
		view.SetTier(handles[idx], graph.TierWarm)
		c.diag.Emit(diag.EventLRUEviction, map[string]any{
			"node":  string(n.ID),
			"cause": string(intent.CauseActiveLRUEviction),
			"limit": limit,
		})
	}
}

// settleTiers drives mappings toward tier state: Active unmapped nodes
// get creation attempts, Cold mapped nodes get destroyed. Warm nodes
// keep whatever resource they have; only a prewarm-flagged Warm node
// forces a create.
//
// Any Cold observation clears the node's retry counter, so a fresh
// promote starts with the full retry budget even if the node went Cold
// mid-retry while unmapped.
func (c *Reconciler) settleTiers(ctx context.Context, view *graph.EffectView) {
	for _, h := range c.model.Graph.Handles() {
		n, _ := view.Node(h)
		_, mapped := view.ResourceFor(h)

		switch {
		case n.Tier == graph.TierActive && !mapped && !n.Placeholder:
			c.create(ctx, view, h, n)

		case n.Tier == graph.TierWarm && !mapped && n.Prewarm && !n.Placeholder:
			c.create(ctx, view, h, n)

		case n.Tier == graph.TierCold:
			if mapped {
				id, _ := view.ResourceFor(h)
				c.destroy(ctx, id)
				view.Resources().UnmapHandle(h)
			}
			delete(c.retries, h)
		}
	}
}

// create attempts one backend creation for an Active unmapped node.
func (c *Reconciler) create(ctx context.Context, view *graph.EffectView, h graph.Handle, n *graph.Node) {
	id, err := c.backend.Create(ctx, n)
	if err == nil {
		view.Resources().Map(h, id)
		delete(c.retries, h)
		c.diag.Emit(diag.EventResourceCreated, map[string]any{
			"node":     string(n.ID),
			"resource": string(id),
		})
		return
	}

	if c.retries == nil {
		c.retries = make(map[graph.Handle]int)
	}
	c.retries[h]++
	c.diag.Emit(diag.EventCreateRetry, map[string]any{
		"node":    string(n.ID),
		"error":   err.Error(),
		"attempt": c.retries[h],
	})

	if c.retries[h] >= c.threshold {
		view.SetTier(h, graph.TierCold)
		n.Prewarm = false
		delete(c.retries, h)
		c.diag.ForcedDemotion(string(n.ID), string(intent.CauseCreateRetryExhausted), c.threshold)
	}
}

func (c *Reconciler) destroy(ctx context.Context, id graph.ResourceID) {
	fields := map[string]any{"resource": string(id)}
	if err := c.backend.Destroy(ctx, id); err != nil {
		fields["error"] = err.Error()
	}
	c.diag.Emit(diag.EventResourceDestroyed, fields)
}

// pruneRetries drops counters for handles that no longer exist.
func (c *Reconciler) pruneRetries(view *graph.EffectView) {
	for h := range c.retries {
		if _, ok := view.Node(h); !ok {
			delete(c.retries, h)
		}
	}
}

// Pending returns the handles with an unexhausted creation attempt in
// flight, for invariant validation after a tick.
func (c *Reconciler) Pending() map[graph.Handle]bool {
	pending := make(map[graph.Handle]bool, len(c.retries))
	for h := range c.retries {
		pending[h] = true
	}
	return pending
}

// ReleaseAll destroys every live resource. Called once during shutdown
// after the final apply-reconcile cycle.
func (c *Reconciler) ReleaseAll(ctx context.Context) {
	view := c.model.BeginReconcile()
	table := view.Resources()
	for _, h := range table.MappedHandles() {
		id, _ := table.ResourceFor(h)
		c.destroy(ctx, id)
		table.UnmapHandle(h)
		if _, ok := view.Node(h); ok {
			view.SetTier(h, graph.TierCold)
		}
	}
}

// AdjustedActiveLimit lowers the Active cap under memory pressure:
// Warning reserves one slot of headroom, Critical collapses to a single
// Active node.
func AdjustedActiveLimit(base int, level graph.PressureLevel) int {
	switch level {
	case graph.PressureCritical:
		return 1
	case graph.PressureWarning:
		if base <= 1 {
			return 1
		}
		return base - 1
	default:
		return base
	}
}
