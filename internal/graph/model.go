package graph

import "fmt"

// Model bundles the structural graph with the runtime lifecycle state:
// the resource mapping table, the latest memory pressure sample, and the
// phase-gap guard.
//
// Ownership: exclusively mutated by the reducer (apply phase) and the
// reconciler (effect phase) on the single consumer goroutine. Everything
// else reads through the guarded accessors.
type Model struct {
	Graph     *Graph
	resources *ResourceTable
	guard     Guard
	pressure  PressureStatus
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Graph:     New(),
		resources: NewResourceTable(),
	}
}

// Guard exposes the phase-gap guard for the orchestrator and tests.
func (m *Model) Guard() *Guard { return &m.guard }

// Tier returns a node's lifecycle tier. Guarded: must not be called
// between apply and reconcile.
func (m *Model) Tier(h Handle) (Tier, bool) {
	m.guard.check("lifecycle tier")
	n, ok := m.Graph.Node(h)
	if !ok {
		return TierCold, false
	}
	return n.Tier, true
}

// ResourceFor returns the resource mapped to a node. Guarded.
func (m *Model) ResourceFor(h Handle) (ResourceID, bool) {
	m.guard.check("resource mapping")
	return m.resources.ResourceFor(h)
}

// HandleForResource returns the node a resource is mapped to. Guarded.
func (m *Model) HandleForResource(r ResourceID) (Handle, bool) {
	m.guard.check("resource mapping")
	return m.resources.HandleFor(r)
}

// MappingCount returns the number of live resource mappings. Guarded.
func (m *Model) MappingCount() int {
	m.guard.check("resource mapping")
	return m.resources.Len()
}

// Pressure returns the latest memory pressure sample. Guarded: pressure
// feeds lifecycle decisions and settles with them.
func (m *Model) Pressure() PressureStatus {
	m.guard.check("memory pressure")
	return m.pressure
}

// SetPressure records a pressure sample. Called only from the reducer.
func (m *Model) SetPressure(p PressureStatus) { m.pressure = p }

// Mappings exposes the resource table for apply-phase mutation. Reads
// outside the apply and effect phases go through the guarded accessors.
func (m *Model) Mappings() *ResourceTable { return m.resources }

// SetTier sets a node's tier. Called only from the reducer and the
// effect view; returns false for an unallocated handle.
func (m *Model) SetTier(h Handle, t Tier) bool {
	n, ok := m.Graph.Node(h)
	if !ok {
		return false
	}
	n.Tier = t
	return true
}

// EffectView is the reconciler's privileged window onto lifecycle and
// mapping state. It bypasses the phase-gap guard: the reconciler is the
// component the guard protects everyone else from racing against.
type EffectView struct {
	m *Model
}

// BeginReconcile returns the effect view. Only the reconciler should call
// this, once per tick.
func (m *Model) BeginReconcile() *EffectView { return &EffectView{m: m} }

// Tier returns a node's tier without guard checks.
func (v *EffectView) Tier(h Handle) (Tier, bool) {
	n, ok := v.m.Graph.Node(h)
	if !ok {
		return TierCold, false
	}
	return n.Tier, true
}

// Node returns the node for a handle.
func (v *EffectView) Node(h Handle) (*Node, bool) { return v.m.Graph.Node(h) }

// ResourceFor returns the mapping for a node without guard checks.
func (v *EffectView) ResourceFor(h Handle) (ResourceID, bool) {
	return v.m.resources.ResourceFor(h)
}

// Resources exposes the mapping table for effect-phase mutation.
func (v *EffectView) Resources() *ResourceTable { return v.m.resources }

// Pressure returns the pressure sample without guard checks.
func (v *EffectView) Pressure() PressureStatus { return v.m.pressure }

// SetTier sets a node's tier from the effect phase.
func (v *EffectView) SetTier(h Handle, t Tier) bool { return v.m.SetTier(h, t) }

// Validate checks the resource mapping invariants. Used by tests and the
// harness after every tick.
//
// pendingCreate lists handles with an in-flight creation attempt this
// tick (Active-without-mapping is legal for those).
func (m *Model) Validate(pendingCreate map[Handle]bool) error {
	for _, h := range m.resources.MappedHandles() {
		if _, ok := m.Graph.Node(h); !ok {
			return fmt.Errorf("mapping references missing node handle %d", h)
		}
	}
	for _, h := range m.Graph.Handles() {
		n, _ := m.Graph.Node(h)
		_, mapped := m.resources.ResourceFor(h)
		switch n.Tier {
		case TierActive:
			// Placeholders are inert and never acquire resources.
			if !mapped && !pendingCreate[h] && !n.Placeholder {
				return fmt.Errorf("active node %s has no mapping and no pending creation", n.ID)
			}
		case TierCold:
			if mapped {
				return fmt.Errorf("cold node %s still holds a mapping", n.ID)
			}
		}
	}
	return nil
}
