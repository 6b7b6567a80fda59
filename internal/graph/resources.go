package graph

import "sort"

// ResourceTable is the bidirectional mapping between live runtime
// resources and node handles.
//
// INVARIANTS (enforced by the reducer/reconciler pair, checkable via
// Validate in tests):
//   - every entry references an existing node
//   - every Active node either has a mapping or a pending creation attempt
//   - every Cold node has no mapping
//
// Never persisted: the table is reconstructed by the reconciler after
// restore from the set of currently interesting nodes.
type ResourceTable struct {
	byHandle   map[Handle]ResourceID
	byResource map[ResourceID]Handle
}

// NewResourceTable returns an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{
		byHandle:   make(map[Handle]ResourceID),
		byResource: make(map[ResourceID]Handle),
	}
}

// Map records a resource for a node, replacing any previous entry for
// either side so the table stays strictly bidirectional.
func (t *ResourceTable) Map(h Handle, r ResourceID) {
	if old, ok := t.byHandle[h]; ok {
		delete(t.byResource, old)
	}
	if old, ok := t.byResource[r]; ok {
		delete(t.byHandle, old)
	}
	t.byHandle[h] = r
	t.byResource[r] = h
}

// UnmapHandle clears the mapping for a node. Returns the resource that was
// mapped, if any.
func (t *ResourceTable) UnmapHandle(h Handle) (ResourceID, bool) {
	r, ok := t.byHandle[h]
	if !ok {
		return "", false
	}
	delete(t.byHandle, h)
	delete(t.byResource, r)
	return r, true
}

// UnmapResource clears the mapping for a resource. Returns the handle it
// was mapped to, if any.
func (t *ResourceTable) UnmapResource(r ResourceID) (Handle, bool) {
	h, ok := t.byResource[r]
	if !ok {
		return 0, false
	}
	delete(t.byHandle, h)
	delete(t.byResource, r)
	return h, true
}

// ResourceFor returns the resource mapped to a node.
func (t *ResourceTable) ResourceFor(h Handle) (ResourceID, bool) {
	r, ok := t.byHandle[h]
	return r, ok
}

// HandleFor returns the node a resource is mapped to.
func (t *ResourceTable) HandleFor(r ResourceID) (Handle, bool) {
	h, ok := t.byResource[r]
	return h, ok
}

// Len returns the number of mappings.
func (t *ResourceTable) Len() int { return len(t.byHandle) }

// MappedHandles returns all mapped handles in ascending order.
func (t *ResourceTable) MappedHandles() []Handle {
	out := make([]Handle, 0, len(t.byHandle))
	for h := range t.byHandle {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
