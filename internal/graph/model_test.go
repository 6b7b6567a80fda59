package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceTable_Bidirectional(t *testing.T) {
	rt := NewResourceTable()

	rt.Map(Handle(1), "res-a")
	rt.Map(Handle(2), "res-b")

	r, ok := rt.ResourceFor(Handle(1))
	require.True(t, ok)
	assert.Equal(t, ResourceID("res-a"), r)

	h, ok := rt.HandleFor("res-b")
	require.True(t, ok)
	assert.Equal(t, Handle(2), h)

	assert.Equal(t, 2, rt.Len())
}

func TestResourceTable_RemapEvictsBothSides(t *testing.T) {
	rt := NewResourceTable()
	rt.Map(Handle(1), "res-a")

	// Remapping the resource to another node must clear the old node side.
	rt.Map(Handle(2), "res-a")

	_, ok := rt.ResourceFor(Handle(1))
	assert.False(t, ok)
	h, ok := rt.HandleFor("res-a")
	require.True(t, ok)
	assert.Equal(t, Handle(2), h)
	assert.Equal(t, 1, rt.Len())

	// Remapping the node to another resource must clear the old resource side.
	rt.Map(Handle(2), "res-b")
	_, ok = rt.HandleFor("res-a")
	assert.False(t, ok)
	assert.Equal(t, 1, rt.Len())
}

func TestResourceTable_Unmap(t *testing.T) {
	rt := NewResourceTable()
	rt.Map(Handle(1), "res-a")

	r, ok := rt.UnmapHandle(Handle(1))
	require.True(t, ok)
	assert.Equal(t, ResourceID("res-a"), r)
	assert.Equal(t, 0, rt.Len())

	_, ok = rt.UnmapHandle(Handle(1))
	assert.False(t, ok, "double unmap is a no-op")
}

func TestGuard_StrictModePanicsWhileArmed(t *testing.T) {
	m := NewModel()
	h, _ := m.Graph.Add(NewNode("a", "A", ""))

	m.Guard().SetStrict(true)
	m.Guard().Arm()

	assert.Panics(t, func() { m.Tier(h) }, "tier read during phase gap must fail hard")
	assert.Panics(t, func() { m.ResourceFor(h) })
	assert.Panics(t, func() { m.MappingCount() })

	m.Guard().Disarm()
	assert.NotPanics(t, func() { m.Tier(h) })
}

func TestGuard_NonStrictCountsViolations(t *testing.T) {
	m := NewModel()
	h, _ := m.Graph.Add(NewNode("a", "A", ""))

	m.Guard().Arm()
	m.Tier(h)
	m.ResourceFor(h)
	m.Guard().Disarm()

	assert.Equal(t, uint64(2), m.Guard().Violations())
}

func TestEffectView_BypassesGuard(t *testing.T) {
	m := NewModel()
	h, _ := m.Graph.Add(NewNode("a", "A", ""))

	m.Guard().SetStrict(true)
	m.Guard().Arm()
	defer m.Guard().Disarm()

	v := m.BeginReconcile()
	assert.NotPanics(t, func() {
		v.Tier(h)
		v.ResourceFor(h)
		v.Resources().Len()
	})
}

func TestModel_Validate(t *testing.T) {
	m := NewModel()
	a, _ := m.Graph.Add(NewNode("a", "A", ""))
	b, _ := m.Graph.Add(NewNode("b", "B", ""))

	// Active without mapping and without a pending creation is a violation.
	m.SetTier(a, TierActive)
	err := m.Validate(nil)
	require.Error(t, err)

	// A pending creation attempt makes it legal.
	require.NoError(t, m.Validate(map[Handle]bool{a: true}))

	// Mapped active node is legal.
	v := m.BeginReconcile()
	v.Resources().Map(a, "res-a")
	require.NoError(t, m.Validate(nil))

	// Cold node with a mapping is a violation.
	v.Resources().Map(b, "res-b")
	err = m.Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cold node")
}
