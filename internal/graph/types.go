package graph

// NodeID is the durable, session-stable node identity. Opaque to the
// kernel; produced as a UUIDv7 string at node creation and preserved by
// the durable log and peer sync.
type NodeID string

// Handle is the in-memory arena index for a node. Handles are not stable
// across restarts and must never be persisted; resolve to a NodeID first.
// The zero Handle is never allocated and means "unresolved".
type Handle int64

// ResourceID identifies a live runtime resource (e.g. an engine rendering
// context) held by an Active or Warm node. Opaque to the kernel; minted by
// the resource backend.
type ResourceID string

// Tier classifies how much live resource backing a node currently holds.
// Runtime-only and non-durable: tiers are reconstructed at restore time
// from which nodes are currently interesting.
type Tier int

const (
	// TierCold is the default tier: metadata only, no live resource.
	TierCold Tier = iota
	// TierWarm retains a live resource without requiring visibility.
	TierWarm
	// TierActive requires a live, visible resource backing.
	TierActive
)

// String returns the tier name for logs and diagnostics.
func (t Tier) String() string {
	switch t {
	case TierCold:
		return "cold"
	case TierWarm:
		return "warm"
	case TierActive:
		return "active"
	default:
		return "unknown"
	}
}

// EdgeType classifies the relationship an edge records.
type EdgeType int

const (
	// EdgeHyperlink is a link traversal from one node to another.
	EdgeHyperlink EdgeType = iota + 1
	// EdgeHistory is a navigation history traversal.
	EdgeHistory
	// EdgeUserGrouped is an explicit user grouping association.
	EdgeUserGrouped
)

// String returns the edge type name for logs and the durable log.
func (e EdgeType) String() string {
	switch e {
	case EdgeHyperlink:
		return "hyperlink"
	case EdgeHistory:
		return "history"
	case EdgeUserGrouped:
		return "user_grouped"
	default:
		return "unknown"
	}
}

// EdgeTypeFromString parses a durable-log edge type name.
// Returns 0 for unrecognized names.
func EdgeTypeFromString(s string) EdgeType {
	switch s {
	case "hyperlink":
		return EdgeHyperlink
	case "history":
		return EdgeHistory
	case "user_grouped":
		return EdgeUserGrouped
	default:
		return 0
	}
}

// PressureLevel classifies sampled system memory pressure.
type PressureLevel int

const (
	PressureUnknown PressureLevel = iota
	PressureNormal
	PressureWarning
	PressureCritical
)

// String returns the pressure level name for logs and diagnostics.
func (p PressureLevel) String() string {
	switch p {
	case PressureNormal:
		return "normal"
	case PressureWarning:
		return "warning"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PressureStatus is the most recent memory pressure sample, kept on the
// model so the reconciler can adjust the active limit without re-sampling.
type PressureStatus struct {
	Level        PressureLevel
	AvailableMiB uint64
	TotalMiB     uint64
}

// Version tracks the last writer of a merge-scalar attribute for
// last-writer-wins resolution. Clock is the remote logical clock of the
// winning write; Peer breaks clock ties deterministically (higher wins).
// Local writes advance Clock without a peer so a later remote write with
// a higher clock can still win.
type Version struct {
	Clock uint64
	Peer  string
}

// Supersedes reports whether a write stamped (clock, peer) should replace
// the value currently guarded by v. Ties on clock resolve by peer id so
// that merge order never changes the outcome.
func (v Version) Supersedes(clock uint64, peer string) bool {
	if clock != v.Clock {
		return clock > v.Clock
	}
	return peer > v.Peer
}
