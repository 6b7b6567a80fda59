package intent

import (
	"fmt"

	"github.com/loomshell/loom/internal/graph"
)

// Kind discriminates the tagged Intent value.
type Kind int

const (
	// Structural family. Durably logged as part of apply.
	KindCreateNode Kind = iota + 1
	KindRemoveNode
	KindCreateEdge
	KindRemoveEdge
	KindSetNodeName
	KindSetNodeURL
	KindTagNode
	KindUntagNode
	KindAppendHistory
	KindPluginActivated
	KindPluginLoadFailed

	// Lifecycle family. Mutates only non-durable runtime state.
	KindPromote
	KindDemoteWarm
	KindDemoteCold
	KindMapResource
	KindUnmapResource
	KindSetMemoryPressure
)

// kindNames maps kinds to their durable-log and diagnostics names.
var kindNames = map[Kind]string{
	KindCreateNode:        "create_node",
	KindRemoveNode:        "remove_node",
	KindCreateEdge:        "create_edge",
	KindRemoveEdge:        "remove_edge",
	KindSetNodeName:       "set_node_name",
	KindSetNodeURL:        "set_node_url",
	KindTagNode:           "tag_node",
	KindUntagNode:         "untag_node",
	KindAppendHistory:     "append_history",
	KindPluginActivated:   "plugin_activated",
	KindPluginLoadFailed:  "plugin_load_failed",
	KindPromote:           "promote",
	KindDemoteWarm:        "demote_warm",
	KindDemoteCold:        "demote_cold",
	KindMapResource:       "map_resource",
	KindUnmapResource:     "unmap_resource",
	KindSetMemoryPressure: "set_memory_pressure",
}

// String returns the stable kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromString parses a durable-log kind name. Returns 0 if unknown.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return 0
}

// Family groups kinds by their logging and mutation rules.
type Family int

const (
	FamilyStructural Family = iota + 1
	FamilyLifecycle
	FamilyRemoteDelta
)

// Cause explains why a lifecycle intent was emitted. Recorded in
// diagnostics so demotions under pressure are distinguishable from
// user-driven ones.
type Cause string

const (
	CauseUserSelect           Cause = "user_select"
	CauseViewportVisible      Cause = "viewport_visible"
	CauseSelectedPrewarm      Cause = "selected_prewarm"
	CauseWorkspaceRetention   Cause = "workspace_retention"
	CauseActiveLRUEviction    Cause = "active_lru_eviction"
	CauseWarmLRUEviction      Cause = "warm_lru_eviction"
	CausePressureWarning      Cause = "memory_pressure_warning"
	CausePressureCritical     Cause = "memory_pressure_critical"
	CauseCreateRetryExhausted Cause = "create_retry_exhausted"
	CauseExplicitClose        Cause = "explicit_close"
	CauseNodeRemoval          Cause = "node_removal"
	CauseRestore              Cause = "restore"
	CausePrefetch             Cause = "prefetch"
)

// RemoteMeta stamps an intent that arrived from a peer. Clock is the
// peer's logical clock for the operation; Peer identifies the origin for
// deterministic tie-breaking.
type RemoteMeta struct {
	Peer  string
	Clock uint64
}

// Intent is one requested mutation. A tagged value: Kind selects which
// fields are meaningful. Keeping a single struct (rather than an
// interface per producer) keeps the queue homogeneous and the reducer's
// dispatch a plain switch.
type Intent struct {
	Kind  Kind
	Cause Cause

	// Node addressing. Producers reference nodes by durable ID; the
	// reducer resolves to a handle at apply time. From/To address edge
	// endpoints.
	Node graph.NodeID
	From graph.NodeID
	To   graph.NodeID

	// Structural payload fields.
	Name     string
	URL      string
	Tag      string
	Entry    string // history entry
	EdgeType graph.EdgeType

	// Lifecycle payload fields.
	Resource graph.ResourceID
	Pressure graph.PressureStatus

	// Plugin loader payload fields.
	Plugin string
	Reason string

	// Remote is set when the intent is a remote delta.
	Remote *RemoteMeta
}

// Family classifies the intent per the logging and mutation rules.
func (in Intent) Family() Family {
	if in.Remote != nil {
		return FamilyRemoteDelta
	}
	switch in.Kind {
	case KindPromote, KindDemoteWarm, KindDemoteCold,
		KindMapResource, KindUnmapResource, KindSetMemoryPressure:
		return FamilyLifecycle
	default:
		return FamilyStructural
	}
}

// Structural reports whether the intent must be durably logged.
// Remote deltas are structural: the merged result must survive restarts.
func (in Intent) Structural() bool {
	return in.Family() != FamilyLifecycle
}

// Clock returns the remote logical clock, or 0 for local intents.
func (in Intent) Clock() uint64 {
	if in.Remote == nil {
		return 0
	}
	return in.Remote.Clock
}
