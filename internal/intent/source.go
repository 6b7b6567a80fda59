package intent

// Source declares which producer enqueued an intent. Used for causality
// ordering (origin class) and diagnostics attribution.
type Source int

const (
	// SourceLocalInput is user keyboard/mouse input captured on the tick.
	SourceLocalInput Source = iota + 1
	// SourceEngineCallback is a converted embedding-engine delegate event.
	SourceEngineCallback
	// SourceMemoryMonitor is the resource-pressure monitor worker.
	SourceMemoryMonitor
	// SourcePluginLoader is the plugin loader worker.
	SourcePluginLoader
	// SourcePrefetch is the background prefetch scheduler.
	SourcePrefetch
	// SourceRemotePeer is the peer-sync worker delivering remote deltas.
	SourceRemotePeer
	// SourceRestore is startup replay from the durable log.
	SourceRestore
)

// String returns the source name for logs and the durable log.
func (s Source) String() string {
	switch s {
	case SourceLocalInput:
		return "local_input"
	case SourceEngineCallback:
		return "engine_callback"
	case SourceMemoryMonitor:
		return "memory_monitor"
	case SourcePluginLoader:
		return "plugin_loader"
	case SourcePrefetch:
		return "prefetch"
	case SourceRemotePeer:
		return "remote_peer"
	case SourceRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Origin classes partition the batch sort: all local-origin intents in a
// tick apply before any remote-origin intent, preserving responsiveness
// regardless of arrival order.
const (
	OriginLocal  = 0
	OriginRemote = 1
)

// OriginClass returns the causality partition for the source.
func (s Source) OriginClass() int {
	if s == SourceRemotePeer {
		return OriginRemote
	}
	return OriginLocal
}

// Queued is an Intent plus its enqueue sequence number and declared
// Source. The sequence is assigned by the queue at enqueue time and is
// the final deterministic tie-break in batch ordering.
type Queued struct {
	Intent Intent
	Seq    uint64
	Source Source
}

// SortKey returns the causality ordering triple
// (origin class, logical clock, enqueue sequence).
func (q Queued) SortKey() (int, uint64, uint64) {
	return q.Source.OriginClass(), q.Intent.Clock(), q.Seq
}

// Less orders queued intents by SortKey.
func (q Queued) Less(other Queued) bool {
	oc1, cl1, sq1 := q.SortKey()
	oc2, cl2, sq2 := other.SortKey()
	if oc1 != oc2 {
		return oc1 < oc2
	}
	if cl1 != cl2 {
		return cl1 < cl2
	}
	return sq1 < sq2
}
