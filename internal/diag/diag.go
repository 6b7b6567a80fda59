package diag

import (
	"fmt"
	"log/slog"
	"sort"
)

// Event names. Stable identifiers: golden traces and dashboards key on
// them, so renames are breaking changes.
const (
	EventIntentDropped     = "intent_dropped"
	EventForcedDemotion    = "forced_demotion"
	EventWorkerFailure     = "worker_failure"
	EventMergeConflict     = "merge_conflict"
	EventLogWriteFailed    = "log_write_failed"
	EventApplyNoop         = "apply_noop"
	EventCreateRetry       = "resource_create_retry"
	EventResourceCreated   = "resource_created"
	EventResourceDestroyed = "resource_destroyed"
	EventLRUEviction       = "active_lru_eviction"
	EventGuardViolation    = "phase_gap_violation"
	EventPluginActivated   = "plugin_activated"
	EventPluginLoadFailed  = "plugin_load_failed"
)

// Event is one named observability record.
type Event struct {
	Name   string
	Fields map[string]any
}

// Sink receives every emitted event. Implementations must be fast and
// must not block; the harness uses a Sink to capture golden traces.
type Sink interface {
	Record(Event)
}

// Emitter fans events out to slog, Prometheus counters, and an optional
// sink. Safe for concurrent use: workers and the consumer loop both emit.
type Emitter struct {
	logger  *slog.Logger
	metrics *Metrics
	sink    Sink
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithSink attaches an event sink (used by tests and the harness).
func WithSink(s Sink) Option {
	return func(e *Emitter) { e.sink = s }
}

// WithMetrics attaches a Prometheus metrics set.
func WithMetrics(m *Metrics) Option {
	return func(e *Emitter) { e.metrics = m }
}

// New creates an Emitter logging through the given slog logger.
// A nil logger uses slog.Default().
func New(logger *slog.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Nop returns an emitter that only feeds slog.Default at debug level.
// Convenient default for tests that don't assert on diagnostics.
func Nop() *Emitter {
	return &Emitter{logger: slog.Default()}
}

// Emit records a named event with structured fields.
func (e *Emitter) Emit(name string, fields map[string]any) {
	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "event", name)
	for _, k := range sortedKeys(fields) {
		args = append(args, k, fields[k])
	}
	e.logger.Warn(name, args...)

	if e.metrics != nil {
		e.metrics.count(name, fields)
	}
	if e.sink != nil {
		e.sink.Record(Event{Name: name, Fields: fields})
	}
}

// IntentDropped records an advisory intent dropped on a full queue.
func (e *Emitter) IntentDropped(source string, kind string) {
	e.Emit(EventIntentDropped, map[string]any{"source": source, "kind": kind})
}

// ForcedDemotion records a reconciler-forced demotion to Cold.
func (e *Emitter) ForcedDemotion(node string, cause string, retries int) {
	e.Emit(EventForcedDemotion, map[string]any{"node": node, "cause": cause, "retries": retries})
}

// WorkerFailure records a worker that exited by panic or error.
func (e *Emitter) WorkerFailure(worker string, err any) {
	e.Emit(EventWorkerFailure, map[string]any{"worker": worker, "error": stringify(err)})
}

// MergeConflict records a remote-merge conflict resolution.
func (e *Emitter) MergeConflict(node, field, resolution string) {
	e.Emit(EventMergeConflict, map[string]any{"node": node, "field": field, "resolution": resolution})
}

// LogWriteFailed records a durable log append failure. Fire-and-forget
// from the reducer's perspective: the tick continues.
func (e *Emitter) LogWriteFailed(kind string, err error) {
	e.Emit(EventLogWriteFailed, map[string]any{"kind": kind, "error": err.Error()})
}

// ApplyNoop records an intent skipped on a failed local precondition.
func (e *Emitter) ApplyNoop(kind, node, reason string) {
	e.Emit(EventApplyNoop, map[string]any{"kind": kind, "node": node, "reason": reason})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
