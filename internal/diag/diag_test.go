package diag

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Record(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureSink) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Name
	}
	return out
}

func TestEmitter_SinkReceivesEvents(t *testing.T) {
	sink := &captureSink{}
	e := New(slog.Default(), WithSink(sink))

	e.IntentDropped("prefetch", "promote")
	e.ForcedDemotion("node-a", "create_retry_exhausted", 3)
	e.MergeConflict("node-a", "name", "lww")

	require.Equal(t, []string{
		EventIntentDropped,
		EventForcedDemotion,
		EventMergeConflict,
	}, sink.names())

	assert.Equal(t, "prefetch", sink.events[0].Fields["source"])
	assert.Equal(t, 3, sink.events[1].Fields["retries"])
}

func TestEmitter_MetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := New(slog.Default(), WithMetrics(m))

	e.IntentDropped("prefetch", "promote")
	e.IntentDropped("prefetch", "promote")
	e.IntentDropped("memory_monitor", "demote_warm")
	e.ForcedDemotion("node-a", "create_retry_exhausted", 3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.droppedIntents.WithLabelValues("prefetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.droppedIntents.WithLabelValues("memory_monitor")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.forcedDemotions))
}

func TestEmitter_NopDoesNotPanic(t *testing.T) {
	e := Nop()
	assert.NotPanics(t, func() {
		e.Emit(EventWorkerFailure, map[string]any{"worker": "sync"})
		e.LogWriteFailed("create_node", assert.AnError)
	})
}
