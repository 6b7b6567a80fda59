package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters backing diagnostic events.
// The embedder decides where (or whether) the registry is exposed; the
// kernel only increments.
type Metrics struct {
	droppedIntents   *prometheus.CounterVec
	forcedDemotions  prometheus.Counter
	workerFailures   *prometheus.CounterVec
	mergeConflicts   *prometheus.CounterVec
	logWriteFailures prometheus.Counter
	applyNoops       prometheus.Counter
	createRetries    prometheus.Counter
	resourcesCreated prometheus.Counter
	resourcesFreed   prometheus.Counter
	lruEvictions     prometheus.Counter
	guardViolations  prometheus.Counter
}

// NewMetrics registers the kernel counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		droppedIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "intents_dropped_total",
			Help:      "Advisory intents dropped on a full queue, by producer source.",
		}, []string{"source"}),
		forcedDemotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "forced_demotions_total",
			Help:      "Nodes force-demoted to cold after exhausting creation retries.",
		}),
		workerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "worker_failures_total",
			Help:      "Supervised workers that exited by panic or error.",
		}, []string{"worker"}),
		mergeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "merge_conflicts_total",
			Help:      "Remote-merge conflicts resolved, by field.",
		}, []string{"field"}),
		logWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "log_write_failures_total",
			Help:      "Durable structural log append failures.",
		}),
		applyNoops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "apply_noops_total",
			Help:      "Intents skipped on failed local preconditions.",
		}),
		createRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "resource_create_retries_total",
			Help:      "Failed resource creation attempts.",
		}),
		resourcesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "resources_created_total",
			Help:      "Live resources created by the reconciler.",
		}),
		resourcesFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "resources_destroyed_total",
			Help:      "Live resources destroyed by the reconciler.",
		}),
		lruEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "active_lru_evictions_total",
			Help:      "Active nodes demoted to enforce the active limit.",
		}),
		guardViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "phase_gap_violations_total",
			Help:      "Lifecycle or mapping reads observed during the phase gap.",
		}),
	}

	reg.MustRegister(
		m.droppedIntents, m.forcedDemotions, m.workerFailures,
		m.mergeConflicts, m.logWriteFailures, m.applyNoops,
		m.createRetries, m.resourcesCreated, m.resourcesFreed,
		m.lruEvictions, m.guardViolations,
	)
	return m
}

// count maps an event to its counter.
func (m *Metrics) count(name string, fields map[string]any) {
	switch name {
	case EventIntentDropped:
		m.droppedIntents.WithLabelValues(label(fields, "source")).Inc()
	case EventForcedDemotion:
		m.forcedDemotions.Inc()
	case EventWorkerFailure:
		m.workerFailures.WithLabelValues(label(fields, "worker")).Inc()
	case EventMergeConflict:
		m.mergeConflicts.WithLabelValues(label(fields, "field")).Inc()
	case EventLogWriteFailed:
		m.logWriteFailures.Inc()
	case EventApplyNoop:
		m.applyNoops.Inc()
	case EventCreateRetry:
		m.createRetries.Inc()
	case EventResourceCreated:
		m.resourcesCreated.Inc()
	case EventResourceDestroyed:
		m.resourcesFreed.Inc()
	case EventLRUEviction:
		m.lruEvictions.Inc()
	case EventGuardViolation:
		m.guardViolations.Inc()
	}
}

func label(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return "unknown"
}
