package workers

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// MemorySample is one reading of system memory, in MiB.
type MemorySample struct {
	AvailableMiB uint64
	TotalMiB     uint64
}

// SampleFunc produces a memory sample. Injectable so tests can script
// pressure transitions without touching the host.
type SampleFunc func(ctx context.Context) (MemorySample, error)

// SystemSample reads host memory via gopsutil.
func SystemSample(ctx context.Context) (MemorySample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemorySample{}, err
	}
	return MemorySample{
		AvailableMiB: vm.Available / (1024 * 1024),
		TotalMiB:     vm.Total / (1024 * 1024),
	}, nil
}

// Thresholds classify a sample. A level triggers when available memory
// falls below EITHER its absolute floor or its percentage of total.
type Thresholds struct {
	WarningMiB      uint64
	WarningPercent  uint64
	CriticalMiB     uint64
	CriticalPercent uint64
}

// DefaultThresholds matches the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarningMiB:      1024,
		WarningPercent:  15,
		CriticalMiB:     512,
		CriticalPercent: 8,
	}
}

// Classify maps a sample to a pressure level.
func (t Thresholds) Classify(s MemorySample) graph.PressureLevel {
	if s.TotalMiB == 0 {
		return graph.PressureUnknown
	}
	pct := s.AvailableMiB * 100 / s.TotalMiB
	switch {
	case s.AvailableMiB <= t.CriticalMiB || pct <= t.CriticalPercent:
		return graph.PressureCritical
	case s.AvailableMiB <= t.WarningMiB || pct <= t.WarningPercent:
		return graph.PressureWarning
	default:
		return graph.PressureNormal
	}
}

// MemoryMonitor samples system memory on an interval and enqueues a
// pressure intent whenever the classified level changes. Transitions
// into Critical are enqueued durably: the reconciler must see them to
// clamp the active limit. All other transitions are advisory; a dropped
// one is re-sent on the next sample because the level is only recorded
// as delivered once the queue accepts it.
type MemoryMonitor struct {
	queue      *engine.Queue
	sample     SampleFunc
	thresholds Thresholds
	interval   time.Duration

	delivered graph.PressureLevel
}

// NewMemoryMonitor creates a monitor. A nil sample uses SystemSample;
// an interval <= 0 selects 2s.
func NewMemoryMonitor(q *engine.Queue, t Thresholds, interval time.Duration, sample SampleFunc) *MemoryMonitor {
	if sample == nil {
		sample = SystemSample
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &MemoryMonitor{
		queue:      q,
		sample:     sample,
		thresholds: t,
		interval:   interval,
		delivered:  graph.PressureUnknown,
	}
}

// Run samples until the context is cancelled. Sample errors are skipped;
// the next interval retries.
func (m *MemoryMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sample(ctx); err != nil {
				return err
			}
		}
	}
}

// Sample takes one reading and enqueues a pressure intent if the level
// changed since the last delivered one. Split out for tests and for an
// immediate reading at startup.
func (m *MemoryMonitor) Sample(ctx context.Context) error {
	s, err := m.sample(ctx)
	if err != nil {
		return nil
	}
	level := m.thresholds.Classify(s)
	if level == m.delivered || level == graph.PressureUnknown {
		return nil
	}

	in := intent.Intent{
		Kind: intent.KindSetMemoryPressure,
		Pressure: graph.PressureStatus{
			Level:        level,
			AvailableMiB: s.AvailableMiB,
			TotalMiB:     s.TotalMiB,
		},
	}
	switch level {
	case graph.PressureCritical:
		in.Cause = intent.CausePressureCritical
		if err := m.queue.EnqueueDurable(ctx, in, intent.SourceMemoryMonitor); err != nil {
			return err
		}
		m.delivered = level
	default:
		if level == graph.PressureWarning {
			in.Cause = intent.CausePressureWarning
		}
		if m.queue.EnqueueAdvisory(in, intent.SourceMemoryMonitor) {
			m.delivered = level
		}
	}
	return nil
}
