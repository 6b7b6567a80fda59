package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

func TestThresholdsClassify(t *testing.T) {
	th := DefaultThresholds()

	cases := []struct {
		name   string
		sample MemorySample
		want   graph.PressureLevel
	}{
		{"plenty", MemorySample{AvailableMiB: 8000, TotalMiB: 16000}, graph.PressureNormal},
		{"below warning floor", MemorySample{AvailableMiB: 1000, TotalMiB: 16000}, graph.PressureWarning},
		{"below warning percent", MemorySample{AvailableMiB: 2000, TotalMiB: 16000}, graph.PressureWarning},
		{"below critical floor", MemorySample{AvailableMiB: 500, TotalMiB: 16000}, graph.PressureCritical},
		{"below critical percent", MemorySample{AvailableMiB: 1200, TotalMiB: 16000}, graph.PressureCritical},
		{"zero total", MemorySample{}, graph.PressureUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, th.Classify(tc.sample))
		})
	}
}

func scriptedSample(samples ...MemorySample) SampleFunc {
	i := 0
	return func(context.Context) (MemorySample, error) {
		s := samples[i%len(samples)]
		i++
		return s, nil
	}
}

func TestMemoryMonitorEmitsOnLevelChange(t *testing.T) {
	q := engine.NewQueue(8, diag.Nop())
	mon := NewMemoryMonitor(q, DefaultThresholds(), 0, scriptedSample(
		MemorySample{AvailableMiB: 8000, TotalMiB: 16000}, // normal
		MemorySample{AvailableMiB: 8000, TotalMiB: 16000}, // still normal
		MemorySample{AvailableMiB: 900, TotalMiB: 16000},  // warning
		MemorySample{AvailableMiB: 400, TotalMiB: 16000},  // critical
	))

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, mon.Sample(ctx))
	}

	drained := q.Drain()
	require.Len(t, drained, 3)

	assert.Equal(t, graph.PressureNormal, drained[0].Intent.Pressure.Level)
	assert.Equal(t, graph.PressureWarning, drained[1].Intent.Pressure.Level)
	assert.Equal(t, intent.CausePressureWarning, drained[1].Intent.Cause)
	assert.Equal(t, graph.PressureCritical, drained[2].Intent.Pressure.Level)
	assert.Equal(t, intent.CausePressureCritical, drained[2].Intent.Cause)
	for _, qd := range drained {
		assert.Equal(t, intent.KindSetMemoryPressure, qd.Intent.Kind)
		assert.Equal(t, intent.SourceMemoryMonitor, qd.Source)
	}
}

func TestMemoryMonitorResendsDroppedAdvisory(t *testing.T) {
	q := engine.NewQueue(1, diag.Nop())
	q.EnqueueAdvisory(intent.Intent{Kind: intent.KindPromote}, intent.SourcePrefetch)

	mon := NewMemoryMonitor(q, DefaultThresholds(), 0, scriptedSample(
		MemorySample{AvailableMiB: 900, TotalMiB: 16000},
	))

	ctx := context.Background()
	require.NoError(t, mon.Sample(ctx)) // queue full: dropped
	assert.Equal(t, uint64(1), q.Dropped())

	q.Drain()
	require.NoError(t, mon.Sample(ctx)) // same level: re-sent because undelivered

	drained := q.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, graph.PressureWarning, drained[0].Intent.Pressure.Level)

	require.NoError(t, mon.Sample(ctx)) // delivered: no repeat
	assert.Empty(t, q.Drain())
}

func TestMemoryMonitorSkipsSampleErrors(t *testing.T) {
	q := engine.NewQueue(8, diag.Nop())
	mon := NewMemoryMonitor(q, DefaultThresholds(), 0, func(context.Context) (MemorySample, error) {
		return MemorySample{}, context.DeadlineExceeded
	})

	require.NoError(t, mon.Sample(context.Background()))
	assert.Empty(t, q.Drain())
}
