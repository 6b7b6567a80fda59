package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/testutil"
)

func TestQueue_AdvisoryDropsWhenFull(t *testing.T) {
	sink := testutil.NewCaptureSink()
	q := NewQueue(64, diag.New(nil, diag.WithSink(sink)))

	accepted := 0
	for i := 0; i < 300; i++ {
		if q.EnqueueAdvisory(intent.Intent{Kind: intent.KindSetMemoryPressure}, intent.SourceMemoryMonitor) {
			accepted++
		}
	}

	assert.Equal(t, 64, accepted, "exactly capacity should be accepted")
	assert.Equal(t, uint64(236), q.Dropped())
	assert.Equal(t, 236, sink.Count(diag.EventIntentDropped))
}

func TestQueue_DurableBlocksUntilDrained(t *testing.T) {
	q := NewQueue(1, diag.Nop())
	ctx := context.Background()

	require.NoError(t, q.EnqueueDurable(ctx, intent.Intent{Kind: intent.KindCreateNode, Node: "a"}, intent.SourceEngineCallback))

	done := make(chan error, 1)
	go func() {
		done <- q.EnqueueDurable(ctx, intent.Intent{Kind: intent.KindCreateNode, Node: "b"}, intent.SourceEngineCallback)
	}()

	select {
	case err := <-done:
		t.Fatalf("durable enqueue completed against a full queue: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	drained := q.Drain()
	require.Len(t, drained, 1)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("durable enqueue still blocked after drain")
	}
}

func TestQueue_DurableUnblocksOnCancel(t *testing.T) {
	q := NewQueue(1, diag.Nop())
	require.NoError(t, q.EnqueueDurable(context.Background(), intent.Intent{Kind: intent.KindCreateNode}, intent.SourceRemotePeer))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.EnqueueDurable(ctx, intent.Intent{Kind: intent.KindCreateNode}, intent.SourceRemotePeer)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("durable enqueue ignored cancellation")
	}
}

func TestQueue_ClosedRejectsEnqueues(t *testing.T) {
	q := NewQueue(8, diag.Nop())
	ctx := context.Background()

	require.NoError(t, q.EnqueueDurable(ctx, intent.Intent{Kind: intent.KindCreateNode, Node: "a"}, intent.SourceRemotePeer))
	q.Close()

	err := q.EnqueueDurable(ctx, intent.Intent{Kind: intent.KindCreateNode, Node: "b"}, intent.SourceRemotePeer)
	assert.ErrorIs(t, err, ErrQueueClosed)

	assert.False(t, q.EnqueueAdvisory(intent.Intent{Kind: intent.KindPromote}, intent.SourcePrefetch))
	assert.Zero(t, q.Dropped(), "rejection after close is not a backpressure drop")

	// Whatever landed before the close is still drainable.
	assert.Len(t, q.Drain(), 1)
}

func TestQueue_SequencesAreUnique(t *testing.T) {
	q := NewQueue(256, diag.Nop())

	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 32; j++ {
				qd := q.Stamp(intent.Intent{Kind: intent.KindPromote}, intent.SourceLocalInput)
				mu.Lock()
				assert.False(t, seen[qd.Seq], "duplicate seq %d", qd.Seq)
				seen[qd.Seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 256)
}

func TestQueue_DrainEmptiesWithoutBlocking(t *testing.T) {
	q := NewQueue(8, diag.Nop())

	for i := 0; i < 5; i++ {
		q.EnqueueAdvisory(intent.Intent{Kind: intent.KindPromote}, intent.SourcePrefetch)
	}

	drained := q.Drain()
	assert.Len(t, drained, 5)
	assert.Empty(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}
