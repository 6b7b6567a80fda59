package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/testutil"
)

func TestSupervisor_PanicIsIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := testutil.NewCaptureSink()
	sup := NewSupervisor(context.Background(), diag.New(nil, diag.WithSink(sink)))

	survived := make(chan struct{})
	sup.Go("panicky", func(ctx context.Context) error {
		panic("boom")
	})
	sup.Go("steady", func(ctx context.Context) error {
		close(survived)
		<-ctx.Done()
		return ctx.Err()
	})

	select {
	case <-survived:
	case <-time.After(time.Second):
		t.Fatal("sibling worker never ran")
	}

	require.NoError(t, sup.Shutdown(time.Second))
	assert.Equal(t, uint64(1), sup.Failures())

	events := sink.Named(diag.EventWorkerFailure)
	require.Len(t, events, 1)
	assert.Equal(t, "panicky", events[0].Fields["worker"])
}

func TestSupervisor_ErrorExitReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := testutil.NewCaptureSink()
	sup := NewSupervisor(context.Background(), diag.New(nil, diag.WithSink(sink)))

	sup.Go("broken", func(ctx context.Context) error {
		return errors.New("connection lost")
	})

	require.NoError(t, sup.Shutdown(time.Second))
	assert.Equal(t, 1, sink.Count(diag.EventWorkerFailure))
}

func TestSupervisor_CleanCancelNotReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := testutil.NewCaptureSink()
	sup := NewSupervisor(context.Background(), diag.New(nil, diag.WithSink(sink)))

	sup.Go("clean", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, sup.Shutdown(time.Second))
	assert.Zero(t, sup.Failures())
	assert.Zero(t, sink.Count(diag.EventWorkerFailure))
}

func TestSupervisor_ShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	sup := NewSupervisor(context.Background(), diag.Nop())
	sup.Go("stuck", func(ctx context.Context) error {
		<-block // ignores cancellation
		return nil
	})

	err := sup.Shutdown(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
}
