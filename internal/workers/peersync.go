package workers

import (
	"context"
	"errors"
	"io"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/intent"
)

// PeerFeed delivers structural deltas from a remote replica. Next blocks
// until a delta is available, the feed ends (io.EOF), or the context is
// cancelled. Ack reports the highest merged clock so the feed can
// advance its cursor; deltas are only acked after the queue accepted
// them, so a crash between Next and Ack redelivers (appends are
// idempotent).
type PeerFeed interface {
	Next(ctx context.Context) (intent.Intent, error)
	Ack(ctx context.Context, clock uint64) error
}

// PeerSync pumps a PeerFeed into the queue. Every delta is enqueued
// durably: remote state must not be lost to backpressure, so a full
// queue blocks the feed instead.
type PeerSync struct {
	queue *engine.Queue
	feed  PeerFeed
	diag  *diag.Emitter

	merged uint64
}

// NewPeerSync creates a sync worker over feed.
func NewPeerSync(q *engine.Queue, feed PeerFeed, d *diag.Emitter) *PeerSync {
	if d == nil {
		d = diag.Nop()
	}
	return &PeerSync{queue: q, feed: feed, diag: d}
}

// Merged returns the highest remote clock acked so far.
func (s *PeerSync) Merged() uint64 {
	return s.merged
}

// Run consumes the feed until it ends or the context is cancelled.
func (s *PeerSync) Run(ctx context.Context) error {
	for {
		in, err := s.feed.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		// A delta without remote provenance cannot be merged
		// deterministically. Skip it rather than corrupt ordering.
		if in.Remote == nil {
			s.diag.ApplyNoop(in.Kind.String(), string(in.Node), "missing_remote_meta")
			continue
		}

		if err := s.queue.EnqueueDurable(ctx, in, intent.SourceRemotePeer); err != nil {
			return err
		}
		if in.Remote.Clock > s.merged {
			s.merged = in.Remote.Clock
		}
		if err := s.feed.Ack(ctx, s.merged); err != nil {
			return err
		}
	}
}
