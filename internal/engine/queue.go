package engine

import (
	"context"
	"sync/atomic"

	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/intent"
)

// DefaultQueueCapacity bounds the producer queue. Sized for bursts of
// remote deltas plus worker chatter within one tick.
const DefaultQueueCapacity = 256

// Queue is the bounded multi-producer buffer between workers and the
// consumer loop. Producers enqueue from any goroutine; only the
// orchestrator drains.
//
// Two enqueue disciplines:
//   - EnqueueDurable blocks until accepted. Used for intents that must
//     not be lost (remote deltas, engine callbacks).
//   - EnqueueAdvisory drops when full. Used for intents that will be
//     regenerated anyway (pressure samples, prefetch hints).
type Queue struct {
	ch      chan intent.Queued
	seq     atomic.Uint64
	dropped atomic.Uint64
	closed  atomic.Bool
	diag    *diag.Emitter
}

// NewQueue creates a queue with the given capacity.
// A capacity <= 0 selects DefaultQueueCapacity.
func NewQueue(capacity int, d *diag.Emitter) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if d == nil {
		d = diag.Nop()
	}
	return &Queue{
		ch:   make(chan intent.Queued, capacity),
		diag: d,
	}
}

// Stamp assigns the next enqueue sequence number without enqueuing.
// The orchestrator uses this for locally captured intents so they share
// the queue's sequence space and sort deterministically against drained
// intents.
func (q *Queue) Stamp(in intent.Intent, src intent.Source) intent.Queued {
	return intent.Queued{Intent: in, Seq: q.seq.Add(1), Source: src}
}

// EnqueueDurable blocks until the intent is accepted or the context is
// cancelled. Never drops. Returns ErrQueueClosed after Close.
func (q *Queue) EnqueueDurable(ctx context.Context, in intent.Intent, src intent.Source) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	qd := q.Stamp(in, src)
	select {
	case q.ch <- qd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueAdvisory attempts a non-blocking enqueue. When the queue is
// full the intent is dropped, the drop counter incremented, and an
// intent_dropped event emitted. Returns whether the intent was accepted.
// After Close everything is rejected without counting as a drop.
func (q *Queue) EnqueueAdvisory(in intent.Intent, src intent.Source) bool {
	if q.closed.Load() {
		return false
	}
	qd := q.Stamp(in, src)
	select {
	case q.ch <- qd:
		return true
	default:
		q.dropped.Add(1)
		q.diag.IntentDropped(src.String(), in.Kind.String())
		return false
	}
}

// Close rejects further enqueues. The channel itself stays open: an
// enqueue racing Close may still land, and the shutdown sequence drains
// one final time after closing, so nothing is stranded.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// Drain removes everything currently buffered without blocking.
// Bounded at one capacity's worth per call so producers racing the
// drain cannot stall the tick.
func (q *Queue) Drain() []intent.Queued {
	out := make([]intent.Queued, 0, len(q.ch))
	for i := 0; i < cap(q.ch); i++ {
		select {
		case qd := <-q.ch:
			out = append(out, qd)
		default:
			return out
		}
	}
	return out
}

// Dropped returns the number of advisory intents dropped so far.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of buffered intents.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Capacity returns the queue's fixed capacity.
func (q *Queue) Capacity() int {
	return cap(q.ch)
}
