package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/store"
)

// LogReader is the restore-time view of the durable log.
// Implemented by *store.Store.
type LogReader interface {
	Replay(ctx context.Context, fn func(store.Mutation) error) error
	LastSeq(ctx context.Context) (uint64, error)
	LastClock(ctx context.Context) (uint64, error)
}

// IntentFromMutation reconstructs the intent a log row recorded.
// Remote provenance (peer, clock) survives the round trip so replayed
// merges resolve exactly as they did live.
func IntentFromMutation(m store.Mutation) (intent.Intent, error) {
	kind := intent.KindFromString(m.Kind)
	if kind == 0 {
		return intent.Intent{}, fmt.Errorf("restore: unknown mutation kind %q", m.Kind)
	}

	var fields struct {
		Name   string `json:"name"`
		URL    string `json:"url"`
		Tag    string `json:"tag"`
		Entry  string `json:"entry"`
		From   string `json:"from"`
		To     string `json:"to"`
		Edge   string `json:"edge"`
		Plugin string `json:"plugin"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(m.Payload), &fields); err != nil {
		return intent.Intent{}, fmt.Errorf("restore: decode payload for %s: %w", m.ID, err)
	}

	in := intent.Intent{
		Kind:     kind,
		Node:     graph.NodeID(m.Node),
		From:     graph.NodeID(fields.From),
		To:       graph.NodeID(fields.To),
		Name:     fields.Name,
		URL:      fields.URL,
		Tag:      fields.Tag,
		Entry:    fields.Entry,
		EdgeType: graph.EdgeTypeFromString(fields.Edge),
		Plugin:   fields.Plugin,
		Reason:   fields.Reason,
	}
	if m.Peer != "" {
		in.Remote = &intent.RemoteMeta{Peer: m.Peer, Clock: m.Clock}
	}
	return in, nil
}

// Restore rebuilds the graph from the durable log before the first tick.
//
// Mutations replay in logged apply order, NOT causality order: the log
// already reflects the order the live run settled on, and re-sorting by
// clock would let a replayed merge diverge. Lifecycle state is not
// logged, so every restored node starts Cold; promotion comes from the
// first post-restore inputs.
func (r *Reducer) Restore(ctx context.Context, log LogReader) error {
	err := log.Replay(ctx, func(m store.Mutation) error {
		in, err := IntentFromMutation(m)
		if err != nil {
			return err
		}
		r.applyOne(ctx, intent.Queued{Intent: in, Seq: m.Seq, Source: intent.SourceRestore})
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	seq, err := log.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	r.SetApplySeq(seq)

	clock, err := log.LastClock(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	r.clock.Observe(clock)

	return nil
}

// Restore rebuilds the model before the first tick. See Reducer.Restore.
func (o *Orchestrator) Restore(ctx context.Context, log LogReader) error {
	return o.reducer.Restore(ctx, log)
}
