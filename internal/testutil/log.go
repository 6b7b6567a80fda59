package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/loomshell/loom/internal/store"
)

// MemoryLog is an in-memory stand-in for the SQLite mutation log.
// Preserves the store's idempotency contract: appending a duplicate id
// is a silent no-op.
type MemoryLog struct {
	mu        sync.Mutex
	rows      map[string]store.Mutation
	FailNext  int // scripted append failures
	failCount int
}

// NewMemoryLog creates an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{rows: make(map[string]store.Mutation)}
}

// AppendMutation mirrors store.Store's idempotent append.
func (l *MemoryLog) AppendMutation(ctx context.Context, m store.Mutation) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailNext > 0 {
		l.FailNext--
		l.failCount++
		return false, errors.New("scripted log failure")
	}

	if _, exists := l.rows[m.ID]; exists {
		return false, nil
	}
	l.rows[m.ID] = m
	return true, nil
}

// Mutations returns the logged rows in apply order.
func (l *MemoryLog) Mutations() []store.Mutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]store.Mutation, 0, len(l.rows))
	for _, m := range l.rows {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of logged rows.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// Replay streams rows in apply order, matching store.Store.Replay.
func (l *MemoryLog) Replay(ctx context.Context, fn func(store.Mutation) error) error {
	for _, m := range l.Mutations() {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq returns the highest logged apply sequence.
func (l *MemoryLog) LastSeq(ctx context.Context) (uint64, error) {
	var max uint64
	for _, m := range l.Mutations() {
		if m.Seq > max {
			max = m.Seq
		}
	}
	return max, nil
}

// LastClock returns the highest logged remote clock.
func (l *MemoryLog) LastClock(ctx context.Context) (uint64, error) {
	var max uint64
	for _, m := range l.Mutations() {
		if m.Clock > max {
			max = m.Clock
		}
	}
	return max, nil
}
