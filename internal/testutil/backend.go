package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomshell/loom/internal/graph"
)

// ScriptedBackend is an in-memory resource backend for tests.
//
// Creation failures are scripted per node id: FailCreates(id, n) makes
// the next n creation attempts for that node fail. Every call is
// recorded so tests can assert exact create/destroy sequences.
//
// Thread-safety: all methods are safe for concurrent use, though the
// reconciler only ever calls from the consumer goroutine.
type ScriptedBackend struct {
	mu        sync.Mutex
	next      int
	failures  map[graph.NodeID]int
	live      map[graph.ResourceID]graph.NodeID
	Created   []graph.NodeID
	Destroyed []graph.ResourceID
}

// NewScriptedBackend creates an empty backend.
func NewScriptedBackend() *ScriptedBackend {
	return &ScriptedBackend{
		failures: make(map[graph.NodeID]int),
		live:     make(map[graph.ResourceID]graph.NodeID),
	}
}

// FailCreates scripts the next n creation attempts for a node to fail.
func (b *ScriptedBackend) FailCreates(id graph.NodeID, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[id] = n
}

// Create mints a resource id, or fails if a failure is scripted.
func (b *ScriptedBackend) Create(ctx context.Context, node *graph.Node) (graph.ResourceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures[node.ID] > 0 {
		b.failures[node.ID]--
		return "", fmt.Errorf("scripted create failure for %s", node.ID)
	}

	b.next++
	id := graph.ResourceID(fmt.Sprintf("res-%d", b.next))
	b.live[id] = node.ID
	b.Created = append(b.Created, node.ID)
	return id, nil
}

// Destroy releases a resource. Unknown ids are an error so leaks and
// double-destroys surface in tests.
func (b *ScriptedBackend) Destroy(ctx context.Context, id graph.ResourceID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.live[id]; !ok {
		return fmt.Errorf("destroy of unknown resource %s", id)
	}
	delete(b.live, id)
	b.Destroyed = append(b.Destroyed, id)
	return nil
}

// LiveCount returns the number of resources currently alive.
func (b *ScriptedBackend) LiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// CreateCalls returns the number of creation attempts that succeeded.
func (b *ScriptedBackend) CreateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Created)
}
