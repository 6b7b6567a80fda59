package engine

import (
	"sort"

	"github.com/loomshell/loom/internal/intent"
)

// Order sorts a batch in place by the causality triple
// (origin class, logical clock, enqueue sequence).
//
// The sort is stable, so intents with identical keys keep their capture
// order. Local-origin intents always apply before remote-origin ones
// regardless of arrival interleaving.
func Order(batch []intent.Queued) {
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Less(batch[j])
	})
}

// Assemble merges locally captured intents with a queue drain into a
// single ordered batch for the apply phase.
func Assemble(local, drained []intent.Queued) []intent.Queued {
	batch := make([]intent.Queued, 0, len(local)+len(drained))
	batch = append(batch, local...)
	batch = append(batch, drained...)
	Order(batch)
	return batch
}
