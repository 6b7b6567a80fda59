package harness

import (
	"github.com/loomshell/loom/internal/diag"
	"github.com/loomshell/loom/internal/store"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Errors lists assertion failures. Empty when Pass is true.
	Errors []string

	// Ticks is the number of ticks executed.
	Ticks uint64

	// Mutations is the durable trace in apply order.
	Mutations []store.Mutation

	// Events is every diagnostics event emitted, in emission order.
	Events []diag.Event

	// Dropped counts advisory intents rejected by the full queue.
	Dropped uint64
}

// AddError records an assertion failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// EventCount returns how many emitted events carry the given name.
func (r *Result) EventCount(name string) int {
	n := 0
	for _, e := range r.Events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// EventNames returns the emission-order event name sequence.
func (r *Result) EventNames() []string {
	names := make([]string, len(r.Events))
	for i, e := range r.Events {
		names[i] = e.Name
	}
	return names
}
