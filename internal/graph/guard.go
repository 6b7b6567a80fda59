package graph

import (
	"fmt"
	"sync/atomic"
)

// Guard enforces the phase-gap invariant: between apply completing and
// reconcile completing, no component outside the reconciler may query
// lifecycle or resource-mapping state. Torn reads in that window would
// observe a node that is Active but unmapped purely because reconciliation
// has not run yet.
//
// In strict mode (test builds opt in via SetStrict) a guarded read while
// the guard is armed panics. In production the violation is counted and
// the read proceeds; the counter is surfaced through diagnostics.
type Guard struct {
	armed      atomic.Bool
	strict     atomic.Bool
	violations atomic.Uint64
}

// Arm marks the start of the phase gap. Called by the orchestrator
// immediately after apply completes.
func (g *Guard) Arm() { g.armed.Store(true) }

// Disarm marks the end of the phase gap. Called by the orchestrator
// after reconcile completes.
func (g *Guard) Disarm() { g.armed.Store(false) }

// Armed reports whether the guard is currently armed.
func (g *Guard) Armed() bool { return g.armed.Load() }

// SetStrict enables hard assertion failures on guarded reads.
// Tests enable this; production leaves it off.
func (g *Guard) SetStrict(strict bool) { g.strict.Store(strict) }

// Violations returns the number of guarded reads observed while armed.
func (g *Guard) Violations() uint64 { return g.violations.Load() }

// check records a read attempt. Panics in strict mode while armed.
func (g *Guard) check(what string) {
	if !g.armed.Load() {
		return
	}
	g.violations.Add(1)
	if g.strict.Load() {
		panic(fmt.Sprintf("phase-gap violation: %s read while guard armed", what))
	}
}
