// Package graph holds the navigation shell's model state: the node arena,
// the edge set, per-node lifecycle tiers, and the resource mapping table.
//
// ARCHITECTURE:
//
// Arena + Index:
// Nodes live in an arena keyed by Handle (a session-local int64 index).
// Every node also carries a durable NodeID (UUIDv7) and the graph maintains
// a bidirectional Handle<->NodeID index. Handles are cheap to compare and
// pass around; NodeIDs survive restarts and travel in the durable log and
// over the wire. Producers never hold raw node pointers - they reference
// nodes by NodeID and the reducer resolves to a Handle at apply time.
//
// Exclusive ownership:
// The model is mutated only by the reducer (apply phase) and the reconciler
// (effect phase), both running on the single consumer goroutine. No locks
// are needed on model state; the intent queue is the only concurrently
// shared structure. See internal/engine for the phase sequencing.
//
// Phase-gap guard:
// Between apply completing and reconcile completing, lifecycle and
// resource-mapping reads through Model are forbidden. The Guard enforces
// this in strict mode (tests) by panicking on a guarded read. The
// reconciler itself reads through an EffectView, which is exempt.
package graph
