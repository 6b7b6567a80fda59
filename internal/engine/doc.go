// Package engine is the single-consumer kernel of the navigation shell.
//
// All graph, lifecycle, and mapping mutations happen on one goroutine in
// a fixed per-tick order: capture local input, drain the producer queue,
// sort the combined batch by causality, apply it through the reducer,
// reconcile effects against the resource backend, then render.
//
// Concurrency model:
//   - Producers (workers, engine callbacks, peer sync) enqueue intents
//     from any goroutine via Queue.
//   - The Orchestrator's tick loop is the only goroutine that mutates
//     the model. No locks are taken around model state.
//   - Between apply and reconcile the phase-gap guard is armed; reads of
//     lifecycle or mapping state in that window are a bug.
//
// Determinism: a batch is sorted by (origin class, logical clock,
// enqueue sequence) before apply, so the same multiset of queued intents
// always produces the same final graph. Failed appends to the durable
// log are logged and skipped rather than retried - retries would make
// replay order diverge from the live run.
package engine
