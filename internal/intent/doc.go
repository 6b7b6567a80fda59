// Package intent defines the kernel's mutation vocabulary.
//
// An Intent is one requested state mutation, expressed as a single tagged
// value so the queue stays homogeneous across heterogeneous producers.
// Three families exist:
//
//   - structural: create/remove nodes and edges, attribute updates,
//     traversal history appends. Durably logged by the reducer.
//   - lifecycle: tier promotions/demotions and resource mapping changes.
//     Mutate only non-durable runtime state.
//   - remote-delta: a structural operation carried from a peer with a
//     logical clock, merged under explicit per-field policy.
//
// A Queued intent adds the enqueue sequence number and the declared
// Source, which together with the logical clock give the deterministic
// batch order (origin class, logical clock, enqueue sequence).
//
// Structural mutations are content-addressed: MutationID hashes the RFC
// 8785 canonical JSON of the mutation so durable log appends are
// idempotent across restore replays and peer re-delivery.
package intent
