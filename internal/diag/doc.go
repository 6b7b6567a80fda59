// Package diag is the kernel's only sanctioned side channel outside the
// intent/model boundary. Every dropped advisory intent, forced demotion,
// worker failure, remote-merge conflict resolution, and durable-log write
// failure emits a named event here.
//
// Events fan out three ways: a structured slog record, a Prometheus
// counter increment, and an optional Sink for tests and the conformance
// harness, which capture event streams for golden comparison.
//
// Emission never errors and never blocks: diagnostics must not be able to
// stall a tick.
package diag
