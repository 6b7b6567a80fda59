// Package harness provides scenario-driven conformance testing for the
// shell kernel.
//
// A scenario scripts the kernel's inputs tick by tick — locally captured
// intents, remote deltas, advisory worker traffic, scripted resource
// creation failures — runs the real reducer/reconciler pair over them,
// and asserts on the settled model, the durable trace, and the emitted
// diagnostics.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: promote_then_remote_rename
//	description: "A local promote and a remote rename land in one tick"
//	config:
//	  queue_capacity: 64
//	  retry_threshold: 3
//	fail_creates:
//	  - node: node-a
//	    times: 3
//	ticks:
//	  - local:
//	      - kind: create_node
//	        node: node-a
//	        name: Alpha
//	    remote:
//	      - kind: set_node_name
//	        node: node-a
//	        name: Renamed
//	        peer: peer-2
//	        clock: 5
//	assertions:
//	  - type: tier
//	    node: node-a
//	    tier: active
//	  - type: mappings
//	    count: 1
//
// # Determinism
//
// Every scenario runs single-threaded on a fresh model with an in-memory
// mutation log and a scripted resource backend, so identical scenarios
// produce byte-identical traces. Golden files (testdata/golden) pin the
// canonical-JSON snapshot of the settled state; regenerate with
//
//	go test ./internal/harness -update
//
// The phase-gap guard runs in strict mode throughout, so any lifecycle
// read between apply and reconcile panics the test rather than passing
// silently.
package harness
