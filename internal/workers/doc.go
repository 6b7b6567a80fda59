// Package workers holds the background producers that feed the consumer
// loop: the memory-pressure monitor, the plugin loader, the prefetch
// scheduler, and the peer-sync worker. Workers never touch the graph
// model directly; they only enqueue intents (and, for prefetch, read an
// immutable snapshot published by the render phase).
package workers
