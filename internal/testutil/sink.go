package testutil

import (
	"sync"

	"github.com/loomshell/loom/internal/diag"
)

// CaptureSink records every diagnostics event for assertion.
type CaptureSink struct {
	mu     sync.Mutex
	events []diag.Event
}

// NewCaptureSink creates an empty sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Record implements diag.Sink.
func (s *CaptureSink) Record(e diag.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of everything recorded so far.
func (s *CaptureSink) Events() []diag.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]diag.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Named returns the recorded events with the given name.
func (s *CaptureSink) Named(name string) []diag.Event {
	var out []diag.Event
	for _, e := range s.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events with the given name were recorded.
func (s *CaptureSink) Count(name string) int {
	return len(s.Named(name))
}
