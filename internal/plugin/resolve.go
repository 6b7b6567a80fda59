package plugin

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// Resolve orders manifests so every plugin activates after everything
// it requires. The order is deterministic: among plugins whose
// requirements are all satisfied, lexically smaller names activate
// first. Plugins with missing requirements, and every member of a
// dependency cycle, become load errors instead.
func Resolve(manifests []Manifest) ([]Manifest, []LoadError) {
	byName := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}

	var failures []LoadError

	// Drop plugins whose requirements reference unknown names, then
	// re-check: dropping one plugin can orphan its dependents.
	for {
		var dropped bool
		for name, m := range byName {
			for _, req := range m.Requires {
				if _, ok := byName[req]; !ok {
					failures = append(failures, LoadError{
						Name:   name,
						Path:   m.Path,
						Reason: fmt.Sprintf("requires %q which is not available", req),
					})
					delete(byName, name)
					dropped = true
					break
				}
			}
		}
		if !dropped {
			break
		}
	}

	// Kahn's algorithm with a min-heap of ready names.
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string, len(byName))
	for name, m := range byName {
		indegree[name] += 0
		for _, req := range m.Requires {
			indegree[name]++
			dependents[req] = append(dependents[req], name)
		}
	}

	ready := &nameHeap{}
	for name, deg := range indegree {
		if deg == 0 {
			heap.Push(ready, name)
		}
	}

	order := make([]Manifest, 0, len(byName))
	for ready.Len() > 0 {
		name := heap.Pop(ready).(string)
		order = append(order, byName[name])
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	// Anything not emitted sits on a cycle.
	if len(order) < len(byName) {
		var cyclic []string
		for name := range byName {
			if indegree[name] > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		for _, name := range cyclic {
			failures = append(failures, LoadError{
				Name:   name,
				Path:   byName[name].Path,
				Reason: fmt.Sprintf("dependency cycle involving %s", strings.Join(cyclic, ", ")),
			})
		}
	}

	sortFailures(failures)
	return order, failures
}

func sortFailures(failures []LoadError) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Name != failures[j].Name {
			return failures[i].Name < failures[j].Name
		}
		return failures[i].Path < failures[j].Path
	})
}

type nameHeap []string

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nameHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
