// Package depgraph implements the Dependency Resolver (C3): pure graph
// operations over a task slice — cycle detection, topological ordering,
// depth computation, and the dependencies-met predicate.
package depgraph

import (
	"errors"
	"fmt"

	"github.com/odgrim/abathur/pkg/task"
)

// ErrCycle indicates the task set contains a circular dependency.
var ErrCycle = errors.New("dependency cycle detected")

// CycleError names the specific cycle found, as the subpath from the
// first revisited (gray) vertex back to itself.
type CycleError struct {
	Cycle []string // task IDs, in traversal order
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %v", e.Cycle)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the current recursion stack
	black              // fully processed
)

// buildAdjacency builds task.ID -> []dependentID, treating each
// `dep -> task.ID` pair as a directed edge (dependency precedes
// dependent), and validates every listed dependency exists in the set.
func buildAdjacency(tasks []*task.Task) (map[string][]string, map[string]*task.Task, error) {
	byID := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	adj := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		adj[t.ID] = adj[t.ID] // ensure every task has an (possibly empty) entry
		for _, depID := range t.Dependencies {
			if _, ok := byID[depID]; !ok {
				return nil, nil, &task.ValidationError{
					TaskID: t.ID,
					Field:  "dependencies",
					Err:    task.ErrUnknownDependency,
				}
			}
			adj[depID] = append(adj[depID], t.ID)
		}
	}
	return adj, byID, nil
}

// DetectCycle runs a three-colour DFS over the dependency graph implied by
// tasks. It returns the first cycle found (not all cycles), or nil if the
// graph is acyclic.
func DetectCycle(tasks []*task.Task) (*CycleError, error) {
	adj, byID, err := buildAdjacency(tasks)
	if err != nil {
		return nil, err
	}

	colors := make(map[string]color, len(byID))
	var path []string
	var cyc *CycleError

	var dfs func(id string) bool
	dfs = func(id string) bool {
		colors[id] = gray
		path = append(path, id)

		for _, next := range adj[id] {
			switch colors[next] {
			case gray:
				start := 0
				for i, v := range path {
					if v == next {
						start = i
						break
					}
				}
				cyc = &CycleError{Cycle: append([]string{}, path[start:]...)}
				return true
			case white:
				if dfs(next) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		colors[id] = black
		return false
	}

	for _, t := range tasks {
		if colors[t.ID] == white {
			if dfs(t.ID) {
				return cyc, nil
			}
		}
	}
	return nil, nil
}

// TopologicalSort orders tasks so every task appears after all of its
// predecessors, via Kahn's algorithm. Returns an error naming the cycle if
// one exists, or if a dependency references an unknown task ID.
func TopologicalSort(tasks []*task.Task) ([]*task.Task, error) {
	adj, byID, err := buildAdjacency(tasks)
	if err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(byID))
	for id := range byID {
		inDegree[id] = 0
	}
	for _, t := range tasks {
		inDegree[t.ID] += len(t.Dependencies)
	}

	// Seed the queue with zero-in-degree tasks in input order, so ties
	// resolve to insertion order.
	queue := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	sorted := make([]*task.Task, 0, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byID[id])

		for _, dependent := range adj[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(tasks) {
		if cyc, detectErr := DetectCycle(tasks); detectErr == nil && cyc != nil {
			return nil, cyc
		}
		return nil, ErrCycle
	}
	return sorted, nil
}

// Depth computes, for every task, the memoised longest path from any root
// (a task with no dependencies) to that task. Defends against cycles via a
// recursion-stack visited set, returning ErrCycle if one is found.
func Depth(tasks []*task.Task) (map[string]int, error) {
	_, byID, err := buildAdjacency(tasks)
	if err != nil {
		return nil, err
	}

	depths := make(map[string]int, len(byID))
	onStack := make(map[string]bool, len(byID))

	var compute func(id string) (int, error)
	compute = func(id string) (int, error) {
		if d, ok := depths[id]; ok {
			return d, nil
		}
		if onStack[id] {
			return 0, ErrCycle
		}
		onStack[id] = true

		t := byID[id]
		maxParent := -1
		for _, depID := range t.Dependencies {
			d, err := compute(depID)
			if err != nil {
				return 0, err
			}
			if d > maxParent {
				maxParent = d
			}
		}

		depth := maxParent + 1
		depths[id] = depth
		onStack[id] = false
		return depth, nil
	}

	for id := range byID {
		if _, err := compute(id); err != nil {
			return nil, err
		}
	}
	return depths, nil
}

// DependenciesMet reports whether t's predecessors are all Completed. A
// task with no dependencies is trivially met. Missing predecessors (not
// present in byID) are never treated as met.
func DependenciesMet(t *task.Task, byID map[string]*task.Task) bool {
	if !t.HasDependencies() {
		return true
	}
	for _, depID := range t.Dependencies {
		dep, ok := byID[depID]
		if !ok || dep.Status != task.StatusCompleted {
			return false
		}
	}
	return true
}
