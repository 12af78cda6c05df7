package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odgrim/abathur/pkg/task"
)

func withID(id string, deps ...string) *task.Task {
	t := task.New(id, "")
	t.ID = id
	t.Dependencies = deps
	return t
}

func TestDetectCycleNone(t *testing.T) {
	tasks := []*task.Task{
		withID("a"),
		withID("b", "a"),
		withID("c", "a"),
		withID("d", "b", "c"),
	}
	cyc, err := DetectCycle(tasks)
	require.NoError(t, err)
	assert.Nil(t, cyc)
}

func TestDetectCycleSimple(t *testing.T) {
	tasks := []*task.Task{
		withID("a", "b"),
		withID("b", "a"),
	}
	cyc, err := DetectCycle(tasks)
	require.NoError(t, err)
	require.NotNil(t, cyc)
	assert.Contains(t, cyc.Cycle, "a")
	assert.Contains(t, cyc.Cycle, "b")
}

func TestDetectCycleUnknownDependency(t *testing.T) {
	tasks := []*task.Task{withID("a", "missing")}
	_, err := DetectCycle(tasks)
	require.Error(t, err)
}

func TestTopologicalSortDiamond(t *testing.T) {
	a := withID("a")
	b := withID("b", "a")
	c := withID("c", "a")
	d := withID("d", "b", "c")

	sorted, err := TopologicalSort([]*task.Task{a, b, c, d})
	require.NoError(t, err)
	require.Len(t, sorted, 4)

	pos := map[string]int{}
	for i, t := range sorted {
		pos[t.ID] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
}

func TestTopologicalSortCycleErrors(t *testing.T) {
	tasks := []*task.Task{
		withID("a", "b"),
		withID("b", "a"),
	}
	sorted, err := TopologicalSort(tasks)
	require.Error(t, err)
	assert.Nil(t, sorted)

	var cyc *CycleError
	assert.ErrorAs(t, err, &cyc)
}

func TestDepthComputation(t *testing.T) {
	a := withID("a")
	b := withID("b", "a")
	c := withID("c", "b")

	depths, err := Depth([]*task.Task{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, 0, depths["a"])
	assert.Equal(t, 1, depths["b"])
	assert.Equal(t, 2, depths["c"])
}

func TestDependenciesMetNoDeps(t *testing.T) {
	a := withID("a")
	assert.True(t, DependenciesMet(a, map[string]*task.Task{"a": a}))
}

func TestDependenciesMetAllCompleted(t *testing.T) {
	a := withID("a")
	a.Status = task.StatusCompleted
	b := withID("b", "a")

	byID := map[string]*task.Task{"a": a, "b": b}
	assert.True(t, DependenciesMet(b, byID))
}

func TestDependenciesMetMissingPredecessorNeverMet(t *testing.T) {
	b := withID("b", "ghost")
	byID := map[string]*task.Task{"b": b}
	assert.False(t, DependenciesMet(b, byID))
}

func TestDependenciesMetPartialNotMet(t *testing.T) {
	a := withID("a")
	a.Status = task.StatusCompleted
	c := withID("c") // not completed
	d := withID("d", "a", "c")

	byID := map[string]*task.Task{"a": a, "c": c, "d": d}
	assert.False(t, DependenciesMet(d, byID))
}

func TestDependenciesMetMonotone(t *testing.T) {
	a := withID("a")
	d := withID("d", "a")
	byID := map[string]*task.Task{"a": a, "d": d}

	assert.False(t, DependenciesMet(d, byID))
	a.Status = task.StatusCompleted
	assert.True(t, DependenciesMet(d, byID))
	// staying Completed keeps it met
	assert.True(t, DependenciesMet(d, byID))
}
