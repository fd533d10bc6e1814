package scheduler

import (
	"testing"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/stretchr/testify/assert"
)

func tasksFixture() []cadretype.ImplementationTask {
	return []cadretype.ImplementationTask{
		{ID: "a", Files: []string{"a.go"}},
		{ID: "b", Dependencies: []string{"a"}, Files: []string{"b.go"}},
		{ID: "c", Dependencies: []string{"a"}, Files: []string{"a.go"}},
		{ID: "d", Dependencies: []string{"b", "c"}, Files: []string{"d.go"}},
	}
}

func TestReadyTasks_OnlyRootsReadyInitially(t *testing.T) {
	tasks := tasksFixture()
	ready := readyTasks(tasks, map[string]bool{}, map[string]bool{}, map[string]bool{}, map[string]bool{})
	assert.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].ID)
}

func TestReadyTasks_BlockedDependencySatisfiesEdge(t *testing.T) {
	tasks := tasksFixture()
	completed := map[string]bool{}
	blocked := map[string]bool{"a": true}
	ready := readyTasks(tasks, completed, blocked, map[string]bool{}, map[string]bool{})
	ids := idsOf(ready)
	assert.Contains(t, ids, "b")
	assert.Contains(t, ids, "c")
}

func TestReadyTasks_CompletedDependencySatisfiesEdge(t *testing.T) {
	tasks := tasksFixture()
	completed := map[string]bool{"a": true}
	ready := readyTasks(tasks, completed, map[string]bool{}, map[string]bool{}, map[string]bool{})
	ids := idsOf(ready)
	assert.Contains(t, ids, "b")
	assert.Contains(t, ids, "c")
}

func TestReadyTasks_ExcludesInProgressAndResolved(t *testing.T) {
	tasks := tasksFixture()
	completed := map[string]bool{"a": true, "b": true}
	inProgress := map[string]bool{"c": true}
	ready := readyTasks(tasks, completed, map[string]bool{}, map[string]bool{}, inProgress)
	assert.Empty(t, ready)
}

func TestSelectBatch_DisjointFilesOnly(t *testing.T) {
	ready := []cadretype.ImplementationTask{
		{ID: "b", Files: []string{"b.go"}},
		{ID: "c", Files: []string{"a.go"}}, // overlaps nothing yet chosen... wait distinct from b
	}
	batch := selectBatch(ready, 4)
	assert.Len(t, batch, 2)
}

func TestSelectBatch_SkipsOverlappingFiles(t *testing.T) {
	ready := []cadretype.ImplementationTask{
		{ID: "x", Files: []string{"shared.go"}},
		{ID: "y", Files: []string{"shared.go"}},
	}
	batch := selectBatch(ready, 4)
	assert.Len(t, batch, 1)
	assert.Equal(t, "x", batch[0].ID)
}

func TestSelectBatch_CapsAtMaxParallel(t *testing.T) {
	ready := []cadretype.ImplementationTask{
		{ID: "x", Files: []string{"x.go"}},
		{ID: "y", Files: []string{"y.go"}},
		{ID: "z", Files: []string{"z.go"}},
	}
	batch := selectBatch(ready, 2)
	assert.Len(t, batch, 2)
}

func TestAllResolved(t *testing.T) {
	tasks := tasksFixture()
	completed := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	assert.True(t, allResolved(tasks, completed, map[string]bool{}))

	assert.False(t, allResolved(tasks, map[string]bool{"a": true}, map[string]bool{}))
}

func idsOf(tasks []cadretype.ImplementationTask) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
