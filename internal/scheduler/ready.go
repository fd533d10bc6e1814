package scheduler

import "github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"

// readyTasks returns the subset of tasks that are pending and every one of
// whose dependencies is either completed or blocked. A blocked dependency
// satisfies the edge deliberately: this keeps the queue drainable instead of
// cascading a single failed task's block status to everything downstream of
// it, rather than requiring every dependency to have completed.
func readyTasks(tasks []cadretype.ImplementationTask, completed, blocked, failed, inProgress map[string]bool) []cadretype.ImplementationTask {
	ready := make([]cadretype.ImplementationTask, 0, len(tasks))
	for _, t := range tasks {
		if completed[t.ID] || blocked[t.ID] || failed[t.ID] || inProgress[t.ID] {
			continue
		}
		if dependenciesSatisfied(t, completed, blocked) {
			ready = append(ready, t)
		}
	}
	return ready
}

func dependenciesSatisfied(t cadretype.ImplementationTask, completed, blocked map[string]bool) bool {
	for _, dep := range t.Dependencies {
		if !completed[dep] && !blocked[dep] {
			return false
		}
	}
	return true
}

// selectBatch greedily picks tasks from ready, in order, whose files are
// disjoint from the union of files already chosen for this batch, up to
// maxParallel tasks. This guarantees no two concurrently-executing tasks in
// the returned batch write the same file.
func selectBatch(ready []cadretype.ImplementationTask, maxParallel int) []cadretype.ImplementationTask {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	batch := make([]cadretype.ImplementationTask, 0, maxParallel)
	used := make(map[string]bool)

	for _, t := range ready {
		if len(batch) >= maxParallel {
			break
		}
		if overlaps(t.Files, used) {
			continue
		}
		batch = append(batch, t)
		for _, f := range t.Files {
			used[f] = true
		}
	}
	return batch
}

func overlaps(files []string, used map[string]bool) bool {
	for _, f := range files {
		if used[f] {
			return true
		}
	}
	return false
}

func allResolved(tasks []cadretype.ImplementationTask, completed, blocked map[string]bool) bool {
	for _, t := range tasks {
		if !completed[t.ID] && !blocked[t.ID] {
			return false
		}
	}
	return true
}
