package gate

import (
	"context"
	"fmt"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/dag"
)

// PlanningGate validates the 2→3 transition: at least one task, the task
// DAG is acyclic, every task names at least one file, and every task has at
// least one acceptance criterion.
func PlanningGate(ctx context.Context, gctx Context) (cadretype.GateResult, error) {
	result := cadretype.GateResult{Errors: []string{}, Warnings: []string{}}

	if len(gctx.Tasks) == 0 {
		result.Errors = append(result.Errors, "implementation plan has zero tasks")
		return finalizeStatus(result), nil
	}

	ids := make([]string, 0, len(gctx.Tasks))
	deps := make(map[string][]string, len(gctx.Tasks))
	for _, task := range gctx.Tasks {
		ids = append(ids, task.ID)
		deps[task.ID] = task.Dependencies
	}
	if !dag.Acyclic(ids, deps) {
		result.Errors = append(result.Errors, "implementation plan task graph contains a cycle")
	}

	for _, task := range gctx.Tasks {
		if len(task.Files) == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("task %q names no files", task.ID))
		}
		if len(task.AcceptanceCriteria) == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("task %q has no acceptance criteria", task.ID))
		}
	}

	return finalizeStatus(result), nil
}
