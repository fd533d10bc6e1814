// Package planning implements the phase-2 executor: it invokes
// implementation-planner and parses the task DAG out of its output. Cycle
// and completeness checks live in gate.PlanningGate, which consumes the
// Tasks this phase returns — the phase itself only parses and hands off.
package planning

import (
	"context"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
)

// AgentLauncher is the subset of launcher.Launcher the phase needs.
type AgentLauncher interface {
	Launch(ctx context.Context, inv launcher.Invocation, worktreePath string) (*launcher.AgentResult, error)
}

// BudgetChecker is the subset of budget.Guard the phase needs.
type BudgetChecker interface {
	Check(issue int) error
}

// Options configures a Phase run.
type Options struct {
	IssueNumber  int
	WorktreePath string
	ProgressDir  string
	AgentTimeout time.Duration
}
