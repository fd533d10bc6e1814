package planning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/jsonutil"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
)

const planFileName = "implementation-plan.md"

// Result is what the phase hands back: the plan document path and the parsed
// tasks (for gate.Context.Tasks).
type Result struct {
	PlanPath string
	Tasks    []cadretype.ImplementationTask
}

// Phase is the phase-2 executor.
type Phase struct {
	launcher AgentLauncher
	budget   BudgetChecker
	opts     Options
}

// NewPhase constructs a Phase.
func NewPhase(l AgentLauncher, budget BudgetChecker, opts Options) *Phase {
	return &Phase{launcher: l, budget: budget, opts: opts}
}

// Run invokes implementation-planner and parses its cadre-json task array.
// A missing or unparseable cadre-json block yields a zero-task Result rather
// than an error: gate.PlanningGate is the one place "zero tasks" becomes a
// phase failure, so every caller sees the same failure path.
func (p *Phase) Run(ctx context.Context, analysisContextPath string) (Result, error) {
	if err := p.budget.Check(p.opts.IssueNumber); err != nil {
		return Result{}, err
	}

	planPath := filepath.Join(p.opts.ProgressDir, planFileName)
	inv := launcher.Invocation{
		Agent:       "implementation-planner",
		IssueNumber: p.opts.IssueNumber,
		Phase:       2,
		ContextPath: analysisContextPath,
		OutputPath:  planPath,
		Timeout:     p.opts.AgentTimeout,
	}
	result, err := p.launcher.Launch(ctx, inv, p.opts.WorktreePath)
	if err != nil {
		return Result{}, fmt.Errorf("planning: implementation-planner: %w", err)
	}
	if !result.Success {
		return Result{}, fmt.Errorf("planning: implementation-planner did not succeed: %s", result.Error)
	}

	data, err := os.ReadFile(planPath)
	if err != nil {
		return Result{}, fmt.Errorf("planning: reading %s: %w", planFileName, err)
	}

	var tasks []cadretype.ImplementationTask
	_ = jsonutil.ExtractCadreJSONInto(string(data), &tasks)

	if err := p.budget.Check(p.opts.IssueNumber); err != nil {
		return Result{}, err
	}

	return Result{PlanPath: planPath, Tasks: tasks}, nil
}
