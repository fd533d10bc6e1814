// Package scheduler resolves the phase-3 task DAG into non-overlapping
// concurrent batches and drives each task's write/build/test/review/fix
// loop, with a deliberately loose readiness rule: a blocked dependency
// satisfies a dependency edge so a single stuck task cannot deadlock the
// rest of the graph.
package scheduler

import (
	"context"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
)

// AgentLauncher is the subset of launcher.Launcher the scheduler needs.
type AgentLauncher interface {
	Launch(ctx context.Context, inv launcher.Invocation, worktreePath string) (*launcher.AgentResult, error)
}

// Git is the subset of gitrepo.Client the scheduler needs.
type Git interface {
	CommitAll(ctx context.Context, message string) (bool, error)
	DiffUnified(ctx context.Context, base string) (string, error)
}

// BudgetChecker is the subset of budget.Guard the scheduler needs.
type BudgetChecker interface {
	Check(issue int) error
}

// Checkpoint is the subset of checkpoint.IssueManager the scheduler needs.
// Each call mutates and persists state; the scheduler never saves directly.
type Checkpoint interface {
	StartTask(state *cadretype.CheckpointState, taskID string) error
	CompleteTask(state *cadretype.CheckpointState, taskID string) error
	BlockTask(state *cadretype.CheckpointState, taskID string) error
	FailTask(state *cadretype.CheckpointState, taskID string) error
}

// Options configures a Scheduler.
type Options struct {
	MaxParallelAgents       int
	MaxRetriesPerTask       int
	MaxBuildFixRounds       int
	MaxWholePRReviewRetries int
	PerTaskBuildCheck       bool
	IssueNumber             int
	WorktreePath            string
	ProgressDir             string
	BaseCommit              string
	AgentTimeout            time.Duration
}

// ReviewVerdict is the code-reviewer / whole-pr-reviewer output verdict.
type ReviewVerdict string

const (
	VerdictPass       ReviewVerdict = "pass"
	VerdictNeedsFixes ReviewVerdict = "needs-fixes"
)

// ReviewSummary is the parsed content of a code-reviewer or
// whole-pr-reviewer cadre-json block.
type ReviewSummary struct {
	SessionID   string        `json:"sessionId"`
	Verdict     ReviewVerdict `json:"verdict"`
	Summary     string        `json:"summary"`
	KeyFindings []string      `json:"keyFindings"`
}
