// Package analysis implements the phase-1 executor: it snapshots the issue
// and worktree to disk, runs issue-analyst then codebase-scout, and captures
// a baseline build/test result the later phases can diff against.
package analysis

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

	// ExcludeGlobs are doublestar patterns (matched against worktree-relative
	// paths) skipped when building repo-file-tree.txt. ".cadre/**" is always
	// excluded in addition to whatever is configured here.
	ExcludeGlobs []string
}

// Result is what the phase hands back to the issue orchestrator: the output
// path recorded in the checkpoint and the ambiguity count the 1→2 gate needs.
type Result struct {
	AnalysisPath    string
	ScoutReportPath string
	BaselinePath    string
	AmbiguityCount  int
}
