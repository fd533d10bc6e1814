// Package prcomposition implements the phase-5 executor: it diffs the
// worktree against the base commit, invokes pr-composer for a title/body,
// optionally squashes the branch, pushes, and opens the PR through the
// platform provider. Failure here is non-critical — the caller may still
// report the issue code-complete-no-pr with the branch pushed.
package prcomposition

import (
	"context"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
)

// AgentLauncher is the subset of launcher.Launcher the phase needs.
type AgentLauncher interface {
	Launch(ctx context.Context, inv launcher.Invocation, worktreePath string) (*launcher.AgentResult, error)
}

// BudgetChecker is the subset of budget.Guard the phase needs.
type BudgetChecker interface {
	Check(issue int) error
}

// Git is the subset of gitrepo.Client the phase needs.
type Git interface {
	DiffUnified(ctx context.Context, base string) (string, error)
	SquashTo(ctx context.Context, base, message string) error
	Push(ctx context.Context, remote string, setUpstream bool) error
	CurrentBranch(ctx context.Context) (string, error)
}

// Options configures a Phase run.
type Options struct {
	IssueNumber    int
	WorktreePath   string
	ProgressDir    string
	BaseCommit     string
	BaseBranch     string // PR target branch, defaults to "main"
	AgentTimeout   time.Duration
	SquashBeforePR bool
	Draft          bool
	LinkIssue      bool
}

// Result is the phase outcome. PR fields are zero when composition fails —
// the caller decides whether that makes the issue code-complete-no-pr.
type Result struct {
	DiffPath   string
	Title      string
	Body       string
	BranchName string
	Pushed     bool
	PR         *platform.PullRequest
}
