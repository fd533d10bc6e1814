// Package fleetorch drives a set of issues to completion: it builds a
// dependency DAG across issues, schedules them into concurrency waves, and
// runs each issue through its own issue orchestrator while aggregating
// results into a single fleet-wide checkpoint.
package fleetorch

import (
	"context"
	"fmt"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/issueorch"
	"github.com/AbdelazizMoustafa10m/cadre/internal/notify"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
)

// ProvisionedWorktree is what a WorktreeProvider hands back for one issue:
// the isolated working directory and branch the issue orchestrator will
// drive, plus the directory its checkpoint.json lives under.
type ProvisionedWorktree struct {
	Path        string
	Branch      string
	ProgressDir string
}

// WorktreeProvider is the external collaborator that creates and tears down
// per-issue worktrees. The fleet orchestrator never touches git directly
// for this; it only calls Provision once per issue before driving it.
type WorktreeProvider interface {
	Provision(ctx context.Context, issue cadretype.Issue) (ProvisionedWorktree, error)
}

// IssueRunner is the subset of *issueorch.Orchestrator the fleet driver
// needs — narrowed so tests can substitute a fake without constructing a
// real Orchestrator.
type IssueRunner interface {
	Run(ctx context.Context) (issueorch.Result, error)
}

// IssueRunnerFactory builds the IssueRunner for one issue, given its
// provisioned worktree and a notification manager already wired to forward
// into the fleet's own manager. Callers close over whatever launcher, git
// client, budget guard, and platform provider the concrete run needs.
type IssueRunnerFactory func(issue cadretype.Issue, wt ProvisionedWorktree, notifier *notify.Manager) (IssueRunner, error)

// Options configures a fleet run.
type Options struct {
	MaxParallelIssues int
}

// Result is the aggregate outcome of a fleet run: every issue's own result,
// plus fleet-wide token usage and the list of PRs opened.
type Result struct {
	Issues     map[int]issueorch.Result
	TokenUsage cadretype.FleetTokenUsage
	PRs        []platform.PullRequest
}

// CyclicDependencyError reports that the issue dependency graph contains a
// cycle; wave construction cannot proceed. IssueNumbers holds the residual
// issues that never reached in-degree zero.
type CyclicDependencyError struct {
	IssueNumbers []int
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("fleetorch: cyclic dependency among issue(s) %v", e.IssueNumbers)
}
