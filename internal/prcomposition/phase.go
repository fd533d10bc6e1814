package prcomposition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AbdelazizMoustafa10m/cadre/internal/jsonutil"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
)

const (
	diffFileName = "diff-full.patch"
	prFileName   = "pr-description.md"
)

// prSidecar is the cadre-json shape pr-composer embeds in pr-description.md.
type prSidecar struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Phase is the phase-5 executor.
type Phase struct {
	launcher AgentLauncher
	budget   BudgetChecker
	git      Git
	provider platform.Provider
	opts     Options
}

// NewPhase constructs a Phase.
func NewPhase(l AgentLauncher, budget BudgetChecker, git Git, provider platform.Provider, opts Options) *Phase {
	return &Phase{launcher: l, budget: budget, git: git, provider: provider, opts: opts}
}

// Run diffs, composes, pushes, and opens the PR. Any failed step, including
// push and PR creation, returns a non-nil error; once the diff is written,
// the returned Result still carries what was completed (DiffPath, Title,
// Body, BranchName, Pushed) with PR == nil.
func (p *Phase) Run(ctx context.Context) (Result, error) {
	if err := p.budget.Check(p.opts.IssueNumber); err != nil {
		return Result{}, err
	}

	diff, err := p.git.DiffUnified(ctx, p.opts.BaseCommit)
	if err != nil {
		return Result{}, fmt.Errorf("prcomposition: diffing against %s: %w", p.opts.BaseCommit, err)
	}
	diffPath := filepath.Join(p.opts.ProgressDir, diffFileName)
	if err := os.WriteFile(diffPath, []byte(diff), 0o644); err != nil {
		return Result{}, fmt.Errorf("prcomposition: writing %s: %w", diffFileName, err)
	}

	result := Result{DiffPath: diffPath}

	prPath := filepath.Join(p.opts.ProgressDir, prFileName)
	inv := launcher.Invocation{
		Agent:       "pr-composer",
		IssueNumber: p.opts.IssueNumber,
		Phase:       5,
		ContextPath: diffPath,
		OutputPath:  prPath,
		Timeout:     p.opts.AgentTimeout,
	}
	agentResult, err := p.launcher.Launch(ctx, inv, p.opts.WorktreePath)
	if err != nil {
		return result, fmt.Errorf("prcomposition: pr-composer: %w", err)
	}
	if !agentResult.Success {
		return result, fmt.Errorf("prcomposition: pr-composer did not succeed: %s", agentResult.Error)
	}

	data, err := os.ReadFile(prPath)
	if err != nil {
		return result, fmt.Errorf("prcomposition: reading %s: %w", prFileName, err)
	}
	var sidecar prSidecar
	if err := jsonutil.ExtractCadreJSONInto(string(data), &sidecar); err != nil {
		return result, fmt.Errorf("prcomposition: parsing pr-composer output: %w", err)
	}
	if p.opts.LinkIssue {
		sidecar.Body += p.provider.IssueLinkSuffix(p.opts.IssueNumber)
	}
	result.Title = sidecar.Title
	result.Body = sidecar.Body

	if p.opts.SquashBeforePR {
		if err := p.git.SquashTo(ctx, p.opts.BaseCommit, sidecar.Title); err != nil {
			return result, fmt.Errorf("prcomposition: squashing before PR: %w", err)
		}
	}

	branch, err := p.git.CurrentBranch(ctx)
	if err != nil {
		return result, fmt.Errorf("prcomposition: resolving current branch: %w", err)
	}
	result.BranchName = branch

	if err := p.git.Push(ctx, "origin", true); err != nil {
		return result, fmt.Errorf("prcomposition: pushing branch %s: %w", branch, err)
	}
	result.Pushed = true

	base := p.opts.BaseBranch
	if base == "" {
		base = "main"
	}
	pr, err := p.provider.CreatePullRequest(ctx, platform.CreatePullRequestRequest{
		Title: sidecar.Title,
		Body:  sidecar.Body,
		Head:  branch,
		Base:  base,
		Draft: p.opts.Draft,
	})
	if err != nil {
		return result, fmt.Errorf("prcomposition: creating pull request: %w", err)
	}
	result.PR = &pr

	if err := p.budget.Check(p.opts.IssueNumber); err != nil {
		return result, err
	}

	return result, nil
}
