package fleetorch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/checkpoint"
	"github.com/AbdelazizMoustafa10m/cadre/internal/dag"
	"github.com/AbdelazizMoustafa10m/cadre/internal/issueorch"
	"github.com/AbdelazizMoustafa10m/cadre/internal/notify"
)

// Orchestrator builds an issue dependency DAG, schedules issues into
// concurrency waves, and drives every issue to a terminal status while
// honoring a strict barrier between waves.
type Orchestrator struct {
	projectName string
	opts        Options

	worktrees WorktreeProvider
	factory   IssueRunnerFactory
	fleet     *checkpoint.FleetManager
	notifier  *notify.Manager
	logger    *log.Logger
}

// NewOrchestrator constructs a fleet Orchestrator for projectName.
func NewOrchestrator(
	projectName string,
	opts Options,
	worktrees WorktreeProvider,
	factory IssueRunnerFactory,
	fleet *checkpoint.FleetManager,
	notifier *notify.Manager,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		projectName: projectName,
		opts:        opts,
		worktrees:   worktrees,
		factory:     factory,
		fleet:       fleet,
		notifier:    notifier,
		logger:      logger,
	}
}

// Run drives issues to completion according to deps, an issue-number to
// dependencies adjacency map. A dependency referencing an issue not present
// in issues is silently ignored. Waves run sequentially; within a wave,
// issues run concurrently up to opts.MaxParallelIssues; every issue in a
// wave must reach a terminal status before the next wave starts.
func (o *Orchestrator) Run(ctx context.Context, issues []cadretype.Issue, deps map[int][]int) (Result, error) {
	state, err := o.fleet.Load(o.projectName)
	if err != nil {
		return Result{}, fmt.Errorf("fleetorch: loading fleet checkpoint: %w", err)
	}

	byNumber := make(map[int]cadretype.Issue, len(issues))
	ids := make([]int, 0, len(issues))
	for _, issue := range issues {
		byNumber[issue.Number] = issue
		ids = append(ids, issue.Number)
	}

	waves, err := dag.Layers(ids, deps, func(a, b int) bool { return a < b })
	if err != nil {
		var cyclic *dag.CyclicError[int]
		if errors.As(err, &cyclic) {
			return Result{}, &CyclicDependencyError{IssueNumbers: cyclic.Residual}
		}
		return Result{}, fmt.Errorf("fleetorch: building wave schedule: %w", err)
	}

	result := Result{
		Issues:     make(map[int]issueorch.Result, len(issues)),
		TokenUsage: cadretype.FleetTokenUsage{ByIssue: map[int]int{}},
	}

	for _, wave := range waves {
		outcomes, err := o.runWave(ctx, wave, byNumber)
		if err != nil {
			return Result{}, err
		}
		for number, outcome := range outcomes {
			result.Issues[number] = outcome.result

			tokenTotal := outcome.tokenTotal
			result.TokenUsage.ByIssue[number] = tokenTotal
			result.TokenUsage.Total += tokenTotal
			if outcome.result.PR != nil {
				result.PRs = append(result.PRs, *outcome.result.PR)
			}

			if err := o.fleet.UpdateIssue(state, number, outcome.summary, tokenTotal); err != nil {
				return Result{}, fmt.Errorf("fleetorch: updating fleet checkpoint for issue #%d: %w", number, err)
			}
		}
	}

	return result, nil
}

// issueOutcome pairs an issue's own Result with the summary the fleet
// checkpoint records about it.
type issueOutcome struct {
	result     issueorch.Result
	summary    cadretype.IssueSummary
	tokenTotal int
}

// runWave drives every issue in wave concurrently, bounded by
// opts.MaxParallelIssues, and returns once all of them reach a terminal
// status — the strict wave barrier.
func (o *Orchestrator) runWave(ctx context.Context, wave []int, byNumber map[int]cadretype.Issue) (map[int]issueOutcome, error) {
	outcomes := make(map[int]issueOutcome, len(wave))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if o.opts.MaxParallelIssues > 0 {
		g.SetLimit(o.opts.MaxParallelIssues)
	}

	for _, number := range wave {
		issue := byNumber[number]
		g.Go(func() error {
			outcome := o.driveIssue(gctx, issue)
			mu.Lock()
			outcomes[issue.Number] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fleetorch: wave: %w", err)
	}
	return outcomes, nil
}

// driveIssue provisions a worktree, runs the issue orchestrator, and builds
// the fleet checkpoint summary. A fatal (non-business) error here still
// yields an IssueFailed outcome rather than aborting the whole fleet — other
// issues in the wave are unaffected.
func (o *Orchestrator) driveIssue(ctx context.Context, issue cadretype.Issue) issueOutcome {
	issueNotifier := notify.NewManager()
	if o.notifier != nil {
		issueNotifier.Add(o.notifier)
	}

	wt, err := o.worktrees.Provision(ctx, issue)
	if err != nil {
		o.log("provisioning worktree failed", "issue", issue.Number, "error", err)
		return issueOutcome{
			result:  issueorch.Result{Status: cadretype.IssueFailed},
			summary: cadretype.IssueSummary{Status: cadretype.IssueFailed, IssueTitle: issue.Title},
		}
	}

	runner, err := o.factory(issue, wt, issueNotifier)
	if err != nil {
		o.log("constructing issue orchestrator failed", "issue", issue.Number, "error", err)
		return issueOutcome{
			result:  issueorch.Result{Status: cadretype.IssueFailed},
			summary: cadretype.IssueSummary{Status: cadretype.IssueFailed, IssueTitle: issue.Title, WorktreePath: wt.Path, BranchName: wt.Branch},
		}
	}

	result, err := runner.Run(ctx)
	if err != nil {
		o.log("issue run failed", "issue", issue.Number, "error", err)
		result.Status = cadretype.IssueFailed
	}

	// Re-read the issue's own checkpoint rather than trust Result alone: the
	// fleet never writes it, only reads it back for the summary (lastPhase,
	// token total) it needs to record in its own checkpoint.
	lastPhase, tokenTotal := 0, 0
	if state, loadErr := checkpoint.NewIssueManager(wt.ProgressDir).Load(issue.Number); loadErr == nil {
		lastPhase = state.CurrentPhase
		tokenTotal = state.TokenUsage.Total
	}

	summary := cadretype.IssueSummary{
		Status:       result.Status,
		IssueTitle:   issue.Title,
		WorktreePath: wt.Path,
		BranchName:   wt.Branch,
		LastPhase:    lastPhase,
	}
	if result.PR != nil {
		summary.PRNumber = result.PR.Number
	}

	return issueOutcome{result: result, summary: summary, tokenTotal: tokenTotal}
}

func (o *Orchestrator) log(msg string, kvs ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Warn(msg, kvs...)
}
