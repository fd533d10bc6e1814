package issueorch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/cadre/internal/analysis"
	"github.com/AbdelazizMoustafa10m/cadre/internal/budget"
	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/config"
	"github.com/AbdelazizMoustafa10m/cadre/internal/gate"
	"github.com/AbdelazizMoustafa10m/cadre/internal/notify"
	"github.com/AbdelazizMoustafa10m/cadre/internal/planning"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
	"github.com/AbdelazizMoustafa10m/cadre/internal/prcomposition"
	"github.com/AbdelazizMoustafa10m/cadre/internal/scheduler"
	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
)

// Phase numbers, named for readability at call sites.
const (
	phaseAnalysis      = 1
	phasePlanning      = 2
	phaseImplement     = 3
	phaseVerification  = 4
	phasePRComposition = 5
)

// Orchestrator drives a single issue through all five phases, gating every
// transition and checkpointing after each phase (and, within phase 3, after
// each task).
type Orchestrator struct {
	issue cadretype.Issue
	opts  Options

	launcher    AgentLauncher
	git         Git
	budget      BudgetChecker
	checkpoint  Checkpoint
	buildRunner *verification.Runner
	commands    config.CommandsConfig
	provider    platform.Provider
	notifier    *notify.Manager
	logger      *log.Logger
}

// NewOrchestrator constructs an Orchestrator for one issue.
func NewOrchestrator(
	issue cadretype.Issue,
	opts Options,
	l AgentLauncher,
	git Git,
	budget BudgetChecker,
	checkpoint Checkpoint,
	buildRunner *verification.Runner,
	commands config.CommandsConfig,
	provider platform.Provider,
	notifier *notify.Manager,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		issue:       issue,
		opts:        opts,
		launcher:    l,
		git:         git,
		budget:      budget,
		checkpoint:  checkpoint,
		buildRunner: buildRunner,
		commands:    commands,
		provider:    provider,
		notifier:    notifier,
		logger:      logger,
	}
}

// Run executes phases 1 through 5 in order, starting from whatever
// checkpoint state already exists for o.issue.Number. Phases 1-3 are
// critical: a gate failure that survives one retry aborts the run with
// IssueFailed. Phases 4-5 are non-critical: a failure there is logged and
// the run continues. The issue ends IssueCodeCompleteNoPR only when phase 5
// fails; a phase-4 failure followed by a successful phase 5 is IssueCompleted.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	state, err := o.checkpoint.Load(o.issue.Number)
	if err != nil {
		return Result{}, fmt.Errorf("issueorch: loading checkpoint: %w", err)
	}

	resumed := len(state.CompletedPhases) > 0 || state.CurrentTask != "" || state.CurrentPhase > 0
	if resumed {
		if err := o.checkpoint.MarkResumed(state); err != nil {
			return Result{}, fmt.Errorf("issueorch: marking resumed: %w", err)
		}
		o.emit(notify.Event{Type: notify.EventCheckpointSaved, Issue: o.issue.Number, Message: "resumed from checkpoint"})
	}

	if err := o.ensureWorktree(ctx, state); err != nil {
		return Result{}, fmt.Errorf("issueorch: preparing worktree: %w", err)
	}

	rl := newRecordingLauncher(o.launcher, o.budget, o.checkpoint, state)

	gctx := gate.Context{
		ProgressDir:        o.opts.ProgressDir,
		WorktreePath:       o.opts.WorktreePath,
		BaseCommit:         state.BaseCommit,
		HaltOnAmbiguity:    o.opts.HaltOnAmbiguity,
		AmbiguityThreshold: o.opts.AmbiguityThreshold,
		Git:                o.git,
	}

	var phaseResults []cadretype.PhaseResult

	if !state.HasCompletedPhase(phaseAnalysis) {
		pr, err := o.runAnalysisPhase(ctx, state, rl, &gctx)
		phaseResults = append(phaseResults, pr)
		if err != nil {
			return o.fail(state, phaseResults, start, err), nil
		}
	}

	if !state.HasCompletedPhase(phasePlanning) {
		pr, err := o.runPlanningPhase(ctx, state, rl, &gctx)
		phaseResults = append(phaseResults, pr)
		if err != nil {
			return o.fail(state, phaseResults, start, err), nil
		}
	}

	if !state.HasCompletedPhase(phaseImplement) {
		pr, err := o.runImplementationPhase(ctx, state, rl, &gctx)
		phaseResults = append(phaseResults, pr)
		if err != nil {
			return o.fail(state, phaseResults, start, err), nil
		}
	}

	codeCompleteNoPR := false

	if !state.HasCompletedPhase(phaseVerification) {
		pr, err := o.runVerificationPhase(ctx, state, rl, &gctx)
		phaseResults = append(phaseResults, pr)
		if err != nil {
			o.log("phase 4 failed, continuing non-critically", "error", err)
		}
	}

	var createdPR *platform.PullRequest
	if !state.HasCompletedPhase(phasePRComposition) {
		pr, prResult, err := o.runPRCompositionPhase(ctx, state, rl)
		phaseResults = append(phaseResults, pr)
		if err != nil {
			o.log("phase 5 failed, issue remains code-complete-no-pr", "error", err)
			codeCompleteNoPR = true
		} else {
			createdPR = prResult
		}
	}

	status := cadretype.IssueCompleted
	if codeCompleteNoPR {
		status = cadretype.IssueCodeCompleteNoPR
	}

	o.emit(notify.Event{Type: notify.EventIssueCompleted, Issue: o.issue.Number, Message: string(status)})

	return Result{
		Status:   status,
		Phases:   phaseResults,
		PR:       createdPR,
		Duration: time.Since(start),
	}, nil
}

// fail builds the Result for an aborted (critical-phase) run.
func (o *Orchestrator) fail(state *cadretype.CheckpointState, phases []cadretype.PhaseResult, start time.Time, cause error) Result {
	o.log("issue failed", "error", cause)
	o.emit(notify.Event{Type: notify.EventIssueFailed, Issue: o.issue.Number, Message: cause.Error()})
	status := cadretype.IssueFailed
	var budgetErr *budget.BudgetExceededError
	if errors.As(cause, &budgetErr) {
		status = cadretype.IssueBudgetExceeded
		_ = o.checkpoint.SetBudgetExceeded(state)
	}
	return Result{Status: status, Phases: phases, Duration: time.Since(start)}
}

// ensureWorktree records the worktree/branch/base-commit triple in state the
// first time this issue runs; on resume it trusts what is already recorded.
func (o *Orchestrator) ensureWorktree(ctx context.Context, state *cadretype.CheckpointState) error {
	if state.WorktreePath != "" {
		return nil
	}

	exists, err := o.git.BranchExists(ctx, o.opts.BranchName)
	if err != nil {
		return fmt.Errorf("checking branch %q: %w", o.opts.BranchName, err)
	}
	if exists {
		if err := o.git.Checkout(ctx, o.opts.BranchName); err != nil {
			return fmt.Errorf("checking out branch %q: %w", o.opts.BranchName, err)
		}
	} else if err := o.git.CreateBranch(ctx, o.opts.BranchName, ""); err != nil {
		return fmt.Errorf("creating branch %q: %w", o.opts.BranchName, err)
	}

	baseCommit, err := o.git.HeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("resolving base commit: %w", err)
	}

	return o.checkpoint.SetWorktreeInfo(state, o.opts.WorktreePath, o.opts.BranchName, baseCommit)
}

// commitPhase commits the worktree with the phase's configured commit type,
// substituting the issue number into the message. A no-op unless
// o.opts.CommitPerPhase is set. Errors are logged, not propagated: a commit
// failure here should never turn a completed phase into a failed one.
func (o *Orchestrator) commitPhase(ctx context.Context, phase int, phaseName string) {
	if !o.opts.CommitPerPhase {
		return
	}
	typ := o.opts.TypeByPhase[phase]
	if typ == "" {
		typ = "chore"
	}
	message := fmt.Sprintf("%s: complete phase %d (%s) for issue #%d", typ, phase, phaseName, o.issue.Number)
	if _, err := o.git.CommitAll(ctx, message); err != nil {
		o.log("phase commit failed", "phase", phase, "error", err)
	}
}

func (o *Orchestrator) log(msg string, kvs ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Info(msg, kvs...)
}

func (o *Orchestrator) emit(ev notify.Event) {
	if o.notifier == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	o.notifier.Emit(ev)
}

// analysisOptions, planningOptions, schedulerOptions, and prcompositionOptions
// translate the orchestrator's flat Options into each phase package's
// narrower Options shape.

func (o *Orchestrator) analysisOptions() analysis.Options {
	return analysis.Options{
		IssueNumber:  o.issue.Number,
		WorktreePath: o.opts.WorktreePath,
		ProgressDir:  o.opts.ProgressDir,
		AgentTimeout: o.opts.AgentTimeout,
		ExcludeGlobs: o.opts.ExcludeGlobs,
	}
}

func (o *Orchestrator) planningOptions() planning.Options {
	return planning.Options{
		IssueNumber:  o.issue.Number,
		WorktreePath: o.opts.WorktreePath,
		ProgressDir:  o.opts.ProgressDir,
		AgentTimeout: o.opts.AgentTimeout,
	}
}

func (o *Orchestrator) schedulerOptions(baseCommit string) scheduler.Options {
	return scheduler.Options{
		MaxParallelAgents:       o.opts.MaxParallelAgents,
		MaxRetriesPerTask:       o.opts.MaxRetriesPerTask,
		MaxBuildFixRounds:       o.opts.MaxBuildFixRounds,
		MaxWholePRReviewRetries: o.opts.MaxWholePRReviewRetries,
		PerTaskBuildCheck:       o.opts.PerTaskBuildCheck,
		IssueNumber:             o.issue.Number,
		WorktreePath:            o.opts.WorktreePath,
		ProgressDir:             o.opts.ProgressDir,
		BaseCommit:              baseCommit,
		AgentTimeout:            o.opts.AgentTimeout,
	}
}

// buildCommand and testCommand expose the configured build/test shell
// commands as verification.NamedCommand for baseline capture (phase 1) and
// per-task build checks (phase 3). A command with an empty Command string
// is simply never run by verification.Runner.
func (o *Orchestrator) buildCommand() verification.NamedCommand {
	return verification.NamedCommand{Name: "build", Command: o.commands.Build.Command, Timeout: secondsOrDefault(o.commands.Build.Timeout, 120)}
}

func (o *Orchestrator) testCommand() verification.NamedCommand {
	return verification.NamedCommand{Name: "test", Command: o.commands.Test.Command, Timeout: secondsOrDefault(o.commands.Test.Timeout, 300)}
}

func secondsOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func (o *Orchestrator) prcompositionOptions(baseCommit string) prcomposition.Options {
	return prcomposition.Options{
		IssueNumber:    o.issue.Number,
		WorktreePath:   o.opts.WorktreePath,
		ProgressDir:    o.opts.ProgressDir,
		BaseCommit:     baseCommit,
		BaseBranch:     o.opts.BaseBranch,
		AgentTimeout:   o.opts.AgentTimeout,
		SquashBeforePR: o.opts.SquashBeforePR,
		Draft:          o.opts.Draft,
		LinkIssue:      o.opts.LinkIssue,
	}
}
