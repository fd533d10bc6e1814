package issueorch

import (
	"context"
	"fmt"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/analysis"
	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/gate"
	"github.com/AbdelazizMoustafa10m/cadre/internal/notify"
	"github.com/AbdelazizMoustafa10m/cadre/internal/planning"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
	"github.com/AbdelazizMoustafa10m/cadre/internal/prcomposition"
	"github.com/AbdelazizMoustafa10m/cadre/internal/scheduler"
	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
)

// runAnalysisPhase drives phase 1 and its 1→2 gate (analysis + ambiguity,
// merged). A gate failure is retried once by re-running the phase before
// being treated as a critical-phase abort.
func (o *Orchestrator) runAnalysisPhase(ctx context.Context, state *cadretype.CheckpointState, rl AgentLauncher, gctx *gate.Context) (cadretype.PhaseResult, error) {
	if err := o.checkpoint.StartPhase(state, phaseAnalysis); err != nil {
		return o.phaseFailure(phaseAnalysis, "analysis", time.Now(), err), err
	}
	o.emit(notify.Event{Type: notify.EventPhaseStarted, Issue: o.issue.Number, Phase: phaseAnalysis})
	start := time.Now()

	buildCmd, testCmd := o.buildCommand(), o.testCommand()
	run := func() (analysis.Result, error) {
		p := analysis.NewPhase(rl, o.budget, o.buildRunner, buildCmd, testCmd, o.analysisOptions(), o.logger)
		return p.Run(ctx, o.issue)
	}

	result, err := run()
	if err != nil {
		return o.phaseFailure(phaseAnalysis, "analysis", start, err), err
	}
	gctx.AmbiguityCount = result.AmbiguityCount

	gateResult, retried, err := o.gateWithRetry(ctx, gate.AnalysisGate, gctx, func() error {
		var runErr error
		result, runErr = run()
		gctx.AmbiguityCount = result.AmbiguityCount
		return runErr
	})
	if err != nil {
		return o.phaseFailure(phaseAnalysis, "analysis", start, err), err
	}
	ambiguityResult, err := gate.AmbiguityGate(ctx, *gctx)
	if err != nil {
		return o.phaseFailure(phaseAnalysis, "analysis", start, err), err
	}
	merged := cadretype.MergeGateResults(gateResult, ambiguityResult)
	if err := o.checkpoint.RecordGateResult(state, phaseAnalysis, merged); err != nil {
		return o.phaseFailure(phaseAnalysis, "analysis", start, err), err
	}
	o.emit(notify.Event{Type: notify.EventGateResult, Issue: o.issue.Number, Phase: phaseAnalysis, Message: string(merged.Status)})

	if merged.Status == cadretype.GateFail {
		err := fmt.Errorf("issueorch: analysis gate failed after %d attempt(s): %v", retried+1, merged.Errors)
		return o.phaseFailure(phaseAnalysis, "analysis", start, err), err
	}

	if err := o.checkpoint.CompletePhase(state, phaseAnalysis, result.AnalysisPath); err != nil {
		return o.phaseFailure(phaseAnalysis, "analysis", start, err), err
	}
	pr := cadretype.PhaseResult{Phase: phaseAnalysis, PhaseName: "analysis", Success: true, Duration: time.Since(start), OutputPath: result.AnalysisPath, GateResult: &merged}
	o.commitPhase(ctx, phaseAnalysis, "analysis")
	o.emit(notify.Event{Type: notify.EventPhaseCompleted, Issue: o.issue.Number, Phase: phaseAnalysis})
	return pr, nil
}

// runPlanningPhase drives phase 2 and its 2→3 gate.
func (o *Orchestrator) runPlanningPhase(ctx context.Context, state *cadretype.CheckpointState, rl AgentLauncher, gctx *gate.Context) (cadretype.PhaseResult, error) {
	if err := o.checkpoint.StartPhase(state, phasePlanning); err != nil {
		return o.phaseFailure(phasePlanning, "planning", time.Now(), err), err
	}
	o.emit(notify.Event{Type: notify.EventPhaseStarted, Issue: o.issue.Number, Phase: phasePlanning})
	start := time.Now()

	analysisPath := state.PhaseOutputs[phaseAnalysis]

	run := func() (planning.Result, error) {
		p := planning.NewPhase(rl, o.budget, o.planningOptions())
		return p.Run(ctx, analysisPath)
	}

	result, err := run()
	if err != nil {
		return o.phaseFailure(phasePlanning, "planning", start, err), err
	}
	gctx.Tasks = result.Tasks

	gateResult, retried, err := o.gateWithRetry(ctx, gate.PlanningGate, gctx, func() error {
		var runErr error
		result, runErr = run()
		gctx.Tasks = result.Tasks
		return runErr
	})
	if err != nil {
		return o.phaseFailure(phasePlanning, "planning", start, err), err
	}
	if err := o.checkpoint.RecordGateResult(state, phasePlanning, gateResult); err != nil {
		return o.phaseFailure(phasePlanning, "planning", start, err), err
	}
	o.emit(notify.Event{Type: notify.EventGateResult, Issue: o.issue.Number, Phase: phasePlanning, Message: string(gateResult.Status)})

	if gateResult.Status == cadretype.GateFail {
		err := fmt.Errorf("issueorch: planning gate failed after %d attempt(s): %v", retried+1, gateResult.Errors)
		return o.phaseFailure(phasePlanning, "planning", start, err), err
	}

	state.Tasks = result.Tasks
	if err := o.checkpoint.CompletePhase(state, phasePlanning, result.PlanPath); err != nil {
		return o.phaseFailure(phasePlanning, "planning", start, err), err
	}
	pr := cadretype.PhaseResult{Phase: phasePlanning, PhaseName: "planning", Success: true, Duration: time.Since(start), OutputPath: result.PlanPath, GateResult: &gateResult}
	o.commitPhase(ctx, phasePlanning, "planning")
	o.emit(notify.Event{Type: notify.EventPhaseCompleted, Issue: o.issue.Number, Phase: phasePlanning})
	return pr, nil
}

// runImplementationPhase drives phase 3 (the task scheduler) and its 3→4
// gate. The scheduler itself handles per-task retries and blocking; a gate
// failure here (no commits landed, or unresolved merge markers) is retried
// once by re-running the remaining tasks.
func (o *Orchestrator) runImplementationPhase(ctx context.Context, state *cadretype.CheckpointState, rl AgentLauncher, gctx *gate.Context) (cadretype.PhaseResult, error) {
	if err := o.checkpoint.StartPhase(state, phaseImplement); err != nil {
		return o.phaseFailure(phaseImplement, "implementation", time.Now(), err), err
	}
	o.emit(notify.Event{Type: notify.EventPhaseStarted, Issue: o.issue.Number, Phase: phaseImplement})
	start := time.Now()

	buildCmd := o.buildCommand()

	run := func() (scheduler.Result, error) {
		sched := scheduler.New(state.Tasks, o.schedulerOptions(state.BaseCommit), rl, o.git, o.budget, o.checkpoint, o.buildRunner, buildCmd, o.notifier, o.logger)
		return sched.Run(ctx, state)
	}

	schedResult, err := run()
	if err != nil {
		return o.phaseFailure(phaseImplement, "implementation", start, err), err
	}

	gateResult, retried, err := o.gateWithRetry(ctx, gate.ImplementationGate, gctx, func() error {
		var runErr error
		schedResult, runErr = run()
		return runErr
	})
	if err != nil {
		return o.phaseFailure(phaseImplement, "implementation", start, err), err
	}
	if err := o.checkpoint.RecordGateResult(state, phaseImplement, gateResult); err != nil {
		return o.phaseFailure(phaseImplement, "implementation", start, err), err
	}
	o.emit(notify.Event{Type: notify.EventGateResult, Issue: o.issue.Number, Phase: phaseImplement, Message: string(gateResult.Status)})

	if gateResult.Status == cadretype.GateFail {
		err := fmt.Errorf("issueorch: implementation gate failed after %d attempt(s): %v", retried+1, gateResult.Errors)
		return o.phaseFailure(phaseImplement, "implementation", start, err), err
	}

	if err := o.checkpoint.CompletePhase(state, phaseImplement, ""); err != nil {
		return o.phaseFailure(phaseImplement, "implementation", start, err), err
	}
	pr := cadretype.PhaseResult{
		Phase:      phaseImplement,
		PhaseName:  "implementation",
		Success:    true,
		Duration:   time.Since(start),
		GateResult: &gateResult,
	}
	if len(schedResult.Blocked) > 0 {
		pr.Error = fmt.Sprintf("tasks blocked: %v", schedResult.Blocked)
	}
	o.commitPhase(ctx, phaseImplement, "implementation")
	o.emit(notify.Event{Type: notify.EventPhaseCompleted, Issue: o.issue.Number, Phase: phaseImplement})
	return pr, nil
}

// runVerificationPhase drives phase 4 and its 4→5 gate. Non-critical: the
// caller logs any returned error and goes on to phase 5 rather than
// aborting the run.
func (o *Orchestrator) runVerificationPhase(ctx context.Context, state *cadretype.CheckpointState, rl AgentLauncher, gctx *gate.Context) (cadretype.PhaseResult, error) {
	_ = o.checkpoint.StartPhase(state, phaseVerification)
	o.emit(notify.Event{Type: notify.EventPhaseStarted, Issue: o.issue.Number, Phase: phaseVerification})
	start := time.Now()

	phase := verification.NewPhase(o.buildRunner, rl, o.git, o.commands, o.opts.MaxFixRounds, o.issue.Number, o.opts.WorktreePath, o.opts.ProgressDir)
	summary, report, err := phase.Run(ctx)
	if err != nil {
		return o.phaseFailure(phaseVerification, "verification", start, err), err
	}
	gctx.Integration = summary

	gateResult, err := gate.VerificationGate(ctx, *gctx)
	if err != nil {
		return o.phaseFailure(phaseVerification, "verification", start, err), err
	}
	_ = o.checkpoint.RecordGateResult(state, phaseVerification, gateResult)
	o.emit(notify.Event{Type: notify.EventGateResult, Issue: o.issue.Number, Phase: phaseVerification, Message: string(gateResult.Status)})

	reportPath := fmt.Sprintf("%s/integration-report.md", o.opts.ProgressDir)
	_ = o.checkpoint.CompletePhase(state, phaseVerification, reportPath)
	pr := cadretype.PhaseResult{Phase: phaseVerification, PhaseName: "verification", Success: gateResult.Status != cadretype.GateFail, Duration: time.Since(start), OutputPath: reportPath, GateResult: &gateResult}
	_ = report

	o.commitPhase(ctx, phaseVerification, "verification")
	o.emit(notify.Event{Type: notify.EventPhaseCompleted, Issue: o.issue.Number, Phase: phaseVerification})

	if gateResult.Status == cadretype.GateFail {
		return pr, fmt.Errorf("issueorch: verification gate failed: %v", gateResult.Errors)
	}
	return pr, nil
}

// runPRCompositionPhase drives phase 5. Non-critical, like phase 4: any
// error downgrades the final status rather than aborting.
func (o *Orchestrator) runPRCompositionPhase(ctx context.Context, state *cadretype.CheckpointState, rl AgentLauncher) (cadretype.PhaseResult, *platform.PullRequest, error) {
	_ = o.checkpoint.StartPhase(state, phasePRComposition)
	o.emit(notify.Event{Type: notify.EventPhaseStarted, Issue: o.issue.Number, Phase: phasePRComposition})
	start := time.Now()

	phase := prcomposition.NewPhase(rl, o.budget, o.git, o.provider, o.prcompositionOptions(state.BaseCommit))
	result, err := phase.Run(ctx)

	pr := cadretype.PhaseResult{Phase: phasePRComposition, PhaseName: "pr-composition", Duration: time.Since(start), OutputPath: result.DiffPath}
	if err != nil {
		pr.Error = err.Error()
		o.emit(notify.Event{Type: notify.EventPhaseFailed, Issue: o.issue.Number, Phase: phasePRComposition, Message: err.Error()})
		return pr, nil, err
	}

	pr.Success = true
	_ = o.checkpoint.CompletePhase(state, phasePRComposition, result.DiffPath)
	o.commitPhase(ctx, phasePRComposition, "pr-composition")
	o.emit(notify.Event{Type: notify.EventPhaseCompleted, Issue: o.issue.Number, Phase: phasePRComposition})
	return pr, result.PR, nil
}

// phaseFailure builds the PhaseResult for a critical-phase abort.
func (o *Orchestrator) phaseFailure(phase int, name string, start time.Time, err error) cadretype.PhaseResult {
	o.emit(notify.Event{Type: notify.EventPhaseFailed, Issue: o.issue.Number, Phase: phase, Message: err.Error()})
	return cadretype.PhaseResult{Phase: phase, PhaseName: name, Success: false, Duration: time.Since(start), Error: err.Error()}
}

// gateWithRetry runs gateFn once; on a fail verdict it invokes retryFn (which
// should re-run the phase and update gctx) and re-evaluates gateFn exactly
// once more. It returns the final gate result, the number of retries
// actually taken (0 or 1), and any hard error from either attempt.
func (o *Orchestrator) gateWithRetry(ctx context.Context, gateFn gate.Func, gctx *gate.Context, retryFn func() error) (cadretype.GateResult, int, error) {
	result, err := gateFn(ctx, *gctx)
	if err != nil {
		return cadretype.GateResult{}, 0, err
	}
	if result.Status != cadretype.GateFail {
		return result, 0, nil
	}
	if retryFn == nil {
		return result, 0, nil
	}
	if err := retryFn(); err != nil {
		return cadretype.GateResult{}, 1, err
	}
	// retryFn mutates *gctx (e.g. AmbiguityCount, Tasks) before this
	// re-evaluation, so the dereference must happen after it returns.
	result, err = gateFn(ctx, *gctx)
	if err != nil {
		return cadretype.GateResult{}, 1, err
	}
	return result, 1, nil
}
