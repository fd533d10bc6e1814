package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/notify"
	"github.com/AbdelazizMoustafa10m/cadre/internal/retry"
	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DeadlockError is returned when the ready set is empty but the task queue
// is not yet fully resolved — every remaining task is stuck on a dependency
// that will never complete or block.
type DeadlockError struct {
	Remaining []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("scheduler: deadlock — %d task(s) unresolved and none ready: %v", len(e.Remaining), e.Remaining)
}

// Result is the outcome of one Scheduler.Run call.
type Result struct {
	Completed []string
	Blocked   []string
}

// Scheduler drives the phase-3 task DAG to completion: repeatedly computes
// the ready set, picks a non-overlapping batch, and fans the batch out
// concurrently up to MaxParallelAgents.
type Scheduler struct {
	tasks       []cadretype.ImplementationTask
	opts        Options
	launcher    AgentLauncher
	git         Git
	budget      BudgetChecker
	checkpoint  Checkpoint
	buildRunner *verification.Runner
	buildCmd    verification.NamedCommand
	notifier    *notify.Manager
	logger      *log.Logger
}

// New constructs a Scheduler. buildCmd may be the zero value when
// PerTaskBuildCheck is false.
func New(
	tasks []cadretype.ImplementationTask,
	opts Options,
	l AgentLauncher,
	git Git,
	budget BudgetChecker,
	checkpoint Checkpoint,
	buildRunner *verification.Runner,
	buildCmd verification.NamedCommand,
	notifier *notify.Manager,
	logger *log.Logger,
) *Scheduler {
	return &Scheduler{
		tasks:       tasks,
		opts:        opts,
		launcher:    l,
		git:         git,
		budget:      budget,
		checkpoint:  checkpoint,
		buildRunner: buildRunner,
		buildCmd:    buildCmd,
		notifier:    notifier,
		logger:      logger,
	}
}

// Run drives every task in s.tasks to completed or blocked, starting from
// whatever completed/blocked sets state already carries (e.g. from a
// resumed run). Each task resolution is persisted through state via the
// Checkpoint methods before the next batch is computed.
func (s *Scheduler) Run(ctx context.Context, state *cadretype.CheckpointState) (Result, error) {
	completed := toSet(state.CompletedTasks)
	blocked := toSet(state.BlockedTasks)
	failed := make(map[string]bool)
	inProgress := make(map[string]bool)

	for !allResolved(s.tasks, completed, blocked) {
		ready := readyTasks(s.tasks, completed, blocked, failed, inProgress)
		if len(ready) == 0 {
			remaining := make([]string, 0)
			for _, t := range s.tasks {
				if !completed[t.ID] && !blocked[t.ID] {
					remaining = append(remaining, t.ID)
				}
			}
			return Result{}, &DeadlockError{Remaining: remaining}
		}

		batch := selectBatch(ready, s.opts.MaxParallelAgents)
		for _, t := range batch {
			inProgress[t.ID] = true
			if err := s.checkpoint.StartTask(state, t.ID); err != nil {
				return Result{}, fmt.Errorf("scheduler: recording task start for %s: %w", t.ID, err)
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.MaxParallelAgents)

		outcomes := make(chan taskOutcome, len(batch))
		for _, t := range batch {
			t := t
			g.Go(func() error {
				outcomes <- s.runOneTask(gctx, t)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, fmt.Errorf("scheduler: task batch: %w", err)
		}
		close(outcomes)

		for o := range outcomes {
			delete(inProgress, o.taskID)
			for i := 0; i < o.failedAttempts; i++ {
				if err := s.checkpoint.FailTask(state, o.taskID); err != nil {
					return Result{}, fmt.Errorf("scheduler: recording task attempt failure for %s: %w", o.taskID, err)
				}
			}
			if o.err == nil {
				completed[o.taskID] = true
				if err := s.checkpoint.CompleteTask(state, o.taskID); err != nil {
					return Result{}, fmt.Errorf("scheduler: recording task completion for %s: %w", o.taskID, err)
				}
				s.emit(notify.EventTaskCompleted, o.taskID)
			} else {
				blocked[o.taskID] = true
				if err := s.checkpoint.BlockTask(state, o.taskID); err != nil {
					return Result{}, fmt.Errorf("scheduler: recording task block for %s: %w", o.taskID, err)
				}
				s.emit(notify.EventTaskBlocked, o.taskID)
				if s.logger != nil {
					s.logger.Warn("task blocked", "task", o.taskID, "error", o.err)
				}
			}
		}
	}

	if err := s.runWholePRReview(ctx); err != nil && s.logger != nil {
		s.logger.Warn("whole-pr review failed", "error", err)
	}

	return Result{Completed: keysWhereTrue(completed), Blocked: keysWhereTrue(blocked)}, nil
}

type taskOutcome struct {
	taskID string
	err    error
	// failedAttempts counts retry.Execute attempts that errored before the
	// eventual success or exhaustion, recorded via Checkpoint.FailTask by
	// the caller once the batch's goroutines have all finished — never
	// from inside the goroutine itself, since state is shared across the
	// whole in-flight batch.
	failedAttempts int
}

func (s *Scheduler) runOneTask(ctx context.Context, t cadretype.ImplementationTask) taskOutcome {
	s.emit(notify.EventPhaseStarted, t.ID)

	var failedAttempts int
	result := retry.Execute(ctx, s.retryOptionsForTask(t), func(ctx context.Context, attempt int) (out struct{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("scheduler: task %s panicked: %v", t.ID, r)
				if s.logger != nil {
					s.logger.Error("task panicked, recovered", "task", t.ID, "attempt", attempt, "panic", r)
				}
			}
			if err != nil {
				failedAttempts++
			}
		}()
		return struct{}{}, s.executeTask(ctx, t, attempt)
	})

	if !result.Success {
		return taskOutcome{taskID: t.ID, err: result.Err, failedAttempts: failedAttempts}
	}

	if _, err := s.git.CommitAll(ctx, fmt.Sprintf("implement %s", t.Name)); err != nil {
		return taskOutcome{taskID: t.ID, err: err, failedAttempts: failedAttempts}
	}
	return taskOutcome{taskID: t.ID, failedAttempts: failedAttempts}
}

func (s *Scheduler) emit(eventType notify.EventType, taskID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(notify.Event{
		Type:      eventType,
		Issue:     s.opts.IssueNumber,
		Phase:     3,
		Message:   taskID,
		Timestamp: time.Now(),
	})
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func keysWhereTrue(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	return out
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("scheduler: marshaling %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
