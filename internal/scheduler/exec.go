package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/jsonutil"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
	"github.com/AbdelazizMoustafa10m/cadre/internal/retry"
	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
)

// maxTaskDiffChars caps the captured per-task diff; beyond this it is
// truncated with a notice appended.
const maxTaskDiffChars = 200_000

// executeTask runs one task's full write/build/test/review/fix sequence,
// wrapped by the caller in retry.Execute. It returns an error on any step
// that should trigger a retry of the whole sequence.
func (s *Scheduler) executeTask(ctx context.Context, t cadretype.ImplementationTask, attempt int) error {
	if err := s.budget.Check(s.opts.IssueNumber); err != nil {
		return err
	}

	planPath := filepath.Join(s.opts.ProgressDir, fmt.Sprintf("task-%s.md", t.ID))
	if err := os.WriteFile(planPath, []byte(renderTaskPlan(t)), 0o644); err != nil {
		return fmt.Errorf("scheduler: writing task plan for %s: %w", t.ID, err)
	}

	if _, err := s.launch(ctx, "code-writer", t.ID, planPath, ""); err != nil {
		return fmt.Errorf("scheduler: code-writer for %s: %w", t.ID, err)
	}

	if _, err := s.git.CommitAll(ctx, fmt.Sprintf("wip: %s — attempt %d", t.Name, attempt)); err != nil {
		return fmt.Errorf("scheduler: intermediate commit for %s: %w", t.ID, err)
	}

	if s.opts.PerTaskBuildCheck && s.buildCmd.Command != "" {
		if err := s.runBuildCheck(ctx, t); err != nil {
			return err
		}
	}

	if _, err := s.launch(ctx, "test-writer", t.ID, planPath, ""); err != nil {
		return fmt.Errorf("scheduler: test-writer for %s: %w", t.ID, err)
	}

	if err := s.captureTaskDiff(ctx, t); err != nil {
		return err
	}

	if err := s.runCodeReview(ctx, t, planPath); err != nil {
		return err
	}

	if err := s.budget.Check(s.opts.IssueNumber); err != nil {
		return err
	}

	return nil
}

func (s *Scheduler) launch(ctx context.Context, agent, taskID, contextPath, outputPath string) (*launcher.AgentResult, error) {
	inv := launcher.Invocation{
		Agent:       agent,
		IssueNumber: s.opts.IssueNumber,
		Phase:       3,
		ContextPath: contextPath,
		OutputPath:  outputPath,
		Timeout:     s.opts.AgentTimeout,
	}
	result, err := s.launcher.Launch(ctx, inv, s.opts.WorktreePath)
	if err == nil && result != nil && !result.Success {
		if result.RateLimit != nil {
			err = &retry.RateLimitError{Provider: agent, RetryAfter: result.RateLimit.ResetAfter, Message: result.Error}
		} else {
			err = fmt.Errorf("agent %s did not succeed for task %s: %s", agent, taskID, result.Error)
		}
	}
	return result, err
}

// runBuildCheck runs the configured build command once; on failure it
// invokes fix-surgeon (issueType "build") up to MaxBuildFixRounds times,
// re-running the build each round, and fails the task if still broken.
func (s *Scheduler) runBuildCheck(ctx context.Context, t cadretype.ImplementationTask) error {
	cmd := verification.NamedCommand{Name: "build", Command: s.buildCmd.Command, Timeout: s.buildCmd.Timeout}
	result, err := s.buildRunner.RunOne(ctx, cmd)
	if err != nil {
		return fmt.Errorf("scheduler: running build check for %s: %w", t.ID, err)
	}
	if result.Passed {
		return nil
	}

	for round := 1; round <= s.opts.MaxBuildFixRounds; round++ {
		sidecar := filepath.Join(s.opts.ProgressDir, fmt.Sprintf("task-%s-build-failure.txt", t.ID))
		if err := os.WriteFile(sidecar, []byte(result.Stdout+"\n"+result.Stderr), 0o644); err != nil {
			return fmt.Errorf("scheduler: writing build failure sidecar for %s: %w", t.ID, err)
		}
		if _, err := s.launch(ctx, "fix-surgeon", t.ID, sidecar, ""); err != nil {
			return fmt.Errorf("scheduler: fix-surgeon (build) for %s: %w", t.ID, err)
		}
		result, err = s.buildRunner.RunOne(ctx, cmd)
		if err != nil {
			return fmt.Errorf("scheduler: re-running build check for %s: %w", t.ID, err)
		}
		if result.Passed {
			return nil
		}
	}

	return fmt.Errorf("scheduler: task %s still fails to build after %d fix round(s)", t.ID, s.opts.MaxBuildFixRounds)
}

func (s *Scheduler) captureTaskDiff(ctx context.Context, t cadretype.ImplementationTask) error {
	diff, err := s.git.DiffUnified(ctx, s.opts.BaseCommit)
	if err != nil {
		return fmt.Errorf("scheduler: capturing diff for %s: %w", t.ID, err)
	}
	if len(diff) > maxTaskDiffChars {
		diff = diff[:maxTaskDiffChars] + "\n... (diff truncated)\n"
	}
	path := filepath.Join(s.opts.ProgressDir, fmt.Sprintf("diff-%s.patch", t.ID))
	return os.WriteFile(path, []byte(diff), 0o644)
}

// runCodeReview invokes code-reviewer, parses its verdict from review-<id>.md
// if present, and on needs-fixes invokes fix-surgeon (issueType "review").
// It always writes review-<id>-summary.json.
func (s *Scheduler) runCodeReview(ctx context.Context, t cadretype.ImplementationTask, planPath string) error {
	reviewPath := filepath.Join(s.opts.ProgressDir, fmt.Sprintf("review-%s.md", t.ID))
	if _, err := s.launch(ctx, "code-reviewer", t.ID, planPath, reviewPath); err != nil {
		return fmt.Errorf("scheduler: code-reviewer for %s: %w", t.ID, err)
	}

	summary := ReviewSummary{Verdict: VerdictPass}
	if data, err := os.ReadFile(reviewPath); err == nil {
		_ = jsonutil.ExtractCadreJSONInto(string(data), &summary)
	}

	if summary.Verdict == VerdictNeedsFixes {
		if _, err := s.launch(ctx, "fix-surgeon", t.ID, reviewPath, ""); err != nil {
			return fmt.Errorf("scheduler: fix-surgeon (review) for %s: %w", t.ID, err)
		}
	}

	summaryPath := filepath.Join(s.opts.ProgressDir, fmt.Sprintf("review-%s-summary.json", t.ID))
	return writeJSON(summaryPath, summary)
}

// runWholePRReview captures the full base-to-HEAD diff, invokes
// whole-pr-reviewer on it up to MaxWholePRReviewRetries times (retrying
// only a failed agent invocation, not a needs-fixes verdict), and on
// needs-fixes runs a single fix-surgeon cycle with no subsequent
// re-review. A no-op when MaxWholePRReviewRetries <= 0.
func (s *Scheduler) runWholePRReview(ctx context.Context) error {
	if s.opts.MaxWholePRReviewRetries <= 0 {
		return nil
	}

	diff, err := s.git.DiffUnified(ctx, s.opts.BaseCommit)
	if err != nil {
		return fmt.Errorf("scheduler: capturing whole-pr diff: %w", err)
	}
	diffPath := filepath.Join(s.opts.ProgressDir, "whole-pr-diff.patch")
	if err := os.WriteFile(diffPath, []byte(diff), 0o644); err != nil {
		return fmt.Errorf("scheduler: writing whole-pr diff: %w", err)
	}

	reviewPath := filepath.Join(s.opts.ProgressDir, "whole-pr-review.md")
	opts := retry.Options{MaxAttempts: s.opts.MaxWholePRReviewRetries, Description: "whole-pr-reviewer"}
	result := retry.Execute(ctx, opts, func(ctx context.Context, attempt int) (struct{}, error) {
		_, err := s.launch(ctx, "whole-pr-reviewer", "whole-pr", diffPath, reviewPath)
		return struct{}{}, err
	})
	if !result.Success {
		return fmt.Errorf("scheduler: whole-pr-reviewer: %w", result.Err)
	}

	summary := ReviewSummary{Verdict: VerdictPass}
	if data, err := os.ReadFile(reviewPath); err == nil {
		_ = jsonutil.ExtractCadreJSONInto(string(data), &summary)
	}
	if summary.Verdict != VerdictNeedsFixes {
		return nil
	}

	if _, err := s.launch(ctx, "fix-surgeon", "whole-pr", reviewPath, ""); err != nil {
		return fmt.Errorf("scheduler: fix-surgeon (whole-pr): %w", err)
	}
	if _, err := s.git.CommitAll(ctx, "fix: address whole-pr review findings"); err != nil {
		return fmt.Errorf("scheduler: committing whole-pr fix: %w", err)
	}
	return nil
}

func renderTaskPlan(t cadretype.ImplementationTask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Task %s: %s\n\n", t.ID, t.Name)
	sb.WriteString(t.Description)
	sb.WriteString("\n\n## Files\n")
	for _, f := range t.Files {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	sb.WriteString("\n## Acceptance criteria\n")
	for _, c := range t.AcceptanceCriteria {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	return sb.String()
}

// retryOptionsForTask builds the retry.Options for one task's execution.
func (s *Scheduler) retryOptionsForTask(t cadretype.ImplementationTask) retry.Options {
	return retry.Options{
		MaxAttempts: s.opts.MaxRetriesPerTask,
		Description: fmt.Sprintf("task %s (%s)", t.ID, t.Name),
	}
}
