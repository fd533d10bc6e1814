package issueorch

import (
	"context"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
)

// recordingLauncher wraps an AgentLauncher so every invocation's reported
// token usage reaches the budget guard and the checkpoint's running totals,
// without the analysis/planning/scheduler/verification/prcomposition
// packages having to know about budget or checkpoint at all.
type recordingLauncher struct {
	inner      AgentLauncher
	budget     BudgetChecker
	checkpoint Checkpoint
	state      *cadretype.CheckpointState
}

func newRecordingLauncher(inner AgentLauncher, budget BudgetChecker, checkpoint Checkpoint, state *cadretype.CheckpointState) *recordingLauncher {
	return &recordingLauncher{inner: inner, budget: budget, checkpoint: checkpoint, state: state}
}

func (r *recordingLauncher) Launch(ctx context.Context, inv launcher.Invocation, worktreePath string) (*launcher.AgentResult, error) {
	result, err := r.inner.Launch(ctx, inv, worktreePath)
	if result != nil && result.TokenUsage > 0 {
		r.budget.Record(inv.IssueNumber, inv.Agent, inv.Phase, result.TokenUsage)
		_ = r.checkpoint.RecordTokenUsage(r.state, inv.Phase, inv.Agent, result.TokenUsage)
	}
	return result, err
}
