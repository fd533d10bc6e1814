// Package issueorch drives one issue through the fixed five-phase pipeline
// (analysis, planning, implementation, integration verification, PR
// composition), gating each transition, checkpointing after every phase and
// task, and resuming from wherever a prior run left off.
package issueorch

import (
	"context"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
)

// AgentLauncher is the subset of launcher.Launcher the orchestrator needs.
// It is threaded into every phase executor unwrapped by a recordingLauncher
// so every agent invocation's token usage reaches the budget guard and the
// checkpoint without each phase package knowing about either.
type AgentLauncher interface {
	Launch(ctx context.Context, inv launcher.Invocation, worktreePath string) (*launcher.AgentResult, error)
}

// Git is the subset of gitrepo.GitClient the orchestrator and the phase/gate
// packages it drives need between them.
type Git interface {
	CreateBranch(ctx context.Context, name, base string) error
	Checkout(ctx context.Context, branch string) error
	BranchExists(ctx context.Context, branch string) (bool, error)
	HeadCommit(ctx context.Context) (string, error)
	CommitAll(ctx context.Context, message string) (bool, error)
	CommitsSince(ctx context.Context, base string) (int, error)
	HasUnresolvedMergeMarkers(ctx context.Context) (bool, error)
	DiffUnified(ctx context.Context, base string) (string, error)
	SquashTo(ctx context.Context, base, message string) error
	Push(ctx context.Context, remote string, setUpstream bool) error
	CurrentBranch(ctx context.Context) (string, error)
}

// BudgetChecker is the subset of budget.Guard the orchestrator needs.
type BudgetChecker interface {
	Check(issue int) error
	Record(issue int, agent string, phase int, n int)
}

// Checkpoint is the subset of checkpoint.IssueManager the orchestrator
// needs. *checkpoint.IssueManager satisfies this, and also satisfies the
// narrower Checkpoint interfaces the scheduler and verification packages
// declare for themselves.
type Checkpoint interface {
	Load(issueNumber int) (*cadretype.CheckpointState, error)
	StartPhase(state *cadretype.CheckpointState, phase int) error
	CompletePhase(state *cadretype.CheckpointState, phase int, outputPath string) error
	StartTask(state *cadretype.CheckpointState, taskID string) error
	CompleteTask(state *cadretype.CheckpointState, taskID string) error
	BlockTask(state *cadretype.CheckpointState, taskID string) error
	FailTask(state *cadretype.CheckpointState, taskID string) error
	RecordTokenUsage(state *cadretype.CheckpointState, phase int, agent string, n int) error
	RecordGateResult(state *cadretype.CheckpointState, phase int, result cadretype.GateResult) error
	SetWorktreeInfo(state *cadretype.CheckpointState, worktreePath, branchName, baseCommit string) error
	SetBudgetExceeded(state *cadretype.CheckpointState) error
	MarkResumed(state *cadretype.CheckpointState) error
}

// Options configures a single issue run.
type Options struct {
	IssueNumber  int
	WorktreePath string
	ProgressDir  string
	BranchName   string
	BaseBranch   string // PR target branch, defaults to "main"

	AgentTimeout time.Duration

	HaltOnAmbiguity    bool
	AmbiguityThreshold int

	MaxParallelAgents       int
	MaxRetriesPerTask       int
	MaxBuildFixRounds       int
	MaxFixRounds            int // phase-4 fix-surgeon loop
	MaxWholePRReviewRetries int
	PerTaskBuildCheck       bool

	SquashBeforePR bool
	Draft          bool
	LinkIssue      bool

	CommitPerPhase bool
	TypeByPhase    map[int]string // commit type per phase, e.g. 1,2→"chore" 3→"feat" 4→"fix" 5→"chore"

	ExcludeGlobs []string
}

// Result is the final outcome of one issue's run.
type Result struct {
	Status   cadretype.IssueStatus
	Phases   []cadretype.PhaseResult
	PR       *platform.PullRequest
	Duration time.Duration
}
