// Package cadretype holds the shared data model for the orchestration core:
// issues, worktrees, tasks, phase/gate results, and checkpoint records.
package cadretype

import "time"

// IssueStatus is the terminal or in-flight status of a single issue's run.
type IssueStatus string

const (
	IssueNotStarted       IssueStatus = "not-started"
	IssueInProgress       IssueStatus = "in-progress"
	IssueCompleted        IssueStatus = "completed"
	IssueFailed           IssueStatus = "failed"
	IssueBlocked          IssueStatus = "blocked"
	IssueBudgetExceeded   IssueStatus = "budget-exceeded"
	IssueCodeCompleteNoPR IssueStatus = "code-complete-no-pr"
)

// IsTerminal reports whether s ends a fleet wave's wait for this issue.
func (s IssueStatus) IsTerminal() bool {
	switch s {
	case IssueCompleted, IssueFailed, IssueBlocked, IssueBudgetExceeded, IssueCodeCompleteNoPR:
		return true
	default:
		return false
	}
}

// Comment is a single issue-thread comment from the platform provider.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Issue is an immutable snapshot of a platform issue for the duration of a run.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"` // "open" | "closed"
	Labels    []string  `json:"labels"`
	Assignees []string  `json:"assignees"`
	Comments  []Comment `json:"comments"`
}

// Worktree is the isolated working directory owned exclusively by one
// issue's orchestrator for the run's duration.
type Worktree struct {
	Path             string   `json:"path"`
	Branch           string   `json:"branch"`
	BaseCommit       string   `json:"baseCommit"`
	IssueNumber      int      `json:"issueNumber"`
	SyncedAgentFiles []string `json:"syncedAgentFiles"`
}

// TaskComplexity classifies the estimated difficulty of an ImplementationTask.
type TaskComplexity string

const (
	ComplexitySimple   TaskComplexity = "simple"
	ComplexityModerate TaskComplexity = "moderate"
	ComplexityComplex  TaskComplexity = "complex"
)

// ImplementationTask is one node of the phase-3 task DAG, produced by the
// planning phase and consumed by the task scheduler.
type ImplementationTask struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Files              []string       `json:"files"`
	Dependencies       []string       `json:"dependencies"`
	Complexity         TaskComplexity `json:"complexity"`
	AcceptanceCriteria []string       `json:"acceptanceCriteria"`
}

// TaskQueueState is the scheduling status of a single task within phase 3.
type TaskQueueState string

const (
	TaskPending    TaskQueueState = "pending"
	TaskReady      TaskQueueState = "ready"
	TaskInProgress TaskQueueState = "in-progress"
	TaskCompleted  TaskQueueState = "completed"
	TaskBlocked    TaskQueueState = "blocked"
)

// PhaseResult is the outcome of executing one of the five fixed phases.
type PhaseResult struct {
	Phase      int           `json:"phase"`
	PhaseName  string        `json:"phaseName"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration"`
	TokenUsage int           `json:"tokenUsage"`
	OutputPath string        `json:"outputPath,omitempty"`
	Error      string        `json:"error,omitempty"`
	GateResult *GateResult   `json:"gateResult,omitempty"`
}

// GateStatus is the verdict of a phase gate.
type GateStatus string

const (
	GatePass GateStatus = "pass"
	GateWarn GateStatus = "warn"
	GateFail GateStatus = "fail"
)

// GateResult is the outcome of a pure phase-gate validator.
type GateResult struct {
	Status   GateStatus `json:"status"`
	Errors   []string   `json:"errors"`
	Warnings []string   `json:"warnings"`
}

// MergeGateResults unions errors and warnings from all results and derives
// status: fail if any errors, warn if any warnings (and no errors), else pass.
func MergeGateResults(results ...GateResult) GateResult {
	merged := GateResult{Errors: []string{}, Warnings: []string{}}
	for _, r := range results {
		merged.Errors = append(merged.Errors, r.Errors...)
		merged.Warnings = append(merged.Warnings, r.Warnings...)
	}
	switch {
	case len(merged.Errors) > 0:
		merged.Status = GateFail
	case len(merged.Warnings) > 0:
		merged.Status = GateWarn
	default:
		merged.Status = GatePass
	}
	return merged
}

// TokenUsage is a running total broken down by phase and agent.
type TokenUsage struct {
	Total   int            `json:"total"`
	ByPhase map[int]int    `json:"byPhase"`
	ByAgent map[string]int `json:"byAgent"`
}

// CheckpointVersion is the current on-disk schema version for CheckpointState.
const CheckpointVersion = 1

// CheckpointState is the durable, exclusively-owned-by-its-issue-orchestrator
// record of one issue's pipeline progress.
type CheckpointState struct {
	IssueNumber     int                `json:"issueNumber"`
	Version         int                `json:"version"`
	CurrentPhase    int                `json:"currentPhase"`
	CurrentTask     string             `json:"currentTask,omitempty"`
	CompletedPhases []int              `json:"completedPhases"`
	CompletedTasks  []string           `json:"completedTasks"`
	FailedTasks     []string           `json:"failedTasks"`
	BlockedTasks    []string           `json:"blockedTasks"`
	PhaseOutputs    map[int]string     `json:"phaseOutputs"`
	// Tasks is the phase-2 task DAG, persisted so phase 3 can resume without
	// re-invoking implementation-planner.
	Tasks          []ImplementationTask `json:"tasks,omitempty"`
	TokenUsage     TokenUsage           `json:"tokenUsage"`
	WorktreePath   string               `json:"worktreePath"`
	BranchName     string               `json:"branchName"`
	BaseCommit     string               `json:"baseCommit"`
	GateResults    map[int]GateResult   `json:"gateResults"`
	StartedAt      time.Time            `json:"startedAt"`
	LastCheckpoint time.Time            `json:"lastCheckpoint"`
	ResumeCount    int                  `json:"resumeCount"`
	BudgetExceeded bool                 `json:"budgetExceeded"`
}

// HasCompletedPhase reports whether phase id is in CompletedPhases.
func (c *CheckpointState) HasCompletedPhase(id int) bool {
	for _, p := range c.CompletedPhases {
		if p == id {
			return true
		}
	}
	return false
}

// HasCompletedTask reports whether taskID is in CompletedTasks.
func (c *CheckpointState) HasCompletedTask(taskID string) bool {
	for _, t := range c.CompletedTasks {
		if t == taskID {
			return true
		}
	}
	return false
}

// HasBlockedTask reports whether taskID is in BlockedTasks.
func (c *CheckpointState) HasBlockedTask(taskID string) bool {
	for _, t := range c.BlockedTasks {
		if t == taskID {
			return true
		}
	}
	return false
}

// IssueSummary is the fleet checkpoint's per-issue view.
type IssueSummary struct {
	Status       IssueStatus `json:"status"`
	IssueTitle   string      `json:"issueTitle"`
	WorktreePath string      `json:"worktreePath"`
	BranchName   string      `json:"branchName"`
	LastPhase    int         `json:"lastPhase"`
	PRNumber     int         `json:"prNumber,omitempty"`
}

// FleetTokenUsage is the fleet-wide running total broken down by issue.
type FleetTokenUsage struct {
	Total   int         `json:"total"`
	ByIssue map[int]int `json:"byIssue"`
}

// FleetCheckpointState is the fleet orchestrator's exclusively-owned,
// fleet-wide durable record. It reads, never writes, issue checkpoints.
type FleetCheckpointState struct {
	ProjectName    string               `json:"projectName"`
	Version        int                  `json:"version"`
	Issues         map[int]IssueSummary `json:"issues"`
	TokenUsage     FleetTokenUsage      `json:"tokenUsage"`
	StartedAt      time.Time            `json:"startedAt"`
	LastCheckpoint time.Time            `json:"lastCheckpoint"`
	ResumeCount    int                  `json:"resumeCount"`
}
