package checkpoint

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

// IssueFileName is the checkpoint file name within a progress directory.
const IssueFileName = "checkpoint.json"

// IssueManager owns the on-disk checkpoint.json for a single issue. It is
// the exclusive writer: a CheckpointState belongs to the issue orchestrator
// running that issue.
type IssueManager struct {
	mu   sync.Mutex
	path string
}

// NewIssueManager creates a manager for the checkpoint file under
// progressDir (typically <repo>/.cadre/issues/<n>, under the repository
// root rather than inside the issue's worktree).
func NewIssueManager(progressDir string) *IssueManager {
	return &IssueManager{path: filepath.Join(progressDir, IssueFileName)}
}

// Load reads the checkpoint from disk. A missing file yields a fresh state
// for issueNumber, not an error. A version mismatch is fatal: the caller
// should not attempt to resume from an incompatible schema.
func (m *IssueManager) Load(issueNumber int) (*cadretype.CheckpointState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := &cadretype.CheckpointState{
		IssueNumber:     issueNumber,
		Version:         cadretype.CheckpointVersion,
		CompletedPhases: []int{},
		CompletedTasks:  []string{},
		FailedTasks:     []string{},
		BlockedTasks:    []string{},
		PhaseOutputs:    map[int]string{},
		GateResults:     map[int]cadretype.GateResult{},
		TokenUsage:      cadretype.TokenUsage{ByPhase: map[int]int{}, ByAgent: map[string]int{}},
		StartedAt:       time.Now(),
		LastCheckpoint:  time.Now(),
	}

	found, err := loadJSON(m.path, state)
	if err != nil {
		return nil, err
	}
	if !found {
		return state, nil
	}
	if state.Version != cadretype.CheckpointVersion {
		return nil, fmt.Errorf("%w: checkpoint for issue #%d has version %d, want %d",
			ErrVersionMismatch, issueNumber, state.Version, cadretype.CheckpointVersion)
	}
	return state, nil
}

// Save persists state atomically, stamping LastCheckpoint.
func (m *IssueManager) Save(state *cadretype.CheckpointState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.LastCheckpoint = time.Now()
	return saveJSON(m.path, state)
}

// StartPhase records the current phase and saves.
func (m *IssueManager) StartPhase(state *cadretype.CheckpointState, phase int) error {
	state.CurrentPhase = phase
	return m.Save(state)
}

// CompletePhase marks phase as completed, records its output path, and saves.
func (m *IssueManager) CompletePhase(state *cadretype.CheckpointState, phase int, outputPath string) error {
	if !state.HasCompletedPhase(phase) {
		state.CompletedPhases = append(state.CompletedPhases, phase)
	}
	if state.PhaseOutputs == nil {
		state.PhaseOutputs = map[int]string{}
	}
	if outputPath != "" {
		state.PhaseOutputs[phase] = outputPath
	}
	return m.Save(state)
}

// StartTask records the in-progress task and saves.
func (m *IssueManager) StartTask(state *cadretype.CheckpointState, taskID string) error {
	state.CurrentTask = taskID
	return m.Save(state)
}

// CompleteTask marks taskID completed, clears CurrentTask if it matches, and saves.
func (m *IssueManager) CompleteTask(state *cadretype.CheckpointState, taskID string) error {
	if !state.HasCompletedTask(taskID) {
		state.CompletedTasks = append(state.CompletedTasks, taskID)
	}
	if state.CurrentTask == taskID {
		state.CurrentTask = ""
	}
	return m.Save(state)
}

// BlockTask marks taskID blocked (terminal for the run) and saves.
func (m *IssueManager) BlockTask(state *cadretype.CheckpointState, taskID string) error {
	if !state.HasBlockedTask(taskID) {
		state.BlockedTasks = append(state.BlockedTasks, taskID)
	}
	if state.CurrentTask == taskID {
		state.CurrentTask = ""
	}
	return m.Save(state)
}

// FailTask records a non-terminal task failure (e.g. one retry attempt) and saves.
func (m *IssueManager) FailTask(state *cadretype.CheckpointState, taskID string) error {
	state.FailedTasks = append(state.FailedTasks, taskID)
	return m.Save(state)
}

// RecordTokenUsage adds n tokens to the checkpoint's running totals and saves.
func (m *IssueManager) RecordTokenUsage(state *cadretype.CheckpointState, phase int, agent string, n int) error {
	if n <= 0 {
		return nil
	}
	state.TokenUsage.Total += n
	if state.TokenUsage.ByPhase == nil {
		state.TokenUsage.ByPhase = map[int]int{}
	}
	if state.TokenUsage.ByAgent == nil {
		state.TokenUsage.ByAgent = map[string]int{}
	}
	state.TokenUsage.ByPhase[phase] += n
	state.TokenUsage.ByAgent[agent] += n
	return m.Save(state)
}

// RecordGateResult stores phase's gate result and saves.
func (m *IssueManager) RecordGateResult(state *cadretype.CheckpointState, phase int, result cadretype.GateResult) error {
	if state.GateResults == nil {
		state.GateResults = map[int]cadretype.GateResult{}
	}
	state.GateResults[phase] = result
	return m.Save(state)
}

// SetWorktreeInfo records the worktree/branch/base-commit triple and saves.
func (m *IssueManager) SetWorktreeInfo(state *cadretype.CheckpointState, worktreePath, branchName, baseCommit string) error {
	state.WorktreePath = worktreePath
	state.BranchName = branchName
	state.BaseCommit = baseCommit
	return m.Save(state)
}

// SetBudgetExceeded flips the budget-exceeded flag and saves.
func (m *IssueManager) SetBudgetExceeded(state *cadretype.CheckpointState) error {
	state.BudgetExceeded = true
	return m.Save(state)
}

// MarkResumed increments ResumeCount and saves; called once when an issue
// orchestrator re-enters a checkpoint with prior progress.
func (m *IssueManager) MarkResumed(state *cadretype.CheckpointState) error {
	state.ResumeCount++
	return m.Save(state)
}
