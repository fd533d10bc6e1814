package checkpoint

import (
	"fmt"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

// FleetManager owns <repo>/.cadre/fleet-checkpoint.json. The fleet
// orchestrator writes this file and this file only; it reads issue
// checkpoints via IssueManager.Load by path but never writes them.
type FleetManager struct {
	path string
}

// NewFleetManager creates a manager for the fleet checkpoint at path.
func NewFleetManager(path string) *FleetManager {
	return &FleetManager{path: path}
}

// Load reads the fleet checkpoint from disk, or returns a fresh state for
// projectName if absent.
func (m *FleetManager) Load(projectName string) (*cadretype.FleetCheckpointState, error) {
	state := &cadretype.FleetCheckpointState{
		ProjectName:    projectName,
		Version:        cadretype.CheckpointVersion,
		Issues:         map[int]cadretype.IssueSummary{},
		TokenUsage:     cadretype.FleetTokenUsage{ByIssue: map[int]int{}},
		StartedAt:      time.Now(),
		LastCheckpoint: time.Now(),
	}

	found, err := loadJSON(m.path, state)
	if err != nil {
		return nil, err
	}
	if !found {
		return state, nil
	}
	if state.Version != cadretype.CheckpointVersion {
		return nil, fmt.Errorf("%w: fleet checkpoint has version %d, want %d",
			ErrVersionMismatch, state.Version, cadretype.CheckpointVersion)
	}
	return state, nil
}

// Save persists state atomically, stamping LastCheckpoint.
func (m *FleetManager) Save(state *cadretype.FleetCheckpointState) error {
	state.LastCheckpoint = time.Now()
	return saveJSON(m.path, state)
}

// UpdateIssue records issue's latest summary and running token total, then saves.
func (m *FleetManager) UpdateIssue(state *cadretype.FleetCheckpointState, issueNumber int, summary cadretype.IssueSummary, tokenTotal int) error {
	if state.Issues == nil {
		state.Issues = map[int]cadretype.IssueSummary{}
	}
	state.Issues[issueNumber] = summary

	if state.TokenUsage.ByIssue == nil {
		state.TokenUsage.ByIssue = map[int]int{}
	}
	delta := tokenTotal - state.TokenUsage.ByIssue[issueNumber]
	state.TokenUsage.ByIssue[issueNumber] = tokenTotal
	state.TokenUsage.Total += delta

	return m.Save(state)
}

// MarkResumed increments ResumeCount and saves.
func (m *FleetManager) MarkResumed(state *cadretype.FleetCheckpointState) error {
	state.ResumeCount++
	return m.Save(state)
}
