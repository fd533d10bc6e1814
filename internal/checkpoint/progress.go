package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

var phaseNames = map[int]string{
	1: "Analysis & Scouting",
	2: "Planning",
	3: "Implementation",
	4: "Integration Verification",
	5: "PR Composition",
}

// RenderProgress builds the human-readable progress.md body for an issue's
// checkpoint state.
func RenderProgress(state *cadretype.CheckpointState) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Issue #%d progress\n\n", state.IssueNumber)
	fmt.Fprintf(&sb, "Current phase: %d (%s)\n\n", state.CurrentPhase, phaseNames[state.CurrentPhase])

	sb.WriteString("## Phases\n\n")
	for phase := 1; phase <= 5; phase++ {
		mark := " "
		if state.HasCompletedPhase(phase) {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] %d. %s\n", mark, phase, phaseNames[phase])
	}
	sb.WriteString("\n")

	if len(state.CompletedTasks) > 0 || len(state.BlockedTasks) > 0 || state.CurrentTask != "" {
		sb.WriteString("## Tasks\n\n")
		if state.CurrentTask != "" {
			fmt.Fprintf(&sb, "In progress: %s\n", state.CurrentTask)
		}
		fmt.Fprintf(&sb, "Completed: %s\n", joinOrNone(state.CompletedTasks))
		fmt.Fprintf(&sb, "Blocked: %s\n", joinOrNone(state.BlockedTasks))
		sb.WriteString("\n")
	}

	sb.WriteString("## Token usage\n\n")
	fmt.Fprintf(&sb, "Total: %d\n", state.TokenUsage.Total)
	for _, phase := range sortedIntKeys(state.TokenUsage.ByPhase) {
		fmt.Fprintf(&sb, "- phase %d: %d\n", phase, state.TokenUsage.ByPhase[phase])
	}
	sb.WriteString("\n")

	if state.BudgetExceeded {
		sb.WriteString("**Budget exceeded.**\n\n")
	}

	fmt.Fprintf(&sb, "Resumed %d time(s). Last checkpoint: %s\n", state.ResumeCount, state.LastCheckpoint.Format("2006-01-02T15:04:05Z07:00"))

	return sb.String()
}

// WriteProgress renders and writes progress.md alongside checkpoint.json in
// progressDir. Failures here are non-critical: progress.md is a convenience
// artifact, not the resume source of truth (checkpoint.json is).
func WriteProgress(progressDir string, state *cadretype.CheckpointState) error {
	path := filepath.Join(progressDir, "progress.md")
	return os.WriteFile(path, []byte(RenderProgress(state)), 0o644)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func sortedIntKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
