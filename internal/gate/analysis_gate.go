package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

const (
	analysisFileName = "analysis.md"
	scoutFileName    = "scout-report.md"
)

// requiredAnalysisSections names the markdown headings issue-analyst is
// expected to produce. Missing ones are warnings, not hard failures: a
// thin analysis is still usable input for planning.
var requiredAnalysisSections = []string{"## Findings", "## Ambiguities"}

// AnalysisGate validates the 1→2 transition: analysis.md exists with its
// expected sections, and scout-report.md exists.
func AnalysisGate(ctx context.Context, gctx Context) (cadretype.GateResult, error) {
	result := cadretype.GateResult{Errors: []string{}, Warnings: []string{}}

	analysisPath := filepath.Join(gctx.ProgressDir, analysisFileName)
	data, err := os.ReadFile(analysisPath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s is missing or unreadable: %v", analysisFileName, err))
	} else {
		content := string(data)
		if strings.TrimSpace(content) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s is empty", analysisFileName))
		}
		for _, section := range requiredAnalysisSections {
			if !strings.Contains(content, section) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s is missing section %q", analysisFileName, section))
			}
		}
	}

	scoutPath := filepath.Join(gctx.ProgressDir, scoutFileName)
	if _, err := os.Stat(scoutPath); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s is missing: %v", scoutFileName, err))
	}

	return finalizeStatus(result), nil
}

// AmbiguityGate validates the phase-1 ambiguity sidecar check: when
// HaltOnAmbiguity is set and the ambiguity count crosses the threshold, the
// gate fails so the pipeline halts rather than proceeding into planning with
// unresolved ambiguities. Its result is merged into the 1→2 gate's result.
func AmbiguityGate(ctx context.Context, gctx Context) (cadretype.GateResult, error) {
	result := cadretype.GateResult{Errors: []string{}, Warnings: []string{}}

	if gctx.AmbiguityCount > gctx.AmbiguityThreshold {
		msg := fmt.Sprintf("ambiguity count %d exceeds threshold %d", gctx.AmbiguityCount, gctx.AmbiguityThreshold)
		if gctx.HaltOnAmbiguity {
			result.Errors = append(result.Errors, msg)
		} else {
			result.Warnings = append(result.Warnings, msg)
		}
	}

	return finalizeStatus(result), nil
}

// finalizeStatus derives Status from the accumulated Errors/Warnings using
// the same merge rule gates share: fail if any error, warn if any warning,
// else pass.
func finalizeStatus(r cadretype.GateResult) cadretype.GateResult {
	return cadretype.MergeGateResults(r)
}
