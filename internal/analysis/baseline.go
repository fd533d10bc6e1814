package analysis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
	"github.com/charmbracelet/log"
)

const baselineFileName = "baseline-results.json"

// baselineResult is the on-disk shape of baseline-results.json.
type baselineResult struct {
	BuildExitCode int      `json:"buildExitCode"`
	TestExitCode  int      `json:"testExitCode"`
	BuildFailures []string `json:"buildFailures"`
	TestFailures  []string `json:"testFailures"`
}

// failureLinePatterns match the failure markers later phases grep for:
// Go test harness FAIL lines, generic "error: " prefixes, and the ✗/×
// glyphs some JS/Rust test runners emit.
var failureLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^.*\bFAIL\b.*$`),
	regexp.MustCompile(`(?mi)^.*\berror:\s.*$`),
	regexp.MustCompile(`(?m)^.*[✗×].*$`),
}

// captureBaseline runs buildCmd and testCmd (either may be the zero value,
// meaning "not configured") and writes baseline-results.json. A command that
// errors (rather than simply exiting non-zero) is downgraded to a logged
// warning; its exit code and failures are recorded as zero/empty so a
// missing baseline never aborts the phase.
func captureBaseline(ctx context.Context, runner *verification.Runner, buildCmd, testCmd verification.NamedCommand, progressDir string, logger *log.Logger) (string, error) {
	result := baselineResult{
		BuildFailures: []string{},
		TestFailures:  []string{},
	}

	if buildCmd.Command != "" {
		res, err := runner.RunOne(ctx, buildCmd)
		if err != nil {
			warn(logger, "baseline build command errored", err)
		} else {
			result.BuildExitCode = res.ExitCode
			result.BuildFailures = extractFailureLines(res.Stdout + "\n" + res.Stderr)
		}
	}

	if testCmd.Command != "" {
		res, err := runner.RunOne(ctx, testCmd)
		if err != nil {
			warn(logger, "baseline test command errored", err)
		} else {
			result.TestExitCode = res.ExitCode
			result.TestFailures = extractFailureLines(res.Stdout + "\n" + res.Stderr)
		}
	}

	path := filepath.Join(progressDir, baselineFileName)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// extractFailureLines greps output for known failure markers and returns the
// deduplicated, order-preserving set of matching lines.
func extractFailureLines(output string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pat := range failureLinePatterns {
		for _, line := range pat.FindAllString(output, -1) {
			if !seen[line] {
				seen[line] = true
				out = append(out, line)
			}
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func warn(logger *log.Logger, msg string, err error) {
	if logger != nil {
		logger.Warn(msg, "error", err)
	}
}
