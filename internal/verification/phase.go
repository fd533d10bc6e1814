package verification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/config"
	"github.com/AbdelazizMoustafa10m/cadre/internal/gate"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
)

// AgentLauncher is the subset of launcher.Launcher the phase needs.
type AgentLauncher interface {
	Launch(ctx context.Context, inv launcher.Invocation, worktreePath string) (*launcher.AgentResult, error)
}

// GitCommitter is the subset of gitrepo.Client the phase needs to commit
// any residual changes left by the fix-surgeon loop.
type GitCommitter interface {
	CommitAll(ctx context.Context, message string) (bool, error)
}

const (
	installTimeout = 300 * time.Second
	buildTimeout   = 300 * time.Second
	testTimeout    = 120 * time.Second
	lintTimeout    = 120 * time.Second
)

// Phase runs the four configured shell commands, and on a build or test
// failure invokes fix-surgeon up to maxFixRounds times, re-running only the
// failing command after each attempt.
type Phase struct {
	runner       *Runner
	launcher     AgentLauncher
	git          GitCommitter
	commands     config.CommandsConfig
	maxFixRounds int
	issueNumber  int
	worktreePath string
	progressDir  string
}

// NewPhase constructs the phase 4 executor.
func NewPhase(runner *Runner, l AgentLauncher, git GitCommitter, commands config.CommandsConfig, maxFixRounds int, issueNumber int, worktreePath, progressDir string) *Phase {
	return &Phase{
		runner:       runner,
		launcher:     l,
		git:          git,
		commands:     commands,
		maxFixRounds: maxFixRounds,
		issueNumber:  issueNumber,
		worktreePath: worktreePath,
		progressDir:  progressDir,
	}
}

func (p *Phase) namedCommands() []NamedCommand {
	return []NamedCommand{
		{Name: "install", Command: p.commands.Install.Command, Timeout: timeoutOrDefault(p.commands.Install.Timeout, installTimeout)},
		{Name: "build", Command: p.commands.Build.Command, Timeout: timeoutOrDefault(p.commands.Build.Timeout, buildTimeout)},
		{Name: "test", Command: p.commands.Test.Command, Timeout: timeoutOrDefault(p.commands.Test.Timeout, testTimeout)},
		{Name: "lint", Command: p.commands.Lint.Command, Timeout: timeoutOrDefault(p.commands.Lint.Timeout, lintTimeout)},
	}
}

func timeoutOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Run executes the verification sequence, the fix-surgeon loop on build/test
// failures, writes the markdown report and a failure sidecar when a command
// is still failing, commits any residual changes, and returns the
// IntegrationSummary the 4→5 gate consumes.
func (p *Phase) Run(ctx context.Context) (gate.IntegrationSummary, Report, error) {
	cmds := p.namedCommands()

	results, err := p.runner.RunAll(ctx, cmds)
	if err != nil {
		return gate.IntegrationSummary{}, Report{}, err
	}
	report := NewReport(results)

	for _, fixable := range []string{"build", "test"} {
		report, err = p.fixLoop(ctx, fixable, cmds, report)
		if err != nil {
			return gate.IntegrationSummary{}, report, err
		}
	}

	if p.git != nil {
		if _, err := p.git.CommitAll(ctx, fmt.Sprintf("fix: integration verification residuals (issue #%d)", p.issueNumber)); err != nil {
			return gate.IntegrationSummary{}, report, fmt.Errorf("verification: committing residual changes: %w", err)
		}
	}

	if err := p.writeReport(report); err != nil {
		return gate.IntegrationSummary{}, report, err
	}

	return gate.IntegrationSummary{
		BuildConfigured: report.Configured("build"),
		BuildPassed:     report.CommandPassed("build"),
		TestConfigured:  report.Configured("test"),
		TestPassed:      report.CommandPassed("test"),
	}, report, nil
}

// fixLoop re-runs name's command via fix-surgeon up to maxFixRounds times
// while it keeps failing, replacing its result in report each round.
func (p *Phase) fixLoop(ctx context.Context, name string, cmds []NamedCommand, report Report) (Report, error) {
	result, ok := report.byName(name)
	if !ok || result.Passed {
		return report, nil
	}

	var cmd NamedCommand
	for _, c := range cmds {
		if c.Name == name {
			cmd = c
		}
	}

	for attempt := 1; attempt <= p.maxFixRounds; attempt++ {
		if err := p.writeFailureSidecar(name, result); err != nil {
			return report, err
		}

		issueType := name
		if name == "test" {
			issueType = "test-failure"
		}
		inv := launcher.Invocation{
			Agent:       "fix-surgeon",
			IssueNumber: p.issueNumber,
			Phase:       4,
			ContextPath: p.failureSidecarPath(name),
			OutputPath:  filepath.Join(p.progressDir, fmt.Sprintf("fix-%s-attempt-%d.md", name, attempt)),
		}
		if p.launcher != nil {
			if _, err := p.launcher.Launch(ctx, inv, p.worktreePath); err != nil {
				return report, fmt.Errorf("verification: invoking fix-surgeon (%s): %w", issueType, err)
			}
		}

		rerun, err := p.runner.RunOne(ctx, cmd)
		if err != nil {
			return report, err
		}
		report = replaceResult(report, *rerun)
		if rerun.Passed {
			break
		}
		result = *rerun
	}

	return report, nil
}

func replaceResult(report Report, updated CommandResult) Report {
	results := make([]CommandResult, len(report.Results))
	copy(results, report.Results)
	for i, r := range results {
		if r.Name == updated.Name {
			results[i] = updated
		}
	}
	return NewReport(results)
}

func (p *Phase) failureSidecarPath(name string) string {
	return filepath.Join(p.progressDir, fmt.Sprintf("%s-failure.txt", name))
}

func (p *Phase) writeFailureSidecar(name string, result CommandResult) error {
	content := result.Stdout + "\n" + result.Stderr
	return os.WriteFile(p.failureSidecarPath(name), []byte(content), 0o644)
}

func (p *Phase) writeReport(report Report) error {
	return os.WriteFile(filepath.Join(p.progressDir, "integration-report.md"), []byte(report.FormatMarkdown()), 0o644)
}
