package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/jsonutil"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
	"github.com/charmbracelet/log"
)

const (
	issueFileName = "issue.json"
	fileTreeName  = "repo-file-tree.txt"
)

// ambiguitySidecar is the shape of the cadre-json block issue-analyst embeds
// in analysis.md.
type ambiguitySidecar struct {
	Ambiguities []string `json:"ambiguities"`
}

// Phase is the phase-1 executor.
type Phase struct {
	launcher    AgentLauncher
	budget      BudgetChecker
	buildRunner *verification.Runner
	buildCmd    verification.NamedCommand
	testCmd     verification.NamedCommand
	opts        Options
	logger      *log.Logger
}

// NewPhase constructs a Phase. buildRunner/buildCmd/testCmd may be nil/zero
// when baseline capture has nothing configured to run.
func NewPhase(l AgentLauncher, budget BudgetChecker, buildRunner *verification.Runner, buildCmd, testCmd verification.NamedCommand, opts Options, logger *log.Logger) *Phase {
	return &Phase{
		launcher:    l,
		budget:      budget,
		buildRunner: buildRunner,
		buildCmd:    buildCmd,
		testCmd:     testCmd,
		opts:        opts,
		logger:      logger,
	}
}

// Run executes analysis and scouting for issue, returning the artifact paths
// the checkpoint and 1→2 gate need.
func (p *Phase) Run(ctx context.Context, issue cadretype.Issue) (Result, error) {
	if err := p.budget.Check(p.opts.IssueNumber); err != nil {
		return Result{}, err
	}

	issuePath := filepath.Join(p.opts.ProgressDir, issueFileName)
	if err := writeJSON(issuePath, issue); err != nil {
		return Result{}, fmt.Errorf("analysis: writing issue.json: %w", err)
	}

	treePath := filepath.Join(p.opts.ProgressDir, fileTreeName)
	if err := writeFileTree(p.opts.WorktreePath, treePath, p.opts.ExcludeGlobs); err != nil {
		return Result{}, fmt.Errorf("analysis: writing repo file tree: %w", err)
	}

	analysisPath := filepath.Join(p.opts.ProgressDir, "analysis.md")
	if _, err := p.launch(ctx, "issue-analyst", issuePath, analysisPath); err != nil {
		return Result{}, fmt.Errorf("analysis: issue-analyst: %w", err)
	}

	scoutPath := filepath.Join(p.opts.ProgressDir, "scout-report.md")
	if _, err := p.launch(ctx, "codebase-scout", treePath, scoutPath); err != nil {
		return Result{}, fmt.Errorf("analysis: codebase-scout: %w", err)
	}

	ambiguityCount := 0
	if data, err := os.ReadFile(analysisPath); err == nil {
		var sidecar ambiguitySidecar
		if jsonErr := jsonutil.ExtractCadreJSONInto(string(data), &sidecar); jsonErr == nil {
			ambiguityCount = len(sidecar.Ambiguities)
		}
	}

	var baselinePath string
	if p.buildRunner != nil {
		path, err := captureBaseline(ctx, p.buildRunner, p.buildCmd, p.testCmd, p.opts.ProgressDir, p.logger)
		if err != nil {
			return Result{}, fmt.Errorf("analysis: capturing baseline: %w", err)
		}
		baselinePath = path
	}

	if err := p.budget.Check(p.opts.IssueNumber); err != nil {
		return Result{}, err
	}

	return Result{
		AnalysisPath:    analysisPath,
		ScoutReportPath: scoutPath,
		BaselinePath:    baselinePath,
		AmbiguityCount:  ambiguityCount,
	}, nil
}

func (p *Phase) launch(ctx context.Context, agent, contextPath, outputPath string) (*launcher.AgentResult, error) {
	inv := launcher.Invocation{
		Agent:       agent,
		IssueNumber: p.opts.IssueNumber,
		Phase:       1,
		ContextPath: contextPath,
		OutputPath:  outputPath,
		Timeout:     p.opts.AgentTimeout,
	}
	result, err := p.launcher.Launch(ctx, inv, p.opts.WorktreePath)
	if err == nil && result != nil && !result.Success {
		err = fmt.Errorf("agent %s did not succeed: %s", agent, result.Error)
	}
	return result, err
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
