package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/cadre/internal/budget"
	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/checkpoint"
	"github.com/AbdelazizMoustafa10m/cadre/internal/config"
	"github.com/AbdelazizMoustafa10m/cadre/internal/fleetorch"
	"github.com/AbdelazizMoustafa10m/cadre/internal/gitrepo"
	"github.com/AbdelazizMoustafa10m/cadre/internal/issueorch"
	"github.com/AbdelazizMoustafa10m/cadre/internal/launcher"
	"github.com/AbdelazizMoustafa10m/cadre/internal/logging"
	"github.com/AbdelazizMoustafa10m/cadre/internal/notify"
	"github.com/AbdelazizMoustafa10m/cadre/internal/platform"
	"github.com/AbdelazizMoustafa10m/cadre/internal/verification"
)

type runFlags struct {
	Issues      []int
	Depends     []string
	Base        string
	WorktreeDir string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a set of issues through the five-phase pipeline",
		Long: `run fetches the given issues from the configured platform, builds
their dependency DAG from --depends, schedules them into concurrency waves,
and drives each one through analysis, planning, implementation, integration
verification, and PR composition.`,
		Example: `  # Run a single issue
  cadre run --issue 42

  # Run three issues where 12 depends on 10 and 11
  cadre run --issue 10 --issue 11 --issue 12 --depends 12:10,11`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFleet(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntSliceVar(&flags.Issues, "issue", nil, "Issue number to run (repeatable; required)")
	cmd.Flags().StringArrayVar(&flags.Depends, "depends", nil, `Dependency entry "issue:dep[,dep...]" (repeatable)`)
	cmd.Flags().StringVar(&flags.Base, "base", "main", "Base branch for issue worktrees and PRs")
	cmd.Flags().StringVar(&flags.WorktreeDir, "worktree-dir", ".cadre/worktrees", "Root directory for per-issue git worktrees")
	_ = cmd.MarkFlagRequired("issue")

	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

// parseDepends turns "issue:dep,dep" entries into the adjacency map
// fleetorch.Orchestrator.Run expects.
func parseDepends(entries []string) (map[int][]int, error) {
	deps := make(map[int][]int, len(entries))
	for _, entry := range entries {
		issuePart, depPart, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("malformed --depends entry %q, want issue:dep[,dep...]", entry)
		}
		issue, err := strconv.Atoi(strings.TrimSpace(issuePart))
		if err != nil {
			return nil, fmt.Errorf("malformed --depends entry %q: %w", entry, err)
		}
		for _, depStr := range strings.Split(depPart, ",") {
			depStr = strings.TrimSpace(depStr)
			if depStr == "" {
				continue
			}
			dep, err := strconv.Atoi(depStr)
			if err != nil {
				return nil, fmt.Errorf("malformed --depends entry %q: %w", entry, err)
			}
			deps[issue] = append(deps[issue], dep)
		}
	}
	return deps, nil
}

// logSink relays notify.Event to a *log.Logger, letting a fleet run's
// progress be observed without a UI.
type logSink struct {
	logger *log.Logger
}

func (s *logSink) Notify(ev notify.Event) {
	s.logger.Info(string(ev.Type), "issue", ev.Issue, "phase", ev.Phase, "message", ev.Message)
}

func runFleet(ctx context.Context, flags runFlags) error {
	logger := logging.New("cadre")

	deps, err := parseDepends(flags.Depends)
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	cfg, err := loadRuntimeConfig(workDir)
	if err != nil {
		return err
	}

	gitClient, err := gitrepo.NewGitClient(workDir)
	if err != nil {
		return fmt.Errorf("opening git repository at %s: %w", workDir, err)
	}

	provider := platform.NewGHProvider(workDir, logger)
	if err := provider.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to platform: %w", err)
	}

	issues := make([]cadretype.Issue, 0, len(flags.Issues))
	for _, number := range flags.Issues {
		issue, err := provider.GetIssue(ctx, number)
		if err != nil {
			return fmt.Errorf("fetching issue #%d: %w", number, err)
		}
		issues = append(issues, issue)
	}

	launch := launcher.New(cfg.Agents, launcher.WithLogDir(filepath.Join(workDir, cfg.Project.LogDir)), launcher.WithLogger(logger))
	guard := budget.NewGuard(budget.NewTracker(), cfg.Budget.TokenBudget, nil)

	worktreeRoot := filepath.Join(workDir, flags.WorktreeDir)
	progressRoot := filepath.Join(workDir, cfg.Project.ProgressDir)
	worktrees := fleetorch.NewGitWorktreeProvider(gitClient, worktreeRoot, progressRoot, cfg.Project.BranchTemplate, flags.Base)

	fleetNotifier := notify.NewManager(&logSink{logger: logger})
	fleetCheckpointPath := filepath.Join(workDir, ".cadre", "fleet-checkpoint.json")
	fleetCheckpoint := checkpoint.NewFleetManager(fleetCheckpointPath)

	factory := func(issue cadretype.Issue, wt fleetorch.ProvisionedWorktree, issueNotifier *notify.Manager) (fleetorch.IssueRunner, error) {
		issueGit, err := gitrepo.NewGitClient(wt.Path)
		if err != nil {
			return nil, fmt.Errorf("opening worktree git repository for issue #%d: %w", issue.Number, err)
		}

		opts := issueorch.Options{
			IssueNumber:             issue.Number,
			WorktreePath:            wt.Path,
			ProgressDir:             wt.ProgressDir,
			BranchName:              wt.Branch,
			BaseBranch:              flags.Base,
			AgentTimeout:            time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
			HaltOnAmbiguity:         cfg.Ambiguity.HaltOnAmbiguity,
			AmbiguityThreshold:      cfg.Ambiguity.AmbiguityThreshold,
			MaxParallelAgents:       cfg.Concurrency.MaxParallelAgents,
			MaxRetriesPerTask:       cfg.Concurrency.MaxRetriesPerTask,
			MaxBuildFixRounds:       cfg.Concurrency.MaxBuildFixRounds,
			MaxFixRounds:            cfg.Concurrency.MaxFixRounds,
			MaxWholePRReviewRetries: cfg.Concurrency.MaxWholePRReviewRetries,
			PerTaskBuildCheck:       cfg.Concurrency.PerTaskBuildCheck,
			SquashBeforePR:          cfg.Commit.SquashBeforePR,
			Draft:                   cfg.Commit.Draft,
			LinkIssue:               cfg.Commit.LinkIssue,
			CommitPerPhase:          cfg.Commit.CommitPerPhase,
			TypeByPhase:             cfg.Commit.TypeByPhase,
		}

		buildRunner := verification.NewRunner(wt.Path, logger)
		checkpointMgr := checkpoint.NewIssueManager(wt.ProgressDir)

		return issueorch.NewOrchestrator(
			issue, opts, launch, issueGit, guard, checkpointMgr, buildRunner,
			cfg.Commands, provider, issueNotifier, logger,
		), nil
	}

	orch := fleetorch.NewOrchestrator(cfg.Project.Name, fleetorch.Options{MaxParallelIssues: cfg.Concurrency.MaxParallelIssues}, worktrees, factory, fleetCheckpoint, fleetNotifier, logger)

	result, err := orch.Run(ctx, issues, deps)
	if err != nil {
		return fmt.Errorf("fleet run: %w", err)
	}

	for _, number := range flags.Issues {
		status := result.Issues[number].Status
		logger.Info("issue finished", "issue", number, "status", status)
	}
	logger.Info("fleet run complete", "total_tokens", result.TokenUsage.Total, "prs_opened", len(result.PRs))

	return nil
}

func loadRuntimeConfig(workDir string) (*config.RuntimeConfig, error) {
	path := flagConfig
	if path == "" {
		found, err := config.FindConfigFile(workDir)
		if err != nil {
			return nil, fmt.Errorf("locating config file: %w", err)
		}
		path = found
	}
	if path == "" {
		return config.NewDefaults(), nil
	}
	cfg, _, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
