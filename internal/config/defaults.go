package config

// NewDefaults returns a RuntimeConfig populated with the built-in
// configuration defaults.
func NewDefaults() *RuntimeConfig {
	return &RuntimeConfig{
		Project: ProjectConfig{
			ProgressDir:    ".cadre/issues",
			LogDir:         ".cadre/logs",
			BranchTemplate: "cadre/{issue}-{title}",
		},
		Agents: map[string]AgentConfig{
			"issue-analyst":          {Backend: "claude"},
			"codebase-scout":         {Backend: "claude"},
			"implementation-planner": {Backend: "claude"},
			"code-writer":            {Backend: "claude"},
			"test-writer":            {Backend: "claude"},
			"code-reviewer":          {Backend: "claude"},
			"fix-surgeon":            {Backend: "claude"},
			"whole-pr-reviewer":      {Backend: "claude"},
			"pr-composer":            {Backend: "claude"},
		},
		Budget: BudgetConfig{
			TokenBudget:       100_000,
			WarningThreshold:  0.8,
			ExceededThreshold: 1.0,
		},
		Concurrency: ConcurrencyConfig{
			MaxParallelIssues:       3,
			MaxParallelAgents:       4,
			MaxRetriesPerTask:       3,
			MaxBuildFixRounds:       2,
			MaxFixRounds:            2,
			MaxWholePRReviewRetries: 1,
			PerTaskBuildCheck:       true,
		},
		Ambiguity: AmbiguityConfig{
			HaltOnAmbiguity:    false,
			AmbiguityThreshold: 5,
		},
		Commit: CommitConfig{
			CommitPerPhase: true,
			TypeByPhase: map[int]string{
				1: "chore",
				2: "chore",
				3: "feat",
				4: "fix",
				5: "chore",
			},
		},
		Commands: CommandsConfig{
			Build: CommandConfig{Timeout: 120},
			Test:  CommandConfig{Timeout: 300},
			Lint:  CommandConfig{Timeout: 120},
		},
		AgentTimeoutSeconds: 900,
	}
}
