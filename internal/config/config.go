// Package config defines the orchestration core's RuntimeConfig and a thin
// TOML loader. Per the design's "no ambient globals" rule, RuntimeConfig is
// threaded through constructors rather than read from a package-level
// singleton.
package config

// RuntimeConfig is the top-level configuration record mapping to cadre.toml.
// It carries only the options the core needs to run; config file *schema*
// validation beyond this is an external-collaborator concern.
type RuntimeConfig struct {
	Project     ProjectConfig          `toml:"project"`
	Agents      map[string]AgentConfig `toml:"agents"`
	Budget      BudgetConfig           `toml:"budget"`
	Concurrency ConcurrencyConfig      `toml:"concurrency"`
	Ambiguity   AmbiguityConfig        `toml:"ambiguity"`
	Commit      CommitConfig           `toml:"commit"`
	Commands    CommandsConfig         `toml:"commands"`
	DryRun      bool                   `toml:"dry_run"`

	// AgentTimeoutSeconds bounds a single agent subprocess invocation across
	// every phase (analysis, planning, per-task write/test/review, fix,
	// pr-composer). 0 means the launcher's own default applies.
	AgentTimeoutSeconds int `toml:"agent_timeout_seconds"`
}

// ProjectConfig maps to the [project] section in cadre.toml.
type ProjectConfig struct {
	Name           string `toml:"name"`
	ProgressDir    string `toml:"progress_dir"`    // <repo>/.cadre/issues; issue n uses <progress_dir>/<n>, not a dir inside its worktree
	LogDir         string `toml:"log_dir"`         // <repo>/.cadre/logs
	BranchTemplate string `toml:"branch_template"` // tokens {issue}, {title}
}

// AgentConfig names the CLI backend and invocation defaults for one agent
// role (issue-analyst, codebase-scout, implementation-planner, code-writer,
// test-writer, code-reviewer, fix-surgeon, whole-pr-reviewer, pr-composer).
type AgentConfig struct {
	Backend string `toml:"backend"` // "claude" | "copilot"
	Command string `toml:"command"`
	Model   string `toml:"model"`
	Effort  string `toml:"effort"`
}

// BudgetConfig configures per-issue token budgets and thresholds.
type BudgetConfig struct {
	TokenBudget        int     `toml:"token_budget"`
	WarningThreshold   float64 `toml:"warning_threshold"`  // default 0.8
	ExceededThreshold  float64 `toml:"exceeded_threshold"` // default 1.0
}

// ConcurrencyConfig bounds fleet- and task-level parallelism and retries.
type ConcurrencyConfig struct {
	MaxParallelIssues       int  `toml:"max_parallel_issues"`
	MaxParallelAgents       int  `toml:"max_parallel_agents"`
	MaxRetriesPerTask       int  `toml:"max_retries_per_task"`
	MaxBuildFixRounds       int  `toml:"max_build_fix_rounds"`
	MaxFixRounds            int  `toml:"max_fix_rounds"` // phase 4 fix loop
	MaxWholePRReviewRetries int  `toml:"max_whole_pr_review_retries"`
	PerTaskBuildCheck       bool `toml:"per_task_build_check"`
}

// AmbiguityConfig controls the phase-1 ambiguity halt.
type AmbiguityConfig struct {
	HaltOnAmbiguity    bool `toml:"halt_on_ambiguity"`
	AmbiguityThreshold int  `toml:"ambiguity_threshold"`
}

// CommitConfig configures phase-scoped commit behavior.
type CommitConfig struct {
	CommitPerPhase bool              `toml:"commit_per_phase"`
	SquashBeforePR bool              `toml:"squash_before_pr"`
	Draft          bool              `toml:"draft"`
	LinkIssue      bool              `toml:"link_issue"`
	TypeByPhase    map[int]string    `toml:"type_by_phase"` // defaults: 1,2→chore 3→feat 4→fix 5→chore
}

// CommandConfig is one shell command plus its timeout.
type CommandConfig struct {
	Command string `toml:"command"`
	Timeout int    `toml:"timeout_seconds"`
}

// CommandsConfig names the four verification-phase shell commands.
type CommandsConfig struct {
	Install CommandConfig `toml:"install"`
	Build   CommandConfig `toml:"build"`
	Test    CommandConfig `toml:"test"`
	Lint    CommandConfig `toml:"lint"`
}
