// Command cadre is the thin entrypoint for the orchestration core: it
// loads cadre.toml, wires the concrete collaborators (gh CLI, git, agent
// launcher, token budget, checkpoints) and drives the fleet orchestrator
// for a single local run. It has no interactive wizard or TUI surface.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/cadre/internal/logging"
)

var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "cadre",
	Short: "Autonomous multi-agent issue orchestration core",
	Long: `cadre drives code-modification issues through a fixed five-phase
pipeline (analysis, planning, implementation, integration verification, PR
composition) by dispatching agent subprocesses, with DAG-based scheduling
across a fleet of issues.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("verbose") && os.Getenv("CADRE_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv("CADRE_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("CADRE_NO_COLOR") != "") {
			flagNoColor = true
		}

		logging.Setup(flagVerbose, flagQuiet, os.Getenv("CADRE_LOG_FORMAT") == "json")

		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: CADRE_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: CADRE_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to cadre.toml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: CADRE_NO_COLOR, NO_COLOR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
