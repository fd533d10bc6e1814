package launcher

import (
	"fmt"

	"github.com/AbdelazizMoustafa10m/cadre/internal/config"
)

// Backend resolves an agent config into a CLI command and argument vector.
// Selection between backends is config-driven (config.AgentConfig.Backend)
// and is the only pluggable axis at the launcher layer.
type Backend interface {
	// Name is the backend identifier ("claude" or "copilot").
	Name() string
	// BuildArgs returns the argument vector for one invocation, given the
	// resolved agent config and the invocation's context/output paths.
	BuildArgs(cfg config.AgentConfig, inv Invocation) []string
	// Command returns the executable name, honoring cfg.Command overrides.
	Command(cfg config.AgentConfig) string
}

// claudeBackend drives the Claude CLI, grounded on the equivalent
// argument-building logic this launcher was adapted from.
type claudeBackend struct{}

func (claudeBackend) Name() string { return "claude" }

func (claudeBackend) Command(cfg config.AgentConfig) string {
	if cfg.Command != "" {
		return cfg.Command
	}
	return "claude"
}

func (claudeBackend) BuildArgs(cfg config.AgentConfig, inv Invocation) []string {
	args := []string{"--permission-mode", "accept", "--print"}
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	args = append(args, "--output-format", "json")
	if inv.ContextPath != "" {
		args = append(args, "--prompt-file", inv.ContextPath)
	}
	return args
}

// copilotBackend drives the GitHub Copilot CLI.
type copilotBackend struct{}

func (copilotBackend) Name() string { return "copilot" }

func (copilotBackend) Command(cfg config.AgentConfig) string {
	if cfg.Command != "" {
		return cfg.Command
	}
	return "copilot"
}

func (copilotBackend) BuildArgs(cfg config.AgentConfig, inv Invocation) []string {
	args := []string{"--allow-all-tools"}
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if inv.ContextPath != "" {
		args = append(args, "--prompt-file", inv.ContextPath)
	}
	return args
}

// resolveBackend selects the Backend named by cfg.Backend. Defaults to
// claude when unset.
func resolveBackend(cfg config.AgentConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "claude":
		return claudeBackend{}, nil
	case "copilot":
		return copilotBackend{}, nil
	default:
		return nil, fmt.Errorf("launcher: no such agent backend: %q", cfg.Backend)
	}
}
