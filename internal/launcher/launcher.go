package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/config"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
)

// noSuchAgentPrefix is the backend-specific stderr signal for an unrecognized
// agent name. It is surfaced as UnknownAgentError, which is non-retryable.
const noSuchAgentPrefix = "No such agent:"

// UnknownAgentError is returned when a backend reports it does not
// recognize the requested agent. Non-retryable.
type UnknownAgentError struct {
	Agent string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("launcher: unknown agent %q", e.Agent)
}

// Launcher spawns agent subprocesses per the invocation contract.
type Launcher struct {
	agents    map[string]config.AgentConfig
	registry  *ProcessRegistry
	logDir    string
	extraPath []string
	logger    *log.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithProcessRegistry overrides the default process-wide registry; mainly
// for isolated tests.
func WithProcessRegistry(r *ProcessRegistry) Option {
	return func(l *Launcher) { l.registry = r }
}

// WithLogDir sets the directory invocation logs are written to
// (<repo>/.cadre/logs). An empty dir disables invocation logging.
func WithLogDir(dir string) Option {
	return func(l *Launcher) { l.logDir = dir }
}

// WithExtraPath prepends additional PATH entries for spawned children.
func WithExtraPath(paths []string) Option {
	return func(l *Launcher) { l.extraPath = paths }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Launcher) { l.logger = logger }
}

// New creates a Launcher. agents maps agent role name (e.g. "code-writer")
// to its backend configuration.
func New(agents map[string]config.AgentConfig, opts ...Option) *Launcher {
	l := &Launcher{
		agents:   agents,
		registry: DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch resolves the backend for inv.Agent, spawns the subprocess, waits
// for completion or timeout, and returns the resulting AgentResult.
func (l *Launcher) Launch(ctx context.Context, inv Invocation, worktreePath string) (*AgentResult, error) {
	cfg, ok := l.agents[inv.Agent]
	if !ok {
		return nil, &UnknownAgentError{Agent: inv.Agent}
	}
	backend, err := resolveBackend(cfg)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	start := time.Now()
	command := backend.Command(cfg)
	args := backend.BuildArgs(cfg, inv)

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = worktreePath
	cmd.Env = buildEnvWithWorktree(inv, worktreePath, l.extraPath)
	setProcGroup(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if l.logger != nil {
		l.logger.Debug("launching agent", "agent", inv.Agent, "backend", backend.Name(), "issue", inv.IssueNumber, "phase", inv.Phase)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: starting %s: %w", inv.Agent, err)
	}
	l.registry.track(cmd)
	defer l.registry.untrack(cmd)

	waitErr := cmd.Wait()
	duration := time.Since(start)

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			return nil, fmt.Errorf("launcher: waiting for %s: %w", inv.Agent, waitErr)
		}
	}

	stdout := stdoutBuf.String()
	stderr := stderrBuf.String()

	_, outputErr := os.Stat(inv.OutputPath)
	outputExists := inv.OutputPath != "" && outputErr == nil

	unknownAgent := strings.Contains(stderr, noSuchAgentPrefix)

	result := &AgentResult{
		Agent:        inv.Agent,
		ExitCode:     exitCode,
		TimedOut:     timedOut,
		Duration:     duration,
		Stdout:       stdout,
		Stderr:       stderr,
		TokenUsage:   parseTokenUsage(stdout, stderr),
		OutputPath:   inv.OutputPath,
		OutputExists: outputExists,
	}
	result.Success = exitCode == 0 && !timedOut && !unknownAgent

	if !result.Success {
		if info, ok := ParseRateLimit(stdout + stderr); ok {
			result.RateLimit = info
		}
	}

	if unknownAgent {
		result.Error = fmt.Sprintf("%s %s", noSuchAgentPrefix, inv.Agent)
	} else if timedOut {
		result.Error = "agent invocation timed out"
	} else if !result.Success {
		result.Error = fmt.Sprintf("agent exited with code %d", exitCode)
	}

	l.writeInvocationLog(inv, result)

	if unknownAgent {
		return result, &UnknownAgentError{Agent: inv.Agent}
	}
	return result, nil
}

// writeInvocationLog writes a per-invocation plain-text log file (one
// key=value header line, then the stdout and stderr sections) to l.logDir,
// named with an xxhash-derived key so concurrent invocations of the same
// agent never collide. Logging failures are non-fatal: they are silently
// ignored, matching the non-critical nature of
// observability writes elsewhere in the pipeline.
func (l *Launcher) writeInvocationLog(inv Invocation, result *AgentResult) {
	if l.logDir == "" {
		return
	}
	if err := os.MkdirAll(l.logDir, 0o755); err != nil {
		return
	}
	key := fmt.Sprintf("%s-%d-%d-%d", inv.Agent, inv.IssueNumber, inv.Phase, time.Now().UnixNano())
	name := fmt.Sprintf("%016x.log", xxhash.Sum64String(key))
	path := filepath.Join(l.logDir, name)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "agent=%s issue=%d phase=%d success=%t exit_code=%d timed_out=%t tokens=%d\n",
		inv.Agent, inv.IssueNumber, inv.Phase, result.Success, result.ExitCode, result.TimedOut, result.TokenUsage)
	buf.WriteString("--- stdout ---\n")
	buf.WriteString(result.Stdout)
	buf.WriteString("\n--- stderr ---\n")
	buf.WriteString(result.Stderr)

	_ = os.WriteFile(path, buf.Bytes(), 0o644)
}
