// Package verification runs the configured shell command sequence for a
// project (install/build/test/lint) with per-command timeouts, and drives
// the phase 4 integration-verification fix loop.
package verification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// maxOutputBytes is the threshold above which command output is truncated.
const maxOutputBytes = 1024 * 1024

// truncationLines is the number of lines kept from the head and tail of
// oversized output.
const truncationLines = 512

// NamedCommand is one configured verification command.
type NamedCommand struct {
	Name    string // "install", "build", "test", "lint"
	Command string
	Timeout time.Duration
}

// CommandResult holds the outcome of a single command execution.
type CommandResult struct {
	Name     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Passed   bool
	TimedOut bool
}

// Runner executes a sequence of named shell commands in a fixed working
// directory and collects pass/fail results with per-command timeouts.
type Runner struct {
	workDir string
	logger  *log.Logger
}

// NewRunner creates a Runner rooted at workDir. logger may be nil.
func NewRunner(workDir string, logger *log.Logger) *Runner {
	return &Runner{workDir: workDir, logger: logger}
}

// RunAll executes every command in order, skipping blanks. It never stops
// early on failure — the caller decides what to do with per-command
// failures (the phase-4 fix loop re-runs only the failing commands).
func (r *Runner) RunAll(ctx context.Context, cmds []NamedCommand) ([]CommandResult, error) {
	results := make([]CommandResult, 0, len(cmds))
	for _, c := range cmds {
		if strings.TrimSpace(c.Command) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("verification: context cancelled before running %q: %w", c.Name, err)
		}
		result, err := r.RunOne(ctx, c)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// RunOne executes a single named command and returns its CommandResult. The
// returned error is non-nil only when the parent context is cancelled before
// or while the command runs; command failures are represented in
// the result with Passed == false.
func (r *Runner) RunOne(ctx context.Context, c NamedCommand) (*CommandResult, error) {
	start := time.Now()

	if r.logger != nil {
		r.logger.Info("verification: running command", "name", c.Name, "command", c.Command)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if c.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var shellCmd *exec.Cmd
	if runtime.GOOS == "windows" {
		shellCmd = exec.CommandContext(execCtx, "cmd", "/c", c.Command)
	} else {
		shellCmd = exec.CommandContext(execCtx, "sh", "-c", c.Command)
	}
	if r.workDir != "" {
		shellCmd.Dir = r.workDir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	shellCmd.Stdout = &stdoutBuf
	shellCmd.Stderr = &stderrBuf

	runErr := shellCmd.Run()
	duration := time.Since(start)

	exitCode := 0
	timedOut := false

	if runErr != nil {
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			timedOut = true
			exitCode = -1
			if shellCmd.Process != nil {
				_ = shellCmd.Process.Kill()
			}
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, fmt.Errorf("verification: context cancelled while running %q: %w", c.Name, ctx.Err())
		default:
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = -1
			}
		}
	}

	result := &CommandResult{
		Name:     c.Name,
		Command:  c.Command,
		ExitCode: exitCode,
		Stdout:   truncateOutput(stdoutBuf.String()),
		Stderr:   truncateOutput(stderrBuf.String()),
		Duration: duration,
		Passed:   exitCode == 0 && !timedOut,
		TimedOut: timedOut,
	}

	if r.logger != nil {
		if result.Passed {
			r.logger.Info("verification: command passed", "name", c.Name, "duration", duration)
		} else {
			r.logger.Warn("verification: command failed", "name", c.Name, "exit_code", exitCode, "timed_out", timedOut)
		}
	}

	return result, nil
}

// truncateOutput keeps output unchanged under maxOutputBytes; beyond that it
// keeps the first and last truncationLines lines with a notice in between.
func truncateOutput(output string) string {
	if len(output) <= maxOutputBytes {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= truncationLines*2 {
		const notice = "\n... (output truncated)"
		cutoff := maxOutputBytes - len(notice)
		if cutoff < 0 {
			cutoff = 0
		}
		if cutoff > len(output) {
			cutoff = len(output)
		}
		return output[:cutoff] + notice
	}
	head := lines[:truncationLines]
	tail := lines[len(lines)-truncationLines:]
	omitted := len(lines) - truncationLines*2

	var sb strings.Builder
	sb.WriteString(strings.Join(head, "\n"))
	fmt.Fprintf(&sb, "\n\n... (%d lines omitted) ...\n\n", omitted)
	sb.WriteString(strings.Join(tail, "\n"))
	return sb.String()
}
