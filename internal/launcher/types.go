// Package launcher spawns agent CLI subprocesses: it resolves a backend
// command, builds an isolated environment, tracks the child in a
// process-wide registry for cooperative cancellation, and parses token
// usage and rate-limit signals from output.
package launcher

import "time"

// Invocation describes a single agent launch request.
type Invocation struct {
	Agent       string // logical agent role, e.g. "code-writer"
	IssueNumber int
	Phase       int
	SessionID   string // optional
	ContextPath string // prompt/context file passed to the agent
	OutputPath  string // file the agent is expected to produce
	Timeout     time.Duration
}

// AgentResult is the outcome of one agent invocation.
type AgentResult struct {
	Agent        string
	Success      bool
	ExitCode     int
	TimedOut     bool
	Duration     time.Duration
	Stdout       string
	Stderr       string
	TokenUsage   int
	OutputPath   string
	OutputExists bool
	Error        string
	RateLimit    *RateLimitInfo // set when output matched a rate-limit signal
}
