// Package gate implements the five pure phase-gate validators between the
// pipeline's phases. Each gate is a pure function over on-disk artifacts and
// git state — no agent invocation, no mutation.
package gate

import (
	"context"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

// Context carries everything a gate needs to validate one phase transition.
type Context struct {
	ProgressDir  string
	WorktreePath string
	BaseCommit   string

	// Tasks is populated ahead of the 2→3 gate by the planning phase, which
	// already parsed implementation-plan.md's cadre-json block.
	Tasks []cadretype.ImplementationTask

	// AmbiguityCount and AmbiguityThreshold feed the phase-1 ambiguity gate.
	AmbiguityCount     int
	HaltOnAmbiguity    bool
	AmbiguityThreshold int

	// Git is used by the 3→4 gate (commits since base, merge markers).
	Git GitChecker

	// Integration is populated ahead of the 4→5 gate by the integration
	// verification phase.
	Integration IntegrationSummary
}

// IntegrationSummary is the integration-verification phase's build/test
// outcome, as read by the 4→5 gate. A command that was never configured is
// reported as not-configured rather than failed, so an issue whose project
// has no test suite still passes its gate.
type IntegrationSummary struct {
	BuildConfigured bool
	BuildPassed     bool
	TestConfigured  bool
	TestPassed      bool
}

// GitChecker is the subset of gitrepo.Client a gate needs. Kept minimal so
// gates stay testable with a fake.
type GitChecker interface {
	CommitsSince(ctx context.Context, base string) (int, error)
	HasUnresolvedMergeMarkers(ctx context.Context) (bool, error)
}

// Func validates one phase transition and returns its verdict.
type Func func(ctx context.Context, gctx Context) (cadretype.GateResult, error)
