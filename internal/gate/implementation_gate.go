package gate

import (
	"context"
	"fmt"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

// ImplementationGate validates the 3→4 transition: at least one commit has
// landed since baseCommit, and the worktree carries no unresolved merge
// conflict markers.
func ImplementationGate(ctx context.Context, gctx Context) (cadretype.GateResult, error) {
	result := cadretype.GateResult{Errors: []string{}, Warnings: []string{}}

	if gctx.Git == nil {
		result.Errors = append(result.Errors, "gate: no git checker configured")
		return finalizeStatus(result), nil
	}

	commits, err := gctx.Git.CommitsSince(ctx, gctx.BaseCommit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("counting commits since %s: %v", gctx.BaseCommit, err))
	} else if commits == 0 {
		result.Errors = append(result.Errors, "no commits since base commit")
	}

	hasMarkers, err := gctx.Git.HasUnresolvedMergeMarkers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("checking merge markers: %v", err))
	} else if hasMarkers {
		result.Errors = append(result.Errors, "worktree contains unresolved merge conflict markers")
	}

	return finalizeStatus(result), nil
}
