package gate

import (
	"context"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

// VerificationGate validates the 4→5 transition: build and test must each
// either pass or have never been configured for this project.
func VerificationGate(ctx context.Context, gctx Context) (cadretype.GateResult, error) {
	result := cadretype.GateResult{Errors: []string{}, Warnings: []string{}}

	summary := gctx.Integration
	if summary.BuildConfigured && !summary.BuildPassed {
		result.Errors = append(result.Errors, "build did not pass integration verification")
	}
	if summary.TestConfigured && !summary.TestPassed {
		result.Errors = append(result.Errors, "tests did not pass integration verification")
	}

	return finalizeStatus(result), nil
}
