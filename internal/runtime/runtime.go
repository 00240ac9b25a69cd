// Package runtime provides a concrete, non-networked reference
// implementation of orchestrator.ImplementationRuntime: it parses a
// generated PRP file and executes its validation gates as local
// subprocesses via internal/verifier.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/prplab/prpctl/internal/orchestrator"
	"github.com/prplab/prpctl/internal/research"
	"github.com/prplab/prpctl/internal/verifier"
)

// GateRuntime executes a PRP's validation gates 1-4 in order, stopping
// on the first failing non-manual gate and skipping manual gates. Each
// failing gate is retried up to maxFixAttempts additional times before
// the gate is considered failed.
type GateRuntime struct {
	runner         *verifier.CommandRunner
	maxFixAttempts int
	logger         *zap.Logger
}

// NewGateRuntime constructs a GateRuntime that runs gate commands in
// workDir, restricted to allowedCommands if non-empty.
func NewGateRuntime(workDir string, allowedCommands []string, maxFixAttempts int, logger *zap.Logger) *GateRuntime {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := verifier.NewCommandRunner(workDir)
	if len(allowedCommands) > 0 {
		runner.SetAllowedCommands(allowedCommands)
	}
	return &GateRuntime{runner: runner, maxFixAttempts: maxFixAttempts, logger: logger}
}

// Execute reads the PRP at prpFilePath and runs its validation gates in
// ascending level order. Errors parsing the PRP body are surfaced as a
// non-successful ExecutionResult, not returned as a Go error, per the
// ImplementationRuntime contract.
func (g *GateRuntime) Execute(ctx context.Context, prpFilePath string) (*orchestrator.ExecutionResult, error) {
	data, err := os.ReadFile(prpFilePath)
	if err != nil {
		return &orchestrator.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("reading prp file: %v", err),
		}, nil
	}

	var prp research.PRP
	if err := json.Unmarshal(data, &prp); err != nil {
		return &orchestrator.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("parsing prp file: %v", err),
		}, nil
	}

	gateResults, allPassed := g.runner.VerifyGates(ctx, prp.ValidationGates, g.maxFixAttempts)

	results := make([]orchestrator.ValidationResult, len(gateResults))
	fixAttemptsUsed := 0
	for i, gr := range gateResults {
		results[i] = orchestrator.ValidationResult{
			Level:   gr.Level,
			Passed:  gr.Passed,
			Output:  gr.Output,
			Skipped: gr.Skipped,
		}
		fixAttemptsUsed += gr.FixAttempts
	}

	if !allPassed {
		failing := gateResults[len(gateResults)-1]
		g.logger.Warn("validation gate failed after exhausting fix attempts",
			zap.Int("level", failing.Level),
			zap.Int("fix_attempts", failing.FixAttempts),
		)

		feedback := verifier.TrimOutputForFeedback(
			[]verifier.VerificationResult{{Passed: false, Output: failing.Output}},
			verifier.DefaultTrimOptions(),
		)

		return &orchestrator.ExecutionResult{
			Success:           false,
			Error:             fmt.Sprintf("validation gate %d failed:\n%s", failing.Level, feedback),
			ValidationResults: results,
			FixAttempts:       fixAttemptsUsed,
		}, nil
	}

	return &orchestrator.ExecutionResult{
		Success:           true,
		ValidationResults: results,
		FixAttempts:       fixAttemptsUsed,
	}, nil
}

var _ orchestrator.ImplementationRuntime = (*GateRuntime)(nil)
