package orchestrator

import "context"

// ValidationResult is the outcome of a single validation gate run by the
// implementation runtime.
type ValidationResult struct {
	Level   int    `json:"level"`
	Passed  bool   `json:"passed"`
	Output  string `json:"output,omitempty"`
	Skipped bool   `json:"skipped"`
}

// ExecutionResult is returned by ImplementationRuntime.Execute.
type ExecutionResult struct {
	Success           bool                `json:"success"`
	Error             string              `json:"error,omitempty"`
	ValidationResults []ValidationResult  `json:"validationResults"`
	Artifacts         []string            `json:"artifacts,omitempty"`
	FixAttempts       int                 `json:"fixAttempts"`
}

// ImplementationRuntime is the external collaborator that executes a
// PRP: it runs validation gates 1-4 in order, stopping on the first
// failing non-manual gate and skipping manual gates, bounded by an
// internal fix-retry budget. Errors originating in the PRP body or
// parser are surfaced as a non-successful ExecutionResult, never
// returned as a Go error.
type ImplementationRuntime interface {
	Execute(ctx context.Context, prpFilePath string) (*ExecutionResult, error)
}

// CommitCapability is invoked by the Orchestrator after a successful
// subtask. It may filter protected files; failure does not fail the
// subtask that triggered it.
type CommitCapability interface {
	Commit(ctx context.Context, sessionPath, taskID string) (commitID string, err error)
}
