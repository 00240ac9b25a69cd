package orchestrator

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by WaitForDependencies when its timeout elapses
// before every blocking dependency reaches Complete.
var ErrTimeout = errors.New("timed out waiting for dependencies")

// ErrNoCurrentSession mirrors session.ErrNoCurrentSession for callers
// that construct an Orchestrator before a session is loaded.
var ErrNoCurrentSession = errors.New("no current session")

// TimeoutError wraps ErrTimeout with the subtask id and the dependencies
// still blocking it when the deadline elapsed.
type TimeoutError struct {
	SubtaskID string
	Blocking  []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("subtask %s: timed out waiting for dependencies %v", e.SubtaskID, e.Blocking)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ExecutionFailureError wraps the ImplementationRuntime's failure
// message for a subtask whose ExecutionResult.Success was false.
type ExecutionFailureError struct {
	SubtaskID string
	Reason    string
}

func (e *ExecutionFailureError) Error() string {
	return fmt.Sprintf("subtask %s: execution failed: %s", e.SubtaskID, e.Reason)
}
