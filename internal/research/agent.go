// Package research implements the bounded-concurrency, deduplicating,
// fire-and-forget research artifact dispatcher.
package research

import (
	"context"

	"github.com/prplab/prpctl/internal/hierarchy"
)

// ValidationGate is one of four ordered checks the implementation
// runtime executes after implementation. Gate 4 is manual by convention.
// Command absent means a manual gate, always skipped.
type ValidationGate struct {
	Level       int    `json:"level"`
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
	Manual      bool   `json:"manual"`
}

// SuccessCriterion is a single pass/fail acceptance statement for a PRP.
type SuccessCriterion struct {
	Description string `json:"description"`
	Satisfied   bool   `json:"satisfied"`
}

// PRP ("Product Requirement Prompt") is the research artifact generated
// for a single subtask.
type PRP struct {
	TaskID              string             `json:"taskId"`
	Objective           string             `json:"objective"`
	Context             string             `json:"context"`
	ImplementationSteps []string           `json:"implementationSteps"`
	ValidationGates     []ValidationGate   `json:"validationGates"`
	SuccessCriteria     []SuccessCriterion `json:"successCriteria"`
	References          []string           `json:"references"`
}

// Agent is the external, language-model-backed collaborator that
// produces a PRP for a subtask. It may fail with any error; the Queue
// logs failures and does not cache them.
type Agent interface {
	Generate(ctx context.Context, subtask *hierarchy.Item, backlog *hierarchy.Backlog) (*PRP, error)
}
