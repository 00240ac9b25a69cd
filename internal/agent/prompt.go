// Package agent provides concrete, subprocess-based implementations of
// the research.Agent and orchestrator collaborator interfaces, built
// around invoking an externally configured command-line tool.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prplab/prpctl/internal/hierarchy"
)

// PromptContext contains everything needed to build a research prompt
// for a single subtask.
type PromptContext struct {
	// Subtask is the leaf item to produce a PRP for.
	Subtask *hierarchy.Item

	// Backlog is the full hierarchy, used to resolve dependency context.
	Backlog *hierarchy.Backlog

	// CodebasePatterns is a free-form notes section describing
	// conventions discovered in prior steps.
	CodebasePatterns string

	// FailureOutput is the trimmed verification failure output, set
	// when this prompt is for a retry.
	FailureOutput string

	// UserFeedback is operator-supplied feedback, set on retry.
	UserFeedback string

	// IsRetry indicates this is a retry of a previously failed subtask.
	IsRetry bool
}

// SizeOptions configures the maximum sizes for various prompt components.
type SizeOptions struct {
	MaxPromptBytes   int
	MaxPatternsBytes int
	MaxFailureBytes  int
}

// DefaultSizeOptions returns sensible default size options.
func DefaultSizeOptions() SizeOptions {
	return SizeOptions{
		MaxPromptBytes:   8000,
		MaxPatternsBytes: 2000,
		MaxFailureBytes:  2000,
	}
}

// Validate checks that all size options are non-negative.
func (o SizeOptions) Validate() error {
	if o.MaxPromptBytes < 0 {
		return errors.New("max prompt bytes cannot be negative")
	}
	if o.MaxPatternsBytes < 0 {
		return errors.New("max patterns bytes cannot be negative")
	}
	if o.MaxFailureBytes < 0 {
		return errors.New("max failure bytes cannot be negative")
	}
	return nil
}

// BuildResult contains the built prompts ready for collaborator invocation.
type BuildResult struct {
	SystemPrompt string
	UserPrompt   string
}

// PromptBuilder builds research prompts for the subprocess agent.
type PromptBuilder struct {
	opts SizeOptions
}

// NewPromptBuilder creates a prompt builder with the given options.
// If opts is nil, default options are used.
func NewPromptBuilder(opts *SizeOptions) *PromptBuilder {
	if opts == nil {
		defaultOpts := DefaultSizeOptions()
		opts = &defaultOpts
	}
	return &PromptBuilder{opts: *opts}
}

// BuildSystemPrompt builds the system prompt with harness instructions.
func (b *PromptBuilder) BuildSystemPrompt() string {
	return `You are a research collaborator working within an orchestration harness.

## Your Role
You are given exactly one subtask. Produce a single PRP (Product Requirement
Prompt): a structured, self-contained implementation plan that a separate
implementation collaborator will follow without further research.

## Rules
1. Research ONLY the subtask described below. Do not propose work on other subtasks.
2. Emit your answer as a single JSON object matching this shape, and nothing else:
   {
     "taskId": "<subtask id>",
     "objective": "<one sentence objective>",
     "context": "<relevant background, prior art, constraints>",
     "implementationSteps": ["<step 1>", "<step 2>", ...],
     "validationGates": [
       {"level": 1, "description": "<what it checks>", "command": "<shell command>", "manual": false},
       {"level": 4, "description": "<manual review note>", "manual": true}
     ],
     "successCriteria": [{"description": "<criterion>", "satisfied": false}],
     "references": ["<file path or URL>", ...]
   }
3. Validation gates are ordered by level. A gate with manual=true has no command
   and is always a human checkpoint, never automated.
4. Do not implement the subtask yourself. Do not modify files.
`
}

// BuildUserPrompt builds the user prompt describing the subtask and its context.
func (b *PromptBuilder) BuildUserPrompt(ctx PromptContext) (string, error) {
	if ctx.Subtask == nil {
		return "", errors.New("subtask is required")
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "## Subtask: %s\n\n", ctx.Subtask.Title)
	fmt.Fprintf(&sb, "ID: %s\n\n", ctx.Subtask.ID)

	if ctx.Subtask.Description != "" {
		fmt.Fprintf(&sb, "### Description\n%s\n\n", ctx.Subtask.Description)
	}

	if len(ctx.Subtask.Dependencies) > 0 {
		sb.WriteString("### Dependencies\n")
		for _, depID := range ctx.Subtask.Dependencies {
			if dep, ok := hierarchy.FindItem(ctx.Backlog, depID); ok {
				fmt.Fprintf(&sb, "- %s: %s (%s)\n", dep.ID, dep.Title, dep.Status)
			} else {
				fmt.Fprintf(&sb, "- %s: (not found in backlog)\n", depID)
			}
		}
		sb.WriteString("\n")
	}

	if len(ctx.Subtask.ContextScope) > 0 {
		sb.WriteString("### Context Scope\n")
		sb.WriteString(ctx.Subtask.ContextScope)
		sb.WriteString("\n\n")
	}

	if ctx.CodebasePatterns != "" {
		patterns := truncateWithMarker(ctx.CodebasePatterns, b.opts.MaxPatternsBytes)
		sb.WriteString("### Codebase Patterns\n")
		sb.WriteString(patterns)
		sb.WriteString("\n\n")
	}

	if ctx.IsRetry {
		sb.WriteString("### Retry Context\n")
		sb.WriteString("A prior attempt at this subtask failed validation. Revise the PRP accordingly.\n")
		if ctx.FailureOutput != "" {
			failure := truncateWithMarker(ctx.FailureOutput, b.opts.MaxFailureBytes)
			sb.WriteString("Verification failure output:\n```\n")
			sb.WriteString(failure)
			sb.WriteString("\n```\n")
		}
		if ctx.UserFeedback != "" {
			fmt.Fprintf(&sb, "Operator feedback: %s\n", ctx.UserFeedback)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("### Instructions\n")
	sb.WriteString("1. Research this subtask only; do not expand scope.\n")
	sb.WriteString("2. Emit exactly one JSON object in the shape described in the system prompt.\n")
	sb.WriteString("3. Order validationGates by level ascending; level 4 is always manual.\n")

	return sb.String(), nil
}

// Build builds both system and user prompts from the given context.
func (b *PromptBuilder) Build(ctx PromptContext) (*BuildResult, error) {
	systemPrompt := b.BuildSystemPrompt()

	userPrompt, err := b.BuildUserPrompt(ctx)
	if err != nil {
		return nil, err
	}

	return &BuildResult{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	}, nil
}

// truncateWithMarker truncates a string to maxBytes and adds a marker if truncated.
// If maxBytes is 0, no truncation is performed.
func truncateWithMarker(s string, maxBytes int) string {
	if maxBytes == 0 || len(s) <= maxBytes {
		return s
	}
	marker := "... [truncated]"
	return s[:maxBytes] + marker
}
