package orchestrator

import (
	"context"

	"github.com/prplab/prpctl/internal/git"
)

// GitCommitCapability is the reference CommitCapability backed by a
// local git.Manager. The engine still owns this one concrete
// implementation because committing is filesystem/VCS-local, unlike
// the language-model-backed ResearchAgent and ImplementationRuntime.
type GitCommitCapability struct {
	manager git.Manager
}

// NewGitCommitCapability wraps a git.Manager as a CommitCapability.
func NewGitCommitCapability(manager git.Manager) *GitCommitCapability {
	return &GitCommitCapability{manager: manager}
}

// Commit stages and commits all changes in the wrapped manager's working
// tree (sessionPath is not used) with a conventional commit message
// inferred from taskID. Returns
// git.ErrNoChanges unwrapped through the underlying Commit call when
// there is nothing to commit; the caller (the Orchestrator) does not
// treat that as a subtask failure.
func (c *GitCommitCapability) Commit(ctx context.Context, sessionPath, taskID string) (string, error) {
	message := git.FormatCommitMessage(taskID, "")
	return c.manager.Commit(ctx, message)
}
