package hierarchy

import "strings"

// ScopeType selects the granularity at which an execution queue is
// restricted to a subtree.
type ScopeType string

// Valid scope types.
const (
	ScopeAll       ScopeType = "all"
	ScopePhase     ScopeType = "phase"
	ScopeMilestone ScopeType = "milestone"
	ScopeTask      ScopeType = "task"
)

// Scope restricts the execution queue to a subtree. ScopeAll ignores ID.
type Scope struct {
	Type ScopeType
	ID   string
}

// FilterLeaves returns every Subtask kept by the scope, in DFS pre-order.
// ScopeAll keeps every leaf. Other scope types keep every leaf whose id
// has ID as a dot-separated path prefix. A scope id that matches no item
// produces an empty result; this is not an error.
func FilterLeaves(b *Backlog, scope Scope) []*Item {
	leaves := Leaves(b)

	if scope.Type == ScopeAll || scope.Type == "" {
		return leaves
	}

	var kept []*Item
	for _, leaf := range leaves {
		if isUnderPrefix(leaf.ID, scope.ID) {
			kept = append(kept, leaf)
		}
	}
	return kept
}

// isUnderPrefix reports whether id is prefix itself or a descendant of
// prefix under dot-separated hierarchical IDs (e.g. "P1.M1" is a prefix
// of "P1.M1.T1.S1" but not of "P1.M10.T1.S1").
func isUnderPrefix(id, prefix string) bool {
	if id == prefix {
		return true
	}
	return strings.HasPrefix(id, prefix+".")
}
