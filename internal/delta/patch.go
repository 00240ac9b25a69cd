package delta

import "github.com/prplab/prpctl/internal/hierarchy"

// Patch applies an Analysis to a backlog, returning a new backlog with
// statuses rewritten per change kind. It is a pure function: the input
// backlog is never mutated.
//
//   - modified: the target item's status becomes Planned (forces re-execution).
//   - removed: the target item's status becomes Obsolete; it is not deleted.
//   - added: no status rewrite here; the planner inserts the new node separately.
//
// Items not mentioned in the analysis are unchanged.
func Patch(backlog *hierarchy.Backlog, analysis *Analysis) *hierarchy.Backlog {
	result := backlog
	for _, change := range analysis.Changes {
		switch change.Kind {
		case ChangeModified:
			result = hierarchy.UpdateStatus(result, change.ItemID, hierarchy.StatusPlanned)
		case ChangeRemoved:
			result = hierarchy.UpdateStatus(result, change.ItemID, hierarchy.StatusObsolete)
		case ChangeAdded:
			// Insertion of new nodes is the planner's responsibility.
		}
	}
	return result
}
