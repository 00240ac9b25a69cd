package hierarchy

// FindItem walks the tree matching id by exact equality. Partial or
// prefix matches are not supported. Returns the item and true, or
// nil and false if no node matches.
func FindItem(b *Backlog, id string) (*Item, bool) {
	var found *Item
	for _, phase := range b.Items {
		if item := findInSubtree(phase, id); item != nil {
			found = item
			break
		}
	}
	return found, found != nil
}

func findInSubtree(item *Item, id string) *Item {
	if item.ID == id {
		return item
	}
	for _, child := range item.Children {
		if found := findInSubtree(child, id); found != nil {
			return found
		}
	}
	return nil
}

// WalkEntry is a single node visited by Walk, along with the kind and
// the path of ancestor IDs from the root Phase down to (but excluding)
// this node.
type WalkEntry struct {
	Item *Item
	Kind Kind
	Path []string
}

// Walk performs a DFS pre-order traversal of the backlog: each node is
// yielded before its children, in declared order. For a two-phase
// backlog the order is P1, P1.M1, P1.M1.T1, P1.M1.T1.S1, ...,
// P1.M2, ..., P2, .... This ordering is the single source of truth
// for execution order.
func Walk(b *Backlog) []WalkEntry {
	var entries []WalkEntry
	var visit func(item *Item, path []string)
	visit = func(item *Item, path []string) {
		entries = append(entries, WalkEntry{Item: item, Kind: item.Kind, Path: path})
		childPath := append(append([]string{}, path...), item.ID)
		for _, child := range item.Children {
			visit(child, childPath)
		}
	}
	for _, phase := range b.Items {
		visit(phase, nil)
	}
	return entries
}

// Leaves returns every Subtask in the backlog, in DFS pre-order.
func Leaves(b *Backlog) []*Item {
	var leaves []*Item
	for _, entry := range Walk(b) {
		if entry.Item.IsLeaf() {
			leaves = append(leaves, entry.Item)
		}
	}
	return leaves
}

// UpdateStatus returns a new backlog where exactly the node matching id
// has its status replaced; all other nodes are structurally shared with
// the input. If id is not found, the input backlog is returned
// unchanged (no error). The update does not cascade to children or
// propagate to ancestors: exactly one node changes.
//
// Only the spine from root to the target node is copied; untouched
// subtrees are shared between the input and the result, and the input
// backlog is never mutated.
func UpdateStatus(b *Backlog, id string, status Status) *Backlog {
	if _, ok := FindItem(b, id); !ok {
		return b
	}

	newItems := make([]*Item, len(b.Items))
	for i, phase := range b.Items {
		newItems[i] = copySpine(phase, id, status)
	}
	return &Backlog{Items: newItems}
}

// copySpine returns item unchanged (same pointer) if id is not found
// anywhere in its subtree; otherwise it returns a shallow copy of item
// with a new Children slice whose entries are either the original child
// pointer (subtree untouched) or a recursively copied spine.
func copySpine(item *Item, id string, status Status) *Item {
	if item.ID == id {
		clone := *item
		clone.Status = status
		clone.Children = item.Children
		return &clone
	}

	if findInSubtree(item, id) == nil {
		return item
	}

	clone := *item
	clone.Children = make([]*Item, len(item.Children))
	for i, child := range item.Children {
		clone.Children[i] = copySpine(child, id, status)
	}
	return &clone
}
