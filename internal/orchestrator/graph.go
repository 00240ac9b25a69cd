package orchestrator

import (
	"fmt"
	"sort"

	"github.com/prplab/prpctl/internal/hierarchy"
)

// Graph represents a directed dependency graph of leaf subtasks. Edges
// point from a subtask to its dependencies (the subtasks it depends on).
type Graph struct {
	nodes        map[string]bool
	edges        map[string][]string
	reverseEdges map[string][]string
}

// BuildGraph constructs a dependency graph from a list of leaf subtasks.
// Returns an error if any subtask references a dependency that doesn't
// exist among the given leaves.
func BuildGraph(leaves []*hierarchy.Item) (*Graph, error) {
	g := &Graph{
		nodes:        make(map[string]bool),
		edges:        make(map[string][]string),
		reverseEdges: make(map[string][]string),
	}

	for _, leaf := range leaves {
		g.nodes[leaf.ID] = true
	}

	for _, leaf := range leaves {
		for _, dep := range leaf.Dependencies {
			if !g.nodes[dep] {
				return nil, fmt.Errorf("subtask %q depends on %q, which is not in scope", leaf.ID, dep)
			}
			g.edges[leaf.ID] = append(g.edges[leaf.ID], dep)
			g.reverseEdges[dep] = append(g.reverseEdges[dep], leaf.ID)
		}
	}

	return g, nil
}

// Dependencies returns the subtask ids that the given id depends on.
func (g *Graph) Dependencies(id string) []string {
	deps := g.edges[id]
	if len(deps) == 0 {
		return nil
	}
	result := make([]string, len(deps))
	copy(result, deps)
	return result
}

// DetectCycle reports a cycle path if one exists, or nil otherwise.
// Uses depth-first search with coloring (white/gray/black).
func (g *Graph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	nodes := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	var path []string
	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		path = append(path, node)

		for _, dep := range g.edges[node] {
			if color[dep] == gray {
				cycle := []string{dep}
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append(cycle, path[i])
					if path[i] == dep {
						break
					}
				}
				return cycle
			}
			if color[dep] == white {
				if cyclePath := dfs(dep); cyclePath != nil {
					return cyclePath
				}
			}
		}

		path = path[:len(path)-1]
		color[node] = black
		return nil
	}

	for _, node := range nodes {
		if color[node] == white {
			if cyclePath := dfs(node); cyclePath != nil {
				return cyclePath
			}
		}
	}

	return nil
}
