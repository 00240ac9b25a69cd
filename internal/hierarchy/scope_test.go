package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterLeaves(t *testing.T) {
	b := buildTwoPhaseBacklog()

	t.Run("scope all keeps every leaf", func(t *testing.T) {
		leaves := FilterLeaves(b, Scope{Type: ScopeAll})
		assert.Len(t, leaves, 2)
	})

	t.Run("scope milestone keeps matching subtree in DFS order", func(t *testing.T) {
		leaves := FilterLeaves(b, Scope{Type: ScopeMilestone, ID: "P1.M1"})
		assert.Len(t, leaves, 2)
		assert.Equal(t, "P1.M1.T1.S1", leaves[0].ID)
		assert.Equal(t, "P1.M1.T1.S2", leaves[1].ID)
	})

	t.Run("scope with nonexistent id yields empty queue, no error", func(t *testing.T) {
		leaves := FilterLeaves(b, Scope{Type: ScopeMilestone, ID: "P9.M9"})
		assert.Empty(t, leaves)
	})

	t.Run("scope task narrows further", func(t *testing.T) {
		leaves := FilterLeaves(b, Scope{Type: ScopeTask, ID: "P1.M1.T1"})
		assert.Len(t, leaves, 2)
	})

	t.Run("scope phase keeps whole phase", func(t *testing.T) {
		leaves := FilterLeaves(b, Scope{Type: ScopePhase, ID: "P1"})
		assert.Len(t, leaves, 2)

		leaves = FilterLeaves(b, Scope{Type: ScopePhase, ID: "P2"})
		assert.Empty(t, leaves)
	})

	t.Run("prefix matching does not confuse sibling ids", func(t *testing.T) {
		leaves := FilterLeaves(b, Scope{Type: ScopeMilestone, ID: "P1.M1"})
		for _, l := range leaves {
			assert.NotEqual(t, "P1.M10.T1.S1", l.ID)
		}
	})
}
