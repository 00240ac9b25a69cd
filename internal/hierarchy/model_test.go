package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subtask(id, title string, deps ...string) *Item {
	return &Item{Kind: KindSubtask, ID: id, Title: title, Status: StatusPlanned, Dependencies: deps}
}

func TestItem_Validate(t *testing.T) {
	t.Run("requires id", func(t *testing.T) {
		item := &Item{Kind: KindPhase, Title: "x", Status: StatusPlanned}
		assert.Error(t, item.Validate())
	})

	t.Run("requires title", func(t *testing.T) {
		item := &Item{Kind: KindPhase, ID: "P1", Status: StatusPlanned}
		assert.Error(t, item.Validate())
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		item := &Item{Kind: "Bogus", ID: "P1", Title: "x", Status: StatusPlanned}
		assert.Error(t, item.Validate())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		item := &Item{Kind: KindPhase, ID: "P1", Title: "x", Status: "Bogus"}
		assert.Error(t, item.Validate())
	})

	t.Run("rejects subtask with children", func(t *testing.T) {
		item := subtask("P1.M1.T1.S1", "s")
		item.Children = []*Item{subtask("P1.M1.T1.S1.S1", "bad")}
		assert.Error(t, item.Validate())
	})

	t.Run("rejects mismatched child kind", func(t *testing.T) {
		phase := &Item{Kind: KindPhase, ID: "P1", Title: "p", Status: StatusPlanned}
		phase.Children = []*Item{subtask("P1.S1", "wrong kind")}
		assert.Error(t, phase.Validate())
	})

	t.Run("valid subtask with contract definition", func(t *testing.T) {
		item := subtask("P1.M1.T1.S1", "s")
		item.ContextScope = "CONTRACT DEFINITION:\n1. RESEARCH NOTE:\nnote\n2. INPUT:\nin\n3. LOGIC:\nlogic\n4. OUTPUT:\nout"
		assert.NoError(t, item.Validate())
	})

	t.Run("rejects invalid contract definition", func(t *testing.T) {
		item := subtask("P1.M1.T1.S1", "s")
		item.ContextScope = "not a contract"
		assert.Error(t, item.Validate())
	})
}

func buildSampleBacklog() *Backlog {
	s1 := subtask("P1.M1.T1.S1", "Subtask 1")
	s2 := subtask("P1.M1.T1.S2", "Subtask 2", "P1.M1.T1.S1")
	task := &Item{Kind: KindTask, ID: "P1.M1.T1", Title: "Task 1", Status: StatusPlanned, Children: []*Item{s1, s2}}
	milestone := &Item{Kind: KindMilestone, ID: "P1.M1", Title: "Milestone 1", Status: StatusPlanned, Children: []*Item{task}}
	phase := &Item{Kind: KindPhase, ID: "P1", Title: "Phase 1", Status: StatusPlanned, Children: []*Item{milestone}}
	return &Backlog{Items: []*Item{phase}}
}

func TestBacklog_Validate(t *testing.T) {
	t.Run("valid backlog passes", func(t *testing.T) {
		b := buildSampleBacklog()
		assert.NoError(t, b.Validate())
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		b := buildSampleBacklog()
		b.Items[0].Children[0].Children[0].Children[1].ID = "P1.M1.T1.S1"
		assert.Error(t, b.Validate())
	})

	t.Run("rejects dangling dependency", func(t *testing.T) {
		b := buildSampleBacklog()
		b.Items[0].Children[0].Children[0].Children[0].Dependencies = []string{"P9.M9.T9.S9"}
		err := b.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist in backlog")
	})

	t.Run("rejects non-phase root item", func(t *testing.T) {
		b := buildSampleBacklog()
		b.Items[0].Kind = KindMilestone
		assert.Error(t, b.Validate())
	})
}
