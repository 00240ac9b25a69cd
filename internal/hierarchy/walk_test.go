package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTwoPhaseBacklog() *Backlog {
	mk := func(kind Kind, id, title string, children ...*Item) *Item {
		return &Item{Kind: kind, ID: id, Title: title, Status: StatusPlanned, Children: children}
	}

	s1 := subtask("P1.M1.T1.S1", "s1")
	s2 := subtask("P1.M1.T1.S2", "s2")
	t1 := mk(KindTask, "P1.M1.T1", "t1", s1, s2)
	m1 := mk(KindMilestone, "P1.M1", "m1", t1)
	m2 := mk(KindMilestone, "P1.M2", "m2")
	p1 := mk(KindPhase, "P1", "p1", m1, m2)
	p2 := mk(KindPhase, "P2", "p2")

	return &Backlog{Items: []*Item{p1, p2}}
}

func TestFindItem(t *testing.T) {
	b := buildTwoPhaseBacklog()

	t.Run("finds by exact id", func(t *testing.T) {
		item, ok := FindItem(b, "P1.M1.T1.S2")
		require.True(t, ok)
		assert.Equal(t, "s2", item.Title)
	})

	t.Run("does not match prefixes", func(t *testing.T) {
		_, ok := FindItem(b, "P1.M1.T1.S")
		assert.False(t, ok)
	})

	t.Run("missing id returns false", func(t *testing.T) {
		_, ok := FindItem(b, "P9.M9")
		assert.False(t, ok)
	})
}

func TestWalk_DFSPreOrder(t *testing.T) {
	b := buildTwoPhaseBacklog()

	var ids []string
	for _, entry := range Walk(b) {
		ids = append(ids, entry.Item.ID)
	}

	assert.Equal(t, []string{
		"P1", "P1.M1", "P1.M1.T1", "P1.M1.T1.S1", "P1.M1.T1.S2", "P1.M2", "P2",
	}, ids)
}

func TestLeaves(t *testing.T) {
	b := buildTwoPhaseBacklog()
	leaves := Leaves(b)

	var ids []string
	for _, l := range leaves {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"P1.M1.T1.S1", "P1.M1.T1.S2"}, ids)
}

func TestUpdateStatus_ExactlyOneNode(t *testing.T) {
	b := buildTwoPhaseBacklog()

	updated := UpdateStatus(b, "P1.M1", StatusImplementing)

	m1, ok := FindItem(updated, "P1.M1")
	require.True(t, ok)
	assert.Equal(t, StatusImplementing, m1.Status)

	// Descendants and siblings unaffected.
	t1, _ := FindItem(updated, "P1.M1.T1")
	assert.Equal(t, StatusPlanned, t1.Status)
	p1, _ := FindItem(updated, "P1")
	assert.Equal(t, StatusPlanned, p1.Status)

	// Original backlog is untouched.
	origM1, _ := FindItem(b, "P1.M1")
	assert.Equal(t, StatusPlanned, origM1.Status)
}

func TestUpdateStatus_SubtaskOnly(t *testing.T) {
	b := buildTwoPhaseBacklog()

	updated := UpdateStatus(b, "P1.M1.T1.S1", StatusComplete)

	s1, _ := FindItem(updated, "P1.M1.T1.S1")
	assert.Equal(t, StatusComplete, s1.Status)

	s2, _ := FindItem(updated, "P1.M1.T1.S2")
	assert.Equal(t, StatusPlanned, s2.Status)
}

func TestUpdateStatus_MissingIDReturnsUnchanged(t *testing.T) {
	b := buildTwoPhaseBacklog()

	updated := UpdateStatus(b, "P9.M9", StatusComplete)

	assert.Same(t, b, updated)
}

func TestUpdateStatus_Idempotent(t *testing.T) {
	b := buildTwoPhaseBacklog()

	once := UpdateStatus(b, "P1.M1.T1.S1", StatusComplete)
	twice := UpdateStatus(once, "P1.M1.T1.S1", StatusComplete)

	s1Once, _ := FindItem(once, "P1.M1.T1.S1")
	s1Twice, _ := FindItem(twice, "P1.M1.T1.S1")
	assert.Equal(t, s1Once.Status, s1Twice.Status)
}

func TestUpdateStatus_SharesUntouchedSubtrees(t *testing.T) {
	b := buildTwoPhaseBacklog()

	updated := UpdateStatus(b, "P1.M1.T1.S1", StatusComplete)

	// P2 subtree is untouched: same pointer shared between input and output.
	origP2 := b.Items[1]
	updatedP2 := updated.Items[1]
	assert.Same(t, origP2, updatedP2)
}
