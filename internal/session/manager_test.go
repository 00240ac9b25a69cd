package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prplab/prpctl/internal/hierarchy"
)

func writePRD(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prd.md")
	require.NoError(t, os.WriteFile(path, []byte(content+string(make([]byte, 100))), 0644))
	return path
}

func TestManager_Initialize_CreatesSession(t *testing.T) {
	planDir := filepath.Join(t.TempDir(), "plan")
	mgr := NewManager(planDir, nil)

	prdPath := writePRD(t, "# T\n\n## P1\n")
	state, err := mgr.Initialize(prdPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(planDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^001_[0-9a-f]{12}$`, entries[0].Name())

	snapshot, err := os.ReadFile(filepath.Join(planDir, entries[0].Name(), PRDSnapshotFile))
	require.NoError(t, err)
	assert.Equal(t, state.PRDSnapshot, snapshot)

	assert.Empty(t, state.Metadata.ParentSession)
	assert.Empty(t, state.TaskRegistry.Items)
}

func TestManager_Initialize_HashStableReload(t *testing.T) {
	planDir := filepath.Join(t.TempDir(), "plan")

	content := "# T\n\n## P1 identical content across both paths\n"
	prdPathA := filepath.Join(t.TempDir(), "a.md")
	prdPathB := filepath.Join(t.TempDir(), "b.md")
	full := content + string(make([]byte, 100))
	require.NoError(t, os.WriteFile(prdPathA, []byte(full), 0644))
	require.NoError(t, os.WriteFile(prdPathB, []byte(full), 0644))

	mgr1 := NewManager(planDir, nil)
	state1, err := mgr1.Initialize(prdPathA)
	require.NoError(t, err)

	mgr2 := NewManager(planDir, nil)
	state2, err := mgr2.Initialize(prdPathB)
	require.NoError(t, err)

	assert.Equal(t, state1.Metadata.ID, state2.Metadata.ID)

	entries, err := os.ReadDir(planDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestManager_Initialize_PRDChangeYieldsNewSession(t *testing.T) {
	planDir := filepath.Join(t.TempDir(), "plan")
	prdPath := filepath.Join(t.TempDir(), "prd.md")

	original := "# T\n\n## P1 original content here for testing\n" + string(make([]byte, 100))
	require.NoError(t, os.WriteFile(prdPath, []byte(original), 0644))

	mgr := NewManager(planDir, nil)
	state1, err := mgr.Initialize(prdPath)
	require.NoError(t, err)

	changed := "# T\n\n## P1 changed! content here for testing\n" + string(make([]byte, 100))
	require.NoError(t, os.WriteFile(prdPath, []byte(changed), 0644))

	state2, err := mgr.Initialize(prdPath)
	require.NoError(t, err)

	assert.NotEqual(t, state1.Metadata.Hash, state2.Metadata.Hash)

	entries, err := os.ReadDir(planDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestManager_UpdateAndFlush_Coalesces(t *testing.T) {
	planDir := filepath.Join(t.TempDir(), "plan")
	mgr := NewManager(planDir, nil)

	prdPath := writePRD(t, "# T\n\n## P1\n")
	state, err := mgr.Initialize(prdPath)
	require.NoError(t, err)

	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	s2 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S2", Title: "s2", Status: hierarchy.StatusPlanned}
	s3 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S3", Title: "s3", Status: hierarchy.StatusPlanned}
	task := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s1, s2, s3}}
	milestone := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{task}}
	phase := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{milestone}}
	state.TaskRegistry = &hierarchy.Backlog{Items: []*hierarchy.Item{phase}}
	require.NoError(t, WriteTasks(state.Metadata.Path, state.TaskRegistry))

	require.NoError(t, mgr.UpdateItemStatus("P1.M1.T1.S1", hierarchy.StatusComplete))
	require.NoError(t, mgr.UpdateItemStatus("P1.M1.T1.S2", hierarchy.StatusFailed))
	require.NoError(t, mgr.UpdateItemStatus("P1.M1.T1.S3", hierarchy.StatusImplementing))

	onDisk, err := ReadTasks(state.Metadata.Path)
	require.NoError(t, err)
	diskS1, _ := hierarchy.FindItem(onDisk, "P1.M1.T1.S1")
	assert.Equal(t, hierarchy.StatusPlanned, diskS1.Status, "disk unchanged before flush")

	require.NoError(t, mgr.FlushUpdates())

	onDisk, err = ReadTasks(state.Metadata.Path)
	require.NoError(t, err)
	diskS1, _ = hierarchy.FindItem(onDisk, "P1.M1.T1.S1")
	diskS2, _ := hierarchy.FindItem(onDisk, "P1.M1.T1.S2")
	diskS3, _ := hierarchy.FindItem(onDisk, "P1.M1.T1.S3")
	assert.Equal(t, hierarchy.StatusComplete, diskS1.Status)
	assert.Equal(t, hierarchy.StatusFailed, diskS2.Status)
	assert.Equal(t, hierarchy.StatusImplementing, diskS3.Status)

	entries, err := os.ReadDir(state.Metadata.Path)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestManager_CreateDeltaSession(t *testing.T) {
	planDir := filepath.Join(t.TempDir(), "plan")
	mgr := NewManager(planDir, nil)

	prdPath := writePRD(t, "# T\n\n## P1\n")
	state, err := mgr.Initialize(prdPath)
	require.NoError(t, err)

	newPRDPath := writePRD(t, "# T\n\n## P1 revised\n")
	delta, err := mgr.CreateDeltaSession(newPRDPath)
	require.NoError(t, err)

	assert.Equal(t, state.Metadata.ID, delta.Session.Metadata.ParentSession)
	assert.NotEmpty(t, delta.DiffSummary)

	parent, err := ReadParentSession(delta.Session.Metadata.Path)
	require.NoError(t, err)
	assert.Equal(t, state.Metadata.ID, parent)
}

func TestManager_CreateDeltaSession_RequiresCurrentSession(t *testing.T) {
	planDir := filepath.Join(t.TempDir(), "plan")
	mgr := NewManager(planDir, nil)

	newPRDPath := writePRD(t, "# T\n\n## P1\n")
	_, err := mgr.CreateDeltaSession(newPRDPath)
	assert.ErrorIs(t, err, ErrNoCurrentSession)
}
