package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/session"
	"github.com/prplab/prpctl/internal/state"
)

const testPRDContent = `# Example Product

## Objectives

This PRD exists only to satisfy the minimum-byte-length validation the
session package applies to any document handed to "prpctl init". It
describes nothing real.
`

// chdir switches the working directory to dir for the duration of the
// test and restores it afterwards.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// writePRD writes a PRD file long enough to pass validation and returns
// its path.
func writePRD(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(testPRDContent), 0o644))
	return path
}

// sampleBacklog returns a minimal, valid one-phase/one-milestone/
// one-task/one-subtask hierarchy.
func sampleBacklog(subtaskStatus hierarchy.Status) *hierarchy.Backlog {
	return &hierarchy.Backlog{
		Items: []*hierarchy.Item{
			{
				Kind:   hierarchy.KindPhase,
				ID:     "P1",
				Title:  "Phase One",
				Status: hierarchy.StatusPlanned,
				Children: []*hierarchy.Item{
					{
						Kind:   hierarchy.KindMilestone,
						ID:     "P1.M1",
						Title:  "Milestone One",
						Status: hierarchy.StatusPlanned,
						Children: []*hierarchy.Item{
							{
								Kind:   hierarchy.KindTask,
								ID:     "P1.M1.T1",
								Title:  "Task One",
								Status: hierarchy.StatusPlanned,
								Children: []*hierarchy.Item{
									{
										Kind:   hierarchy.KindSubtask,
										ID:     "P1.M1.T1.S1",
										Title:  "Subtask One",
										Status: subtaskStatus,
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// setupSession initializes a .prp directory under tmpDir with one
// session whose hierarchy is sampleBacklog(subtaskStatus), and returns
// the session's directory path.
func setupSession(t *testing.T, tmpDir string, subtaskStatus hierarchy.Status) string {
	t.Helper()

	require.NoError(t, state.EnsurePrpDir(tmpDir))

	prdPath := writePRD(t, tmpDir, "prd.md")

	mgr := session.NewManager(state.PlanDirPath(tmpDir), nil)
	s, err := mgr.Initialize(prdPath)
	require.NoError(t, err)

	require.NoError(t, session.WriteTasks(s.Metadata.Path, sampleBacklog(subtaskStatus)))

	return s.Metadata.Path
}
