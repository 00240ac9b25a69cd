package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prplab/prpctl/internal/state"
)

func TestResumeCommand_Structure(t *testing.T) {
	cmd := newResumeCmd()
	assert.Equal(t, "resume", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

func TestResumeCommand_NotPaused(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	require.NoError(t, state.EnsurePrpDir(tmpDir))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"resume"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Not paused")
}

func TestResumeCommand_ClearsPausedFlag(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	require.NoError(t, state.EnsurePrpDir(tmpDir))
	require.NoError(t, state.SetPaused(tmpDir, true))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"resume"})

	require.NoError(t, root.Execute())

	paused, err := state.IsPaused(tmpDir)
	require.NoError(t, err)
	assert.False(t, paused)
	assert.Contains(t, out.String(), "Resumed")
}
