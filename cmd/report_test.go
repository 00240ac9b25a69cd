package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prplab/prpctl/internal/hierarchy"
)

func TestReportCommand_Structure(t *testing.T) {
	cmd := newReportCmd()
	assert.Equal(t, "report <parent-item-id>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("output"))
}

func TestReportCommand_PrintsToStdoutByDefault(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	setupSession(t, tmpDir, hierarchy.StatusComplete)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"report", "P1"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Phase One")
}

func TestReportCommand_WritesToOutputFile(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	setupSession(t, tmpDir, hierarchy.StatusComplete)

	outputPath := filepath.Join(tmpDir, "report.md")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"report", "P1", "--output", outputPath})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Report written to")

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Phase One")
}
