package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/reporter"
	"github.com/prplab/prpctl/internal/state"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <parent-item-id>",
		Short: "Show live progress for a subtree",
		Long:  "Renders subtask counts (completed/ready/blocked/failed/skipped), the next ready subtask, and the most recent orchestrator step.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0])
		},
	}

	return cmd
}

func runStatus(cmd *cobra.Command, parentID string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	mgr, err := openCurrentSession(workDir, logger)
	if err != nil {
		return err
	}

	gen := reporter.NewStatusGeneratorWithStateDir(mgr.Current().TaskRegistry, state.LogsDirPath(workDir), state.StateDirPath(workDir))
	status, err := gen.GetStatus(parentID)
	if err != nil {
		return fmt.Errorf("failed to compute status: %w", err)
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), reporter.FormatStatus(status))
	return nil
}
