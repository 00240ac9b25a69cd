package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/state"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the orchestration loop",
		Long:  "Set the paused flag so a running or future `prpctl run` stops between subtasks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPause(cmd)
		},
	}
}

func runPause(cmd *cobra.Command) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	paused, err := state.IsPaused(workDir)
	if err != nil {
		return fmt.Errorf("failed to check paused state: %w", err)
	}
	if paused {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Already paused.")
		return nil
	}

	if err := state.SetPaused(workDir, true); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Paused. The loop will stop after the current subtask.")
	return nil
}
