package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/state"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused orchestration loop",
		Long:  "Clear the paused flag. `prpctl run` also auto-resumes, so this is for clearing the flag without starting a run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd)
		},
	}
}

func runResume(cmd *cobra.Command) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	paused, err := state.IsPaused(workDir)
	if err != nil {
		return fmt.Errorf("failed to check paused state: %w", err)
	}
	if !paused {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not paused.")
		return nil
	}

	if err := state.SetPaused(workDir, false); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Resumed.")
	return nil
}
