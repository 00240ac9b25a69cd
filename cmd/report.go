package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/git"
	"github.com/prplab/prpctl/internal/reporter"
	"github.com/prplab/prpctl/internal/state"
)

func newReportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <parent-item-id>",
		Short: "Render an end-of-feature summary",
		Long:  "Summarizes commits, completed/blocked/failed/skipped subtasks, iteration count, and cost for a subtree.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")

	return cmd
}

func runReport(cmd *cobra.Command, parentID, output string) error {
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

	gitManager := git.NewShellManager(workDir, "")

	gen := reporter.NewReportGenerator(mgr.Current().TaskRegistry, state.LogsDirPath(workDir), gitManager)
	report, err := gen.GenerateReport(parentID)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	rendered := reporter.FormatReport(report)

	if output != "" {
		if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write report to %s: %w", output, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
		return nil
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
