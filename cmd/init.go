package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/session"
	"github.com/prplab/prpctl/internal/state"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <prd-file>",
		Short: "Initialize or resume a session for a PRD",
		Long: `Reads and validates a product requirements document, then loads the
session whose PRD hash matches it, or creates a new empty one. The
resulting hierarchy is populated by an upstream planner; prpctl does
not decompose the PRD itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0])
		},
	}

	return cmd
}

func runInit(cmd *cobra.Command, prdPath string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	if err := state.EnsurePrpDir(workDir); err != nil {
		return fmt.Errorf("failed to create .prp directory: %w", err)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	mgr := session.NewManager(state.PlanDirPath(workDir), logger)
	s, err := mgr.Initialize(prdPath)
	if err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	itemCount := len(hierarchy.Walk(s.TaskRegistry))

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session %s (hash %s)\n", s.Metadata.ID, s.Metadata.Hash)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Hierarchy contains %d item(s)\n", itemCount)
	if itemCount == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Hierarchy is empty: populate tasks.json via your planner before running `prpctl run`.")
	}

	return nil
}
