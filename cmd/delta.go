package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeltaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delta <new-prd-file>",
		Short: "Create a delta session against a revised PRD",
		Long: `Creates a new session, linked to the current one as its parent,
snapshotting the revised PRD and printing a line-level summary of what
changed. Patching the hierarchy itself (marking affected items Obsolete
or re-opening them) requires a Delta Analyzer's structured Analysis,
which is an external collaborator this engine does not bundle; run
your analyzer against the two PRD snapshots under the new session's
directory and apply its Analysis via the Session Manager yourself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelta(cmd, args[0])
		},
	}
}

func runDelta(cmd *cobra.Command, newPRDPath string) error {
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

	delta, err := mgr.CreateDeltaSession(newPRDPath)
	if err != nil {
		return fmt.Errorf("failed to create delta session: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delta session %s created (parent: %s)\n", delta.Session.Metadata.ID, delta.Session.Metadata.ParentSession)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", delta.DiffSummary)

	return nil
}
