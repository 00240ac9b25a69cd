package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/state"
)

func newRetryCmd() *cobra.Command {
	var taskID string
	var feedback string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Reset a failed subtask back to Planned",
		Long: `Resets a Failed subtask's status to Planned so the next "prpctl run"
picks it up again. Optional feedback is saved to
.prp/state/feedback-<id>.txt and shown by "prpctl status" while that
subtask is the next one; the research agent and implementation runtime
do not read it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(cmd, taskID, feedback)
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "id of the subtask to retry (required)")
	cmd.Flags().StringVar(&feedback, "feedback", "", "operator feedback to attach to the retried attempt")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func runRetry(cmd *cobra.Command, taskID, feedback string) error {
	if taskID == "" {
		return fmt.Errorf("--task is required")
	}

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

	item, ok := hierarchy.FindItem(mgr.Current().TaskRegistry, taskID)
	if !ok {
		return fmt.Errorf("subtask %q not found", taskID)
	}
	if !item.IsLeaf() {
		return fmt.Errorf("%q is not a subtask leaf", taskID)
	}
	if item.Status == hierarchy.StatusComplete {
		return fmt.Errorf("subtask %q already completed; nothing to retry", taskID)
	}

	if err := mgr.UpdateItemStatus(taskID, hierarchy.StatusPlanned); err != nil {
		return fmt.Errorf("failed to reset status: %w", err)
	}
	if err := mgr.FlushUpdates(); err != nil {
		return fmt.Errorf("failed to persist status: %w", err)
	}

	if feedback != "" {
		feedbackPath := filepath.Join(state.StateDirPath(workDir), fmt.Sprintf("feedback-%s.txt", taskID))
		if err := os.WriteFile(feedbackPath, []byte(feedback), 0o644); err != nil {
			return fmt.Errorf("failed to write feedback: %w", err)
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Subtask %s reset to Planned.\n", taskID)
	return nil
}
