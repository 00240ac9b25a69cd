package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/state"
)

func newScopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope [all|phase|milestone|task] [id]",
		Short: "View or set the scope filter applied to subsequent runs",
		Long: `With no arguments, prints the currently persisted scope. With a scope
type and, for phase/milestone/task, an id, persists a new scope that
subsequent "prpctl run" invocations restrict their execution queue to.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScope(cmd, args)
		},
	}

	return cmd
}

func runScope(cmd *cobra.Command, args []string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		scope, err := loadScope(workDir)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Current scope: %s\n", formatScope(scope))
		return nil
	}

	typ := args[0]
	id := ""
	if len(args) == 2 {
		id = args[1]
	}

	scope, err := parseScope(joinScopeArg(typ, id))
	if err != nil {
		return err
	}

	if err := state.SetStoredScope(workDir, formatScope(scope)); err != nil {
		return fmt.Errorf("failed to set scope: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scope set to: %s\n", formatScope(scope))
	return nil
}

func joinScopeArg(typ, id string) string {
	if typ == string(hierarchy.ScopeAll) || id == "" {
		return typ
	}
	return typ + ":" + id
}
