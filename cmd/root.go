// Package cmd implements the prpctl command-line interface: a thin
// cobra shell over the orchestration engine in internal/.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// GetConfigFile returns the value of the persistent --config flag.
func GetConfigFile() string {
	return cfgFile
}

// NewRootCmd constructs the prpctl root command and wires every subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prpctl",
		Short: "Drive a PRD through research, implementation, and validation",
		Long: `prpctl orchestrates a hierarchy of phases, milestones, tasks, and
subtasks decomposed from a product requirements document: it gates each
subtask on its dependencies, dispatches research artifact generation to
a bounded-concurrency queue, hands the result to an implementation
runtime, and commits on success.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./prp.yaml, falling back to the global config path)")

	root.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newStatusCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newDeltaCmd(),
		newRetryCmd(),
		newScopeCmd(),
		newReportCmd(),
	)

	return root
}

// Execute runs the root command and exits the process with status 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
