package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prplab/prpctl/internal/agent"
	"github.com/prplab/prpctl/internal/git"
	"github.com/prplab/prpctl/internal/orchestrator"
	"github.com/prplab/prpctl/internal/research"
	"github.com/prplab/prpctl/internal/runtime"
	"github.com/prplab/prpctl/internal/state"
)

func newRunCmd() *cobra.Command {
	var once bool
	var cacheBypass bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the execution queue until exhausted, paused, or interrupted",
		Long: `Builds an Orchestrator over the current session and the persisted
scope, then repeatedly calls ProcessNextItem until the queue is empty,
the ".prp/state/paused" flag is set, or SIGINT/SIGTERM is received.
Each processed subtask's status updates are flushed to disk before the
next one starts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, once, cacheBypass)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "process a single subtask and stop")
	cmd.Flags().BoolVar(&cacheBypass, "no-cache", false, "bypass the research queue's dedup cache and always regenerate")

	return cmd
}

func runRun(cmd *cobra.Command, once, cacheBypass bool) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(workDir)
	if err != nil {
		return err
	}

	if err := state.EnsurePrpDir(workDir); err != nil {
		return fmt.Errorf("failed to create .prp directory: %w", err)
	}

	if paused, err := state.IsPaused(workDir); err == nil && paused {
		if err := state.SetPaused(workDir, false); err != nil {
			return fmt.Errorf("failed to auto-resume: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Auto-resumed from a prior pause.")
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	mgr, err := openCurrentSession(workDir, logger)
	if err != nil {
		return err
	}

	scope, err := loadScope(workDir)
	if err != nil {
		return err
	}

	researchAgent := agent.NewSubprocessResearchAgent(cfg.ResearchAgent.Command, cfg.ResearchAgent.Args, state.LogsDirPath(workDir), logger)
	researchQueue := research.NewQueue(researchAgent, cfg.ResearchQueue.MaxConcurrent, logger)

	implRuntime := runtime.NewGateRuntime(workDir, cfg.Safety.AllowedCommands, cfg.Orchestrator.MaxFixAttempts, logger)

	gitManager := git.NewShellManager(workDir, cfg.Git.BranchPrefix)
	commitCapability := orchestrator.NewGitCommitCapability(gitManager)

	orch := orchestrator.New(orchestrator.Config{
		SessionManager: mgr,
		ResearchQueue:  researchQueue,
		Runtime:        implRuntime,
		Commit:         commitCapability,
		Logger:         logger,
		Scope:          scope,
		CacheBypass:    cacheBypass,
		MaxRetries:     cfg.Orchestrator.MaxTaskRetries,
		LogsDir:        state.LogsDirPath(workDir),
	})

	if err := orch.ValidateDependencyGraph(); err != nil {
		return fmt.Errorf("dependency graph invalid: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, stopping after current subtask...")
		cancel()
	}()

	waitOpts := orchestrator.WaitOptions{
		Timeout:  time.Duration(cfg.Orchestrator.DependencyWaitTimeoutSeconds) * time.Second,
		Interval: time.Duration(cfg.Orchestrator.DependencyPollIntervalMillis) * time.Millisecond,
	}

	processed := 0
	var lastErr error

	for {
		if paused, pErr := state.IsPaused(workDir); pErr == nil && paused {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Paused; run `prpctl resume` to continue.")
			break
		}

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		default:
		}
		if lastErr != nil {
			break
		}

		hasMore, procErr := orch.ProcessNextItem(ctx, waitOpts)
		if procErr != nil {
			lastErr = procErr
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "subtask failed: %v\n", procErr)
		}
		if hasMore {
			processed++
		}

		if flushErr := mgr.FlushUpdates(); flushErr != nil {
			return fmt.Errorf("failed to persist progress: %w", flushErr)
		}

		if !hasMore || once {
			break
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Processed %d subtask(s).\n", processed)

	return nil
}
