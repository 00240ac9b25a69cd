package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/prplab/prpctl/internal/config"
	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/session"
	"github.com/prplab/prpctl/internal/state"
)

// loadConfig loads configuration for the current working directory,
// honoring the persistent --config flag.
func loadConfig(workDir string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithFile(workDir, GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openCurrentSession loads the session with the highest sequence number
// under workDir's plan directory. If no session exists yet it returns an
// error telling the operator to run `prpctl init` first.
func openCurrentSession(workDir string, logger *zap.Logger) (*session.Manager, error) {
	planDir := state.PlanDirPath(workDir)

	meta, err := session.FindLatestSession(planDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if meta == nil {
		return nil, fmt.Errorf("no session found under %s: run `prpctl init <prd-file>` first", planDir)
	}

	mgr := session.NewManager(planDir, logger)
	if _, err := mgr.LoadSession(meta.Path); err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", meta.ID, err)
	}
	return mgr, nil
}

// parseScope parses a scope descriptor of the form "all", "phase:<id>",
// "milestone:<id>", or "task:<id>" as stored by `prpctl scope`.
func parseScope(s string) (hierarchy.Scope, error) {
	if s == "" {
		return hierarchy.Scope{Type: hierarchy.ScopeAll}, nil
	}

	typ, id := s, ""
	for i, r := range s {
		if r == ':' {
			typ, id = s[:i], s[i+1:]
			break
		}
	}

	switch hierarchy.ScopeType(typ) {
	case hierarchy.ScopeAll:
		return hierarchy.Scope{Type: hierarchy.ScopeAll}, nil
	case hierarchy.ScopePhase, hierarchy.ScopeMilestone, hierarchy.ScopeTask:
		if id == "" {
			return hierarchy.Scope{}, fmt.Errorf("scope %q requires an id", typ)
		}
		return hierarchy.Scope{Type: hierarchy.ScopeType(typ), ID: id}, nil
	default:
		return hierarchy.Scope{}, fmt.Errorf("unknown scope type %q", typ)
	}
}

// formatScope renders a scope back to its persisted descriptor form.
func formatScope(scope hierarchy.Scope) string {
	if scope.Type == "" || scope.Type == hierarchy.ScopeAll {
		return string(hierarchy.ScopeAll)
	}
	return fmt.Sprintf("%s:%s", scope.Type, scope.ID)
}

// loadScope reads the persisted scope for workDir, defaulting to ScopeAll.
func loadScope(workDir string) (hierarchy.Scope, error) {
	stored, err := state.GetStoredScope(workDir)
	if err != nil {
		return hierarchy.Scope{}, fmt.Errorf("failed to read stored scope: %w", err)
	}
	return parseScope(stored)
}

// newLogger builds the ambient structured logger used across commands.
func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func getWorkDir() (string, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return workDir, nil
}
