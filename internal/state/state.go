// Package state manages the .prp directory structure and state files.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Directory names for the .prp structure.
const (
	PrpDir     = ".prp"
	PlanDir    = "plan"
	StateDir   = "state"
	LogsDir    = "logs"
	ArchiveDir = "archive"
	PausedFile = "paused"
)

// PrpDirPath returns the path to the .prp directory.
func PrpDirPath(root string) string {
	return filepath.Join(root, PrpDir)
}

// PlanDirPath returns the path to the plan directory, which holds one
// subdirectory per session.
func PlanDirPath(root string) string {
	return filepath.Join(root, PrpDir, PlanDir)
}

// StateDirPath returns the path to the state directory.
func StateDirPath(root string) string {
	return filepath.Join(root, PrpDir, StateDir)
}

// LogsDirPath returns the path to the logs directory.
func LogsDirPath(root string) string {
	return filepath.Join(root, PrpDir, LogsDir)
}

// ArchiveDirPath returns the path to the archive directory.
func ArchiveDirPath(root string) string {
	return filepath.Join(root, PrpDir, ArchiveDir)
}

// EnsurePrpDir creates the .prp directory structure if it doesn't exist.
// It creates the following directories:
//   - .prp/
//   - .prp/plan/
//   - .prp/state/
//   - .prp/logs/
//   - .prp/archive/
//
// The function is idempotent - calling it multiple times is safe.
// All directories are created with 0755 permissions (rwxr-xr-x).
func EnsurePrpDir(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("root directory does not exist: %s", root)
	}

	dirs := []string{
		PrpDirPath(root),
		PlanDirPath(root),
		StateDirPath(root),
		LogsDirPath(root),
		ArchiveDirPath(root),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// PausedFilePath returns the path to the paused state file.
func PausedFilePath(root string) string {
	return filepath.Join(root, PrpDir, StateDir, PausedFile)
}

// ActiveItemIDFilePath returns the path to the stored active hierarchy item ID file.
// This tracks the most recently processed item (phase, milestone, task, or subtask)
// so a resumed run knows where it left off.
func ActiveItemIDFilePath(root string) string {
	return filepath.Join(root, PrpDir, StateDir, "active-item-id")
}

// GetStoredActiveItemID reads the stored active item ID from state.
// Returns empty string if the file doesn't exist.
func GetStoredActiveItemID(root string) (string, error) {
	path := ActiveItemIDFilePath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading stored active item ID: %w", err)
	}
	return string(data), nil
}

// SetStoredActiveItemID writes the active item ID to state.
func SetStoredActiveItemID(root string, itemID string) error {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return fmt.Errorf(".prp/state directory does not exist")
	}

	path := ActiveItemIDFilePath(root)
	if err := os.WriteFile(path, []byte(itemID), 0644); err != nil {
		return fmt.Errorf("writing stored active item ID: %w", err)
	}
	return nil
}

// ScopeFilePath returns the path to the stored scope file, which
// persists the scope most recently set by `prpctl scope` so that a
// subsequent `prpctl run` picks it up without re-specifying it.
func ScopeFilePath(root string) string {
	return filepath.Join(root, PrpDir, StateDir, "scope")
}

// GetStoredScope reads the stored scope as "<type>" or "<type>:<id>".
// Returns empty string if no scope has been set.
func GetStoredScope(root string) (string, error) {
	path := ScopeFilePath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading stored scope: %w", err)
	}
	return string(data), nil
}

// SetStoredScope writes the scope descriptor to state.
func SetStoredScope(root string, scope string) error {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return fmt.Errorf(".prp/state directory does not exist")
	}

	path := ScopeFilePath(root)
	if err := os.WriteFile(path, []byte(scope), 0644); err != nil {
		return fmt.Errorf("writing stored scope: %w", err)
	}
	return nil
}

// IsPaused checks if the orchestration loop is currently paused.
func IsPaused(root string) (bool, error) {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return false, fmt.Errorf(".prp/state directory does not exist")
	}

	pausedPath := PausedFilePath(root)
	_, err := os.Stat(pausedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check paused state: %w", err)
	}
	return true, nil
}

// SetPaused sets the paused state.
func SetPaused(root string, paused bool) error {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return fmt.Errorf(".prp/state directory does not exist")
	}

	pausedPath := PausedFilePath(root)

	if paused {
		file, err := os.Create(pausedPath)
		if err != nil {
			return fmt.Errorf("failed to create paused file: %w", err)
		}
		return file.Close()
	}

	err := os.Remove(pausedPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove paused file: %w", err)
	}
	return nil
}
