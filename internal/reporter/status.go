package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/record"
)

// TaskCounts holds the count of descendant leaf subtasks in each state.
type TaskCounts struct {
	// Total is the total number of descendant leaf subtasks.
	Total int

	// Completed is the count of leaves with status Complete.
	Completed int

	// Ready is the count of Planned leaves whose dependencies are all Complete.
	Ready int

	// Blocked is the count of Planned leaves with at least one incomplete dependency.
	Blocked int

	// Failed is the count of leaves with status Failed.
	Failed int

	// Skipped is the count of leaves with status Obsolete.
	Skipped int
}

// LastStepInfo summarizes the most recently completed orchestrator step.
type LastStepInfo struct {
	StepID       string
	SubtaskID    string
	SubtaskTitle string
	Outcome      record.Outcome
	EndTime      time.Time
	LogPath      string
}

// Status is the live status snapshot for a parent item.
type Status struct {
	// ParentItemID is the ID of the parent item being reported on.
	ParentItemID string

	Counts TaskCounts

	// NextSubtask is the first ready leaf in DFS order, if any.
	NextSubtask *hierarchy.Item

	LastStep *LastStepInfo

	// NextSubtaskFeedback is operator feedback recorded for NextSubtask, if any.
	NextSubtaskFeedback string
}

// StatusGenerator derives a Status from a backlog snapshot and the
// orchestrator's step record and feedback directories.
type StatusGenerator struct {
	backlog  *hierarchy.Backlog
	logsDir  string
	stateDir string
}

// NewStatusGenerator creates a status generator without feedback lookup.
func NewStatusGenerator(backlog *hierarchy.Backlog, logsDir string) *StatusGenerator {
	return &StatusGenerator{backlog: backlog, logsDir: logsDir}
}

// NewStatusGeneratorWithStateDir creates a status generator that also
// reads operator feedback files from stateDir.
func NewStatusGeneratorWithStateDir(backlog *hierarchy.Backlog, logsDir, stateDir string) *StatusGenerator {
	return &StatusGenerator{backlog: backlog, logsDir: logsDir, stateDir: stateDir}
}

// GetStatus returns the current status for the subtree rooted at parentItemID.
func (g *StatusGenerator) GetStatus(parentItemID string) (*Status, error) {
	status := &Status{ParentItemID: parentItemID}

	descendants := g.gatherDescendantLeaves(parentItemID)

	statusByID := make(map[string]hierarchy.Status)
	for _, leaf := range hierarchy.Leaves(g.backlog) {
		statusByID[leaf.ID] = leaf.Status
	}

	status.Counts.Total = len(descendants)
	for _, leaf := range descendants {
		switch leaf.Status {
		case hierarchy.StatusComplete:
			status.Counts.Completed++
		case hierarchy.StatusFailed:
			status.Counts.Failed++
		case hierarchy.StatusObsolete:
			status.Counts.Skipped++
		case hierarchy.StatusPlanned:
			if isReady(leaf, statusByID) {
				status.Counts.Ready++
			} else {
				status.Counts.Blocked++
			}
		}
	}

	for _, leaf := range descendants {
		if leaf.Status == hierarchy.StatusPlanned && isReady(leaf, statusByID) {
			status.NextSubtask = leaf
			break
		}
	}

	if status.NextSubtask != nil && g.stateDir != "" {
		feedbackPath := filepath.Join(g.stateDir, fmt.Sprintf("feedback-%s.txt", status.NextSubtask.ID))
		if feedbackBytes, err := os.ReadFile(feedbackPath); err == nil {
			status.NextSubtaskFeedback = string(feedbackBytes)
		}
	}

	if g.logsDir != "" {
		rec, path, err := FindLatestStepRecord(g.logsDir)
		if err == nil && rec != nil {
			title := ""
			if item, ok := hierarchy.FindItem(g.backlog, rec.SubtaskID); ok {
				title = item.Title
			}
			status.LastStep = &LastStepInfo{
				StepID:       rec.StepID,
				SubtaskID:    rec.SubtaskID,
				SubtaskTitle: title,
				Outcome:      rec.Outcome,
				EndTime:      rec.EndTime,
				LogPath:      path,
			}
		}
	}

	return status, nil
}

// isReady reports whether every one of leaf's dependencies is Complete.
func isReady(leaf *hierarchy.Item, statusByID map[string]hierarchy.Status) bool {
	for _, dep := range leaf.Dependencies {
		if statusByID[dep] != hierarchy.StatusComplete {
			return false
		}
	}
	return true
}

// gatherDescendantLeaves returns every leaf subtask under parentItemID, in DFS order.
func (g *StatusGenerator) gatherDescendantLeaves(parentItemID string) []*hierarchy.Item {
	parent, ok := hierarchy.FindItem(g.backlog, parentItemID)
	if !ok {
		return nil
	}

	var leaves []*hierarchy.Item
	var visit func(item *hierarchy.Item)
	visit = func(item *hierarchy.Item) {
		if item.IsLeaf() {
			leaves = append(leaves, item)
			return
		}
		for _, child := range item.Children {
			visit(child)
		}
	}
	visit(parent)
	return leaves
}

// FindLatestStepRecord finds the most recently completed step record in
// logsDir. A missing directory yields nil, "", nil rather than an error.
func FindLatestStepRecord(logsDir string) (*record.StepRecord, string, error) {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading logs directory: %w", err)
	}

	var latest *record.StepRecord
	var latestPath string
	var latestEndTime time.Time

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, "step-") || !strings.HasSuffix(name, ".json") {
			continue
		}

		path := filepath.Join(logsDir, name)
		rec, err := record.LoadRecord(path)
		if err != nil {
			continue
		}

		if latest == nil || rec.EndTime.After(latestEndTime) {
			latest = rec
			latestPath = path
			latestEndTime = rec.EndTime
		}
	}

	return latest, latestPath, nil
}

// FormatStatus renders a status for CLI display.
func FormatStatus(status *Status) string {
	var sb strings.Builder

	sb.WriteString("## Status\n\n")
	_, _ = fmt.Fprintf(&sb, "Parent: %s\n\n", status.ParentItemID)

	sb.WriteString("### Task Counts\n")
	_, _ = fmt.Fprintf(&sb, "Total: %d\n", status.Counts.Total)
	_, _ = fmt.Fprintf(&sb, "Completed: %d\n", status.Counts.Completed)
	_, _ = fmt.Fprintf(&sb, "Ready: %d\n", status.Counts.Ready)
	_, _ = fmt.Fprintf(&sb, "Blocked: %d\n", status.Counts.Blocked)
	_, _ = fmt.Fprintf(&sb, "Failed: %d\n", status.Counts.Failed)
	_, _ = fmt.Fprintf(&sb, "Skipped: %d\n", status.Counts.Skipped)
	sb.WriteString("\n")

	sb.WriteString("### Next Subtask\n")
	if status.NextSubtask != nil {
		_, _ = fmt.Fprintf(&sb, "Next Subtask: %s (%s)\n", status.NextSubtask.ID, status.NextSubtask.Title)
		if status.NextSubtaskFeedback != "" {
			_, _ = fmt.Fprintf(&sb, "Feedback: %s\n", status.NextSubtaskFeedback)
		}
	} else {
		sb.WriteString("Next Subtask: none\n")
	}
	sb.WriteString("\n")

	if status.LastStep != nil {
		sb.WriteString("### Last Step\n")
		_, _ = fmt.Fprintf(&sb, "ID: %s\n", status.LastStep.StepID)
		_, _ = fmt.Fprintf(&sb, "Subtask: %s\n", status.LastStep.SubtaskID)
		if status.LastStep.SubtaskTitle != "" {
			_, _ = fmt.Fprintf(&sb, "Title: %s\n", status.LastStep.SubtaskTitle)
		}
		_, _ = fmt.Fprintf(&sb, "Outcome: %s\n", status.LastStep.Outcome)
		if !status.LastStep.EndTime.IsZero() {
			_, _ = fmt.Fprintf(&sb, "Completed: %s\n", status.LastStep.EndTime.Format(time.RFC3339))
		}
		if status.LastStep.LogPath != "" {
			_, _ = fmt.Fprintf(&sb, "Log: %s\n", status.LastStep.LogPath)
		}
	}

	return sb.String()
}
