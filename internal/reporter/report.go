// Package reporter renders end-of-feature summaries and live status
// views over a backlog, its step records, and its git history.
package reporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prplab/prpctl/internal/git"
	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/record"
)

// CommitInfo describes a git commit produced while working a feature.
type CommitInfo struct {
	// Hash is the commit hash.
	Hash string

	// Message is the commit message.
	Message string

	// SubtaskID is the ID of the subtask that produced this commit.
	SubtaskID string

	// Timestamp is when the commit was created.
	Timestamp time.Time
}

// TaskSummary is a single-line summary of a leaf subtask.
type TaskSummary struct {
	ID      string
	Title   string
	Outcome string
}

// BlockedTaskSummary describes a leaf subtask blocked on its dependencies.
type BlockedTaskSummary struct {
	ID     string
	Title  string
	Reason string
}

// Report is the end-of-feature summary for a parent item.
type Report struct {
	// ParentItemID is the ID of the Phase, Milestone, or Task being reported on.
	ParentItemID string

	// FeatureName is the parent item's title.
	FeatureName string

	// Commits lists every commit produced under the parent item.
	Commits []CommitInfo

	CompletedTasks []TaskSummary
	BlockedTasks   []BlockedTaskSummary
	FailedTasks    []TaskSummary
	SkippedTasks   []TaskSummary

	// TotalIterations is the number of step records found.
	TotalIterations int

	// TotalCostUSD is the sum of each step's reported collaborator cost.
	TotalCostUSD float64

	TotalDuration time.Duration
	StartTime     time.Time
	EndTime       time.Time
}

// ReportGenerator builds a Report from a backlog snapshot, a directory
// of step records, and (optionally) a git manager for commit messages.
type ReportGenerator struct {
	backlog    *hierarchy.Backlog
	logsDir    string
	gitManager git.Manager
}

// NewReportGenerator creates a report generator over backlog.
func NewReportGenerator(backlog *hierarchy.Backlog, logsDir string, gitManager git.Manager) *ReportGenerator {
	return &ReportGenerator{
		backlog:    backlog,
		logsDir:    logsDir,
		gitManager: gitManager,
	}
}

// GenerateReport builds a complete report for the subtree rooted at parentItemID.
func (g *ReportGenerator) GenerateReport(parentItemID string) (*Report, error) {
	report := &Report{ParentItemID: parentItemID}

	if parent, ok := hierarchy.FindItem(g.backlog, parentItemID); ok {
		report.FeatureName = parent.Title
	}

	descendants := g.gatherDescendants(parentItemID)
	statusByID := make(map[string]hierarchy.Status, len(descendants))
	for _, item := range descendants {
		statusByID[item.ID] = item.Status
	}

	for _, item := range descendants {
		if !item.IsLeaf() {
			continue
		}
		switch item.Status {
		case hierarchy.StatusComplete:
			report.CompletedTasks = append(report.CompletedTasks, TaskSummary{ID: item.ID, Title: item.Title, Outcome: string(item.Status)})
		case hierarchy.StatusFailed:
			report.FailedTasks = append(report.FailedTasks, TaskSummary{ID: item.ID, Title: item.Title, Outcome: string(item.Status)})
		case hierarchy.StatusObsolete:
			report.SkippedTasks = append(report.SkippedTasks, TaskSummary{ID: item.ID, Title: item.Title, Outcome: string(item.Status)})
		case hierarchy.StatusPlanned:
			if reason := g.getBlockedReason(item, statusByID); reason != "" {
				report.BlockedTasks = append(report.BlockedTasks, BlockedTaskSummary{ID: item.ID, Title: item.Title, Reason: reason})
			}
		}
	}

	if g.logsDir != "" {
		records, err := record.LoadAllStepRecords(g.logsDir)
		if err == nil {
			report.TotalIterations = len(records)

			for _, r := range records {
				report.TotalCostUSD += r.CollaboratorCostUSD

				if r.ResultCommit != "" {
					commitInfo := CommitInfo{
						Hash:      r.ResultCommit,
						SubtaskID: r.SubtaskID,
						Timestamp: r.EndTime,
					}

					if g.gitManager != nil {
						msg, err := g.gitManager.GetCommitMessage(context.Background(), r.ResultCommit)
						if err == nil {
							commitInfo.Message = msg
						}
					}

					report.Commits = append(report.Commits, commitInfo)
				}

				if report.StartTime.IsZero() || r.StartTime.Before(report.StartTime) {
					report.StartTime = r.StartTime
				}
				if r.EndTime.After(report.EndTime) {
					report.EndTime = r.EndTime
				}
			}

			if !report.StartTime.IsZero() && !report.EndTime.IsZero() {
				report.TotalDuration = report.EndTime.Sub(report.StartTime)
			}
		}
	}

	return report, nil
}

// gatherDescendants collects every node (of any kind) under parentID, in DFS order.
func (g *ReportGenerator) gatherDescendants(parentID string) []*hierarchy.Item {
	parent, ok := hierarchy.FindItem(g.backlog, parentID)
	if !ok {
		return nil
	}

	var out []*hierarchy.Item
	var visit func(item *hierarchy.Item)
	visit = func(item *hierarchy.Item) {
		for _, child := range item.Children {
			out = append(out, child)
			visit(child)
		}
	}
	visit(parent)
	return out
}

// getBlockedReason explains why a Planned leaf is not yet ready, or
// returns "" if every one of its dependencies is Complete.
func (g *ReportGenerator) getBlockedReason(item *hierarchy.Item, statusByID map[string]hierarchy.Status) string {
	var incomplete []string
	for _, dep := range item.Dependencies {
		status, ok := statusByID[dep]
		if !ok {
			if depItem, found := hierarchy.FindItem(g.backlog, dep); found {
				status, ok = depItem.Status, true
			}
		}
		if !ok {
			incomplete = append(incomplete, dep+" (not found)")
		} else if status != hierarchy.StatusComplete {
			incomplete = append(incomplete, fmt.Sprintf("%s (%s)", dep, status))
		}
	}
	if len(incomplete) == 0 {
		return ""
	}
	return fmt.Sprintf("blocked: waiting for dependencies: %s", strings.Join(incomplete, ", "))
}

// FormatReport renders a report for CLI display.
func FormatReport(report *Report) string {
	var sb strings.Builder

	sb.WriteString("# Feature Report\n\n")

	_, _ = fmt.Fprintf(&sb, "**Parent Item:** %s\n", report.ParentItemID)
	if report.FeatureName != "" {
		_, _ = fmt.Fprintf(&sb, "**Feature:** %s\n", report.FeatureName)
	}
	sb.WriteString("\n")

	sb.WriteString("## Summary\n\n")
	_, _ = fmt.Fprintf(&sb, "- **Steps:** %d steps\n", report.TotalIterations)
	_, _ = fmt.Fprintf(&sb, "- **Total Cost:** $%.2f\n", report.TotalCostUSD)
	if report.TotalDuration > 0 {
		_, _ = fmt.Fprintf(&sb, "- **Duration:** %s\n", formatDuration(report.TotalDuration))
	}
	if !report.StartTime.IsZero() {
		_, _ = fmt.Fprintf(&sb, "- **Started:** %s\n", report.StartTime.Format(time.RFC3339))
	}
	if !report.EndTime.IsZero() {
		_, _ = fmt.Fprintf(&sb, "- **Completed:** %s\n", report.EndTime.Format(time.RFC3339))
	}
	sb.WriteString("\n")

	sb.WriteString("## Commits\n\n")
	if len(report.Commits) == 0 {
		sb.WriteString("No commits produced.\n")
	} else {
		for _, commit := range report.Commits {
			hash := commit.Hash
			if len(hash) > 7 {
				hash = hash[:7]
			}
			_, _ = fmt.Fprintf(&sb, "- `%s` %s (subtask: %s)\n", hash, commit.Message, commit.SubtaskID)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Completed Tasks\n\n")
	if len(report.CompletedTasks) == 0 {
		sb.WriteString("No completed tasks.\n")
	} else {
		for _, task := range report.CompletedTasks {
			_, _ = fmt.Fprintf(&sb, "- [x] %s (%s)\n", task.Title, task.ID)
		}
	}
	sb.WriteString("\n")

	if len(report.BlockedTasks) > 0 {
		sb.WriteString("## Blocked Tasks\n\n")
		for _, task := range report.BlockedTasks {
			_, _ = fmt.Fprintf(&sb, "- [ ] %s (%s)\n", task.Title, task.ID)
			_, _ = fmt.Fprintf(&sb, "      Reason: %s\n", task.Reason)
		}
		sb.WriteString("\n")
	}

	if len(report.FailedTasks) > 0 {
		sb.WriteString("## Failed Tasks\n\n")
		for _, task := range report.FailedTasks {
			_, _ = fmt.Fprintf(&sb, "- [!] %s (%s)\n", task.Title, task.ID)
		}
		sb.WriteString("\n")
	}

	if len(report.SkippedTasks) > 0 {
		sb.WriteString("## Skipped Tasks\n\n")
		for _, task := range report.SkippedTasks {
			_, _ = fmt.Fprintf(&sb, "- [-] %s (%s)\n", task.Title, task.ID)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
