// Package orchestrator drives subtasks through research and
// implementation in DFS pre-order, gating each on its dependencies and
// delegating artifact generation to the Research Queue.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/record"
	"github.com/prplab/prpctl/internal/research"
	"github.com/prplab/prpctl/internal/session"
)

// WaitOptions bounds a WaitForDependencies call.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Orchestrator is constructed with a Session Manager, an optional
// Scope, and a cache-bypass flag. ProcessNextItem is non-reentrant:
// callers drive it sequentially in a loop.
type Orchestrator struct {
	sessionMgr  *session.Manager
	researchQ   *research.Queue
	runtime     ImplementationRuntime
	commit      CommitCapability
	logger      *zap.Logger

	scope        hierarchy.Scope
	cacheBypass  bool
	maxRetries   int
	logsDir      string

	executionQueue []*hierarchy.Item
	taskAttempts   map[string]int
}

// Config bundles the constructor dependencies.
type Config struct {
	SessionManager *session.Manager
	ResearchQueue  *research.Queue
	Runtime        ImplementationRuntime
	Commit         CommitCapability
	Logger         *zap.Logger
	Scope          hierarchy.Scope
	CacheBypass    bool
	MaxRetries     int

	// LogsDir is where a durable record.StepRecord is written for every
	// subtask ProcessNextItem finishes, successfully or not. Empty
	// disables step recording.
	LogsDir string
}

// New constructs an Orchestrator and builds its initial execution
// queue: leaf subtasks only, DFS pre-order, filtered by scope.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		sessionMgr:   cfg.SessionManager,
		researchQ:    cfg.ResearchQueue,
		runtime:      cfg.Runtime,
		commit:       cfg.Commit,
		logger:       logger,
		scope:        cfg.Scope,
		cacheBypass:  cfg.CacheBypass,
		maxRetries:   cfg.MaxRetries,
		logsDir:      cfg.LogsDir,
		taskAttempts: make(map[string]int),
	}
	o.rebuildQueue()
	return o
}

func (o *Orchestrator) rebuildQueue() {
	state := o.sessionMgr.Current()
	if state == nil {
		o.executionQueue = nil
		return
	}
	o.executionQueue = hierarchy.FilterLeaves(state.TaskRegistry, o.scope)
}

// SetScope rebuilds the queue from the current hierarchy under the new
// scope, discarding anything left of the prior queue.
func (o *Orchestrator) SetScope(scope hierarchy.Scope) {
	o.scope = scope
	o.rebuildQueue()
}

// ValidateDependencyGraph builds a dependency graph over every leaf
// subtask in the current backlog (not just the scoped execution queue,
// since a dependency may live outside the active scope) and returns an
// error if it references a nonexistent dependency or contains a cycle.
// Callers typically run this once before driving ProcessNextItem.
func (o *Orchestrator) ValidateDependencyGraph() error {
	state := o.sessionMgr.Current()
	if state == nil {
		return ErrNoCurrentSession
	}
	graph, err := BuildGraph(hierarchy.Leaves(state.TaskRegistry))
	if err != nil {
		return err
	}
	if cycle := graph.DetectCycle(); cycle != nil {
		return fmt.Errorf("dependency cycle detected: %v", cycle)
	}
	return nil
}

// CanExecute reports whether every dependency of s resolves to an item
// whose status is Complete.
func (o *Orchestrator) CanExecute(s *hierarchy.Item) bool {
	return len(o.GetBlockingDependencies(s)) == 0
}

// GetBlockingDependencies returns the subset of s's dependency items
// whose status is not Complete. A dependency id that resolves to
// nothing in the backlog is treated as blocking.
func (o *Orchestrator) GetBlockingDependencies(s *hierarchy.Item) []*hierarchy.Item {
	state := o.sessionMgr.Current()
	if state == nil {
		return nil
	}
	var blocking []*hierarchy.Item
	for _, depID := range s.Dependencies {
		dep, ok := hierarchy.FindItem(state.TaskRegistry, depID)
		if !ok || dep.Status != hierarchy.StatusComplete {
			if dep == nil {
				dep = &hierarchy.Item{ID: depID}
			}
			blocking = append(blocking, dep)
		}
	}
	return blocking
}

// WaitForDependencies polls CanExecute every opts.Interval, resolving
// when every dependency clears. It fails with a TimeoutError after
// opts.Timeout elapses.
func (o *Orchestrator) WaitForDependencies(ctx context.Context, s *hierarchy.Item, opts WaitOptions) error {
	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if o.CanExecute(s) {
			return nil
		}
		if time.Now().After(deadline) {
			blocking := o.GetBlockingDependencies(s)
			ids := make([]string, len(blocking))
			for i, b := range blocking {
				ids[i] = b.ID
			}
			return &TimeoutError{SubtaskID: s.ID, Blocking: ids}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessNextItem performs a single step of the execution loop and
// reports whether the queue had an item to process. A non-nil error
// indicates the popped subtask failed (either from a dependency
// timeout or an execution failure); the caller should inspect the
// error but hasMore still reflects queue progress.
func (o *Orchestrator) ProcessNextItem(ctx context.Context, waitOpts WaitOptions) (hasMore bool, err error) {
	if len(o.executionQueue) == 0 {
		return false, nil
	}

	s := o.executionQueue[0]
	o.executionQueue = o.executionQueue[1:]
	o.sessionMgr.SetCurrentItem(s.ID)

	rec := record.NewStepRecord(s.ID)

	if !o.CanExecute(s) {
		if waitErr := o.WaitForDependencies(ctx, s, waitOpts); waitErr != nil {
			outcome := record.OutcomeFailed
			if errors.Is(waitErr, ErrTimeout) {
				outcome = record.OutcomeTimeout
			}
			return true, o.handleFailure(s, rec, outcome, waitErr)
		}
	}

	if statusErr := o.sessionMgr.UpdateItemStatus(s.ID, hierarchy.StatusResearching); statusErr != nil {
		return true, statusErr
	}

	state := o.sessionMgr.Current()
	backlog := state.TaskRegistry

	var prp *research.PRP
	if o.cacheBypass {
		prp, err = o.researchQ.Agent().Generate(ctx, s, backlog)
	} else {
		o.researchQ.Enqueue(s, backlog)
		prp, err = o.researchQ.WaitForPRP(ctx, s.ID)
	}
	if err != nil {
		return true, o.handleFailure(s, rec, record.OutcomeFailed, err)
	}

	prpPath, err := o.writePRP(state.Metadata.Path, prp)
	if err != nil {
		return true, o.handleFailure(s, rec, record.OutcomeFailed, err)
	}

	if statusErr := o.sessionMgr.UpdateItemStatus(s.ID, hierarchy.StatusImplementing); statusErr != nil {
		return true, statusErr
	}

	result, execErr := o.runtime.Execute(ctx, prpPath)
	if execErr != nil {
		return true, o.handleFailure(s, rec, record.OutcomeFailed, execErr)
	}

	rec.ValidationOutputs = toValidationOutputs(result.ValidationResults)
	rec.FilesChanged = result.Artifacts

	if !result.Success {
		rec.Feedback = result.Error
		return true, o.handleFailure(s, rec, record.OutcomeFailed, &ExecutionFailureError{SubtaskID: s.ID, Reason: result.Error})
	}

	delete(o.taskAttempts, s.ID)
	if statusErr := o.sessionMgr.UpdateItemStatus(s.ID, hierarchy.StatusComplete); statusErr != nil {
		return true, statusErr
	}

	if commitID, commitErr := o.commit.Commit(ctx, state.Metadata.Path, s.ID); commitErr != nil {
		o.logger.Warn("commit failed after successful subtask",
			zap.String("task_id", s.ID),
			zap.Error(commitErr),
		)
	} else {
		rec.ResultCommit = commitID
	}

	rec.AttemptNumber = result.FixAttempts
	rec.Complete(record.OutcomeSuccess)
	o.saveRecord(rec)

	return true, nil
}

// toValidationOutputs adapts the ImplementationRuntime's ValidationResult
// slice into the audit record's ValidationOutput shape.
func toValidationOutputs(results []ValidationResult) []record.ValidationOutput {
	outputs := make([]record.ValidationOutput, len(results))
	for i, r := range results {
		outputs[i] = record.ValidationOutput{
			Level:   r.Level,
			Passed:  r.Passed,
			Skipped: r.Skipped,
			Output:  r.Output,
		}
	}
	return outputs
}

// saveRecord persists rec under the orchestrator's logs directory. It
// only logs a warning on failure: a lost audit record is never a
// reason to fail the subtask it documents. Recording is disabled when
// no logs directory was configured.
func (o *Orchestrator) saveRecord(rec *record.StepRecord) {
	if o.logsDir == "" {
		return
	}
	if _, err := record.SaveRecord(o.logsDir, rec); err != nil {
		o.logger.Warn("failed to save step record",
			zap.String("step_id", rec.StepID),
			zap.String("task_id", rec.SubtaskID),
			zap.Error(err),
		)
	}
}

// handleFailure records an attempt against s and resolves the
// resulting status: back to Planned while retries remain, Failed once
// the attempt budget is exhausted. While retries remain, s is
// re-appended to the tail of the execution queue so a later
// ProcessNextItem call retries it. rec is completed with outcome and
// origErr's message and saved before handleFailure returns. It always
// returns origErr so the caller still observes the underlying failure.
func (o *Orchestrator) handleFailure(s *hierarchy.Item, rec *record.StepRecord, outcome record.Outcome, origErr error) error {
	o.taskAttempts[s.ID]++
	status := hierarchy.StatusPlanned
	retrying := o.taskAttempts[s.ID] <= o.maxRetries
	if !retrying {
		status = hierarchy.StatusFailed
	}
	if err := o.sessionMgr.UpdateItemStatus(s.ID, status); err != nil {
		o.logger.Warn("failed to record failure status",
			zap.String("task_id", s.ID),
			zap.Error(err),
		)
	}
	if retrying {
		o.executionQueue = append(o.executionQueue, s)
	}

	rec.AttemptNumber = o.taskAttempts[s.ID]
	if rec.Feedback == "" {
		rec.Feedback = origErr.Error()
	}
	rec.Complete(outcome)
	o.saveRecord(rec)

	return origErr
}

// ExecuteTask enqueues all of task's subtasks into the research queue
// without changing hierarchy state, for prefetching research
// concurrently with other orchestrator progress.
func (o *Orchestrator) ExecuteTask(task *hierarchy.Item) {
	state := o.sessionMgr.Current()
	if state == nil {
		return
	}
	for _, child := range task.Children {
		if child.IsLeaf() {
			o.researchQ.Enqueue(child, state.TaskRegistry)
		}
	}
}

// writePRP serializes prp to <sessionPath>/prps/<taskId>.json and
// returns the written path.
func (o *Orchestrator) writePRP(sessionPath string, prp *research.PRP) (string, error) {
	data, err := json.MarshalIndent(prp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling prp for %s: %w", prp.TaskID, err)
	}
	path := filepath.Join(sessionPath, session.PRPsDir, prp.TaskID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing prp file %s: %w", path, err)
	}
	return path, nil
}
