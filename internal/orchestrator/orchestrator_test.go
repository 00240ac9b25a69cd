package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/record"
	"github.com/prplab/prpctl/internal/research"
	"github.com/prplab/prpctl/internal/session"
)

type fakeAgent struct {
	fail bool
}

func (a *fakeAgent) Generate(ctx context.Context, s *hierarchy.Item, b *hierarchy.Backlog) (*research.PRP, error) {
	if a.fail {
		return nil, assert.AnError
	}
	return &research.PRP{TaskID: s.ID, Objective: "do it"}, nil
}

type fakeRuntime struct {
	result *ExecutionResult
	err    error
}

func (r *fakeRuntime) Execute(ctx context.Context, prpFilePath string) (*ExecutionResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type fakeCommit struct {
	calls int
	err   error
}

func (c *fakeCommit) Commit(ctx context.Context, sessionPath, taskID string) (string, error) {
	c.calls++
	return "deadbeef", c.err
}

func newTestSession(t *testing.T, backlog *hierarchy.Backlog) *session.Manager {
	t.Helper()
	planDir := t.TempDir()
	prdPath := filepath.Join(t.TempDir(), "prd.md")
	require.NoError(t, os.WriteFile(prdPath, []byte(
		"# PRD\n\nSome product requirement content that is long enough to pass validation checks easily.\n"),
		0o644))

	mgr := session.NewManager(planDir, nil)
	_, err := mgr.Initialize(prdPath)
	require.NoError(t, err)
	mgr.Current().TaskRegistry = backlog
	return mgr
}

func buildBacklog(s *hierarchy.Item) *hierarchy.Backlog {
	t1 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s}}
	m1 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t1}}
	p1 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m1}}
	return &hierarchy.Backlog{Items: []*hierarchy.Item{p1}}
}

func TestProcessNextItem_CompletesSubtask(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	mgr := newTestSession(t, buildBacklog(s1))

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{Success: true}}
	ct := &fakeCommit{}

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hasMore, err := o.ProcessNextItem(ctx, WaitOptions{Timeout: time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, 1, ct.calls)

	item, ok := hierarchy.FindItem(mgr.Current().TaskRegistry, "P1.M1.T1.S1")
	require.True(t, ok)
	assert.Equal(t, hierarchy.StatusComplete, item.Status)

	hasMore, err = o.ProcessNextItem(ctx, WaitOptions{Timeout: time.Second, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.False(t, hasMore)
}

func TestProcessNextItem_SavesStepRecordOnSuccess(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	mgr := newTestSession(t, buildBacklog(s1))

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{
		Success:           true,
		ValidationResults: []ValidationResult{{Level: 1, Passed: true}},
		FixAttempts:       1,
	}}
	ct := &fakeCommit{}
	logsDir := t.TempDir()

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     2,
		LogsDir:        logsDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := o.ProcessNextItem(ctx, WaitOptions{Timeout: time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	records, err := record.LoadAllStepRecords(logsDir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "P1.M1.T1.S1", records[0].SubtaskID)
	assert.Equal(t, record.OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, "deadbeef", records[0].ResultCommit)
	require.Len(t, records[0].ValidationOutputs, 1)
	assert.True(t, records[0].ValidationOutputs[0].Passed)
}

func TestProcessNextItem_SavesStepRecordOnFailure(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	mgr := newTestSession(t, buildBacklog(s1))

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{Success: false, Error: "gate 1 failed"}}
	ct := &fakeCommit{}
	logsDir := t.TempDir()

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     0,
		LogsDir:        logsDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := o.ProcessNextItem(ctx, WaitOptions{Timeout: time.Second, Interval: 10 * time.Millisecond})
	require.Error(t, err)

	records, err := record.LoadAllStepRecords(logsDir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.OutcomeFailed, records[0].Outcome)
	assert.Equal(t, "gate 1 failed", records[0].Feedback)
}

func TestProcessNextItem_DependentRunsAfterDependencyCompletes(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	s2 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S2", Title: "s2", Status: hierarchy.StatusPlanned, Dependencies: []string{"P1.M1.T1.S1"}}
	t1 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s1, s2}}
	m1 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t1}}
	p1 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m1}}
	mgr := newTestSession(t, &hierarchy.Backlog{Items: []*hierarchy.Item{p1}})

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{Success: true}}
	ct := &fakeCommit{}

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// S1 completes first, clearing S2's dependency.
	hasMore, err := o.ProcessNextItem(ctx, WaitOptions{Timeout: time.Second, Interval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, hasMore)

	hasMore, err = o.ProcessNextItem(ctx, WaitOptions{Timeout: time.Second, Interval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, hasMore)

	s2Item, _ := hierarchy.FindItem(mgr.Current().TaskRegistry, "P1.M1.T1.S2")
	assert.Equal(t, hierarchy.StatusComplete, s2Item.Status)
}

func TestProcessNextItem_DependencyTimeout(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	s2 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S2", Title: "s2", Status: hierarchy.StatusPlanned, Dependencies: []string{"P1.M1.T1.S1"}}
	t1 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s2, s1}}
	m1 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t1}}
	p1 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m1}}
	mgr := newTestSession(t, &hierarchy.Backlog{Items: []*hierarchy.Item{p1}})

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{Success: true}}
	ct := &fakeCommit{}

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// S2 is first in DFS order but depends on S1, which never completes
	// within the short timeout.
	hasMore, err := o.ProcessNextItem(ctx, WaitOptions{Timeout: 30 * time.Millisecond, Interval: 5 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, hasMore)
	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestProcessNextItem_ExecutionFailureExhaustsRetries(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	mgr := newTestSession(t, buildBacklog(s1))

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{Success: false, Error: "gate 1 failed"}}
	ct := &fakeCommit{}

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	waitOpts := WaitOptions{Timeout: time.Second, Interval: 5 * time.Millisecond}

	// Attempt 1: fails, retries remain, requeued as Planned.
	hasMore, err := o.ProcessNextItem(ctx, waitOpts)
	require.Error(t, err)
	assert.True(t, hasMore)
	item, _ := hierarchy.FindItem(mgr.Current().TaskRegistry, "P1.M1.T1.S1")
	assert.Equal(t, hierarchy.StatusPlanned, item.Status)

	// Attempt 2: retries exhausted, status becomes Failed.
	hasMore, err = o.ProcessNextItem(ctx, waitOpts)
	require.Error(t, err)
	assert.True(t, hasMore)
	item, _ = hierarchy.FindItem(mgr.Current().TaskRegistry, "P1.M1.T1.S1")
	assert.Equal(t, hierarchy.StatusFailed, item.Status)

	assert.Equal(t, 0, ct.calls)
}

func TestSetScope_RebuildsQueue(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	s2 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P2.M1.T1.S1", Title: "s2", Status: hierarchy.StatusPlanned}
	t1 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s1}}
	m1 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t1}}
	p1 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m1}}
	t2 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P2.M1.T1", Title: "t2", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s2}}
	m2 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P2.M1", Title: "m2", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t2}}
	p2 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P2", Title: "p2", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m2}}
	mgr := newTestSession(t, &hierarchy.Backlog{Items: []*hierarchy.Item{p1, p2}})

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	rt := &fakeRuntime{result: &ExecutionResult{Success: true}}
	ct := &fakeCommit{}

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        rt,
		Commit:         ct,
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
		MaxRetries:     1,
	})
	assert.Len(t, o.executionQueue, 2)

	o.SetScope(hierarchy.Scope{Type: hierarchy.ScopePhase, ID: "P1"})
	assert.Len(t, o.executionQueue, 1)
	assert.Equal(t, "P1.M1.T1.S1", o.executionQueue[0].ID)
}

func TestValidateDependencyGraph_DetectsCycle(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned, Dependencies: []string{"P1.M1.T1.S2"}}
	s2 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S2", Title: "s2", Status: hierarchy.StatusPlanned, Dependencies: []string{"P1.M1.T1.S1"}}
	t1 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s1, s2}}
	m1 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t1}}
	p1 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m1}}
	mgr := newTestSession(t, &hierarchy.Backlog{Items: []*hierarchy.Item{p1}})

	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  research.NewQueue(&fakeAgent{}, 1, nil),
		Runtime:        &fakeRuntime{},
		Commit:         &fakeCommit{},
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
	})

	err := o.ValidateDependencyGraph()
	require.Error(t, err)
}

func TestExecuteTask_PrefetchesWithoutChangingStatus(t *testing.T) {
	s1 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S1", Title: "s1", Status: hierarchy.StatusPlanned}
	s2 := &hierarchy.Item{Kind: hierarchy.KindSubtask, ID: "P1.M1.T1.S2", Title: "s2", Status: hierarchy.StatusPlanned}
	t1 := &hierarchy.Item{Kind: hierarchy.KindTask, ID: "P1.M1.T1", Title: "t1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{s1, s2}}
	m1 := &hierarchy.Item{Kind: hierarchy.KindMilestone, ID: "P1.M1", Title: "m1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{t1}}
	p1 := &hierarchy.Item{Kind: hierarchy.KindPhase, ID: "P1", Title: "p1", Status: hierarchy.StatusPlanned, Children: []*hierarchy.Item{m1}}
	mgr := newTestSession(t, &hierarchy.Backlog{Items: []*hierarchy.Item{p1}})

	rq := research.NewQueue(&fakeAgent{}, 2, nil)
	o := New(Config{
		SessionManager: mgr,
		ResearchQueue:  rq,
		Runtime:        &fakeRuntime{},
		Commit:         &fakeCommit{},
		Scope:          hierarchy.Scope{Type: hierarchy.ScopeAll},
	})

	o.ExecuteTask(t1)

	require.Eventually(t, func() bool {
		return rq.GetStats().Cached == 2
	}, time.Second, 5*time.Millisecond)

	item, _ := hierarchy.FindItem(mgr.Current().TaskRegistry, "P1.M1.T1.S1")
	assert.Equal(t, hierarchy.StatusPlanned, item.Status)
}
