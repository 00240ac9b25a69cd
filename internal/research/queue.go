package research

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/prplab/prpctl/internal/hierarchy"
)

// DefaultPollInterval is how often WaitForPRP rechecks state for an item
// that is neither cached nor in flight yet.
const DefaultPollInterval = 50 * time.Millisecond

// Stats reflects the live state of the Queue.
type Stats struct {
	Queued      int
	Researching int
	Cached      int
}

// future tracks a single in-flight research admission so waiters can
// block on its completion and observe its error, if any.
type future struct {
	done chan struct{}
	err  error
}

// Queue is a bounded-concurrency, deduplicating, fire-and-forget
// dispatcher of PRP generation requests. At no instant does the number
// of in-flight admissions exceed maxConcurrent; each item's research
// runs at most once per successful outcome, and results are never
// overwritten by a stale result for the same id.
type Queue struct {
	agent         Agent
	logger        *zap.Logger
	maxConcurrent int
	sem           *semaphore.Weighted

	mu          sync.Mutex
	pending     []*hierarchy.Item
	pendingIDs  map[string]bool
	researching map[string]*future
	results     map[string]*PRP
}

// NewQueue constructs a Queue bounded to maxConcurrent simultaneous
// admissions. maxConcurrent of 0 disables processing: items still
// enqueue but are never admitted.
func NewQueue(agent Agent, maxConcurrent int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		agent:         agent,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		pendingIDs:    make(map[string]bool),
		researching:   make(map[string]*future),
		results:       make(map[string]*PRP),
	}
}

// Enqueue requests a PRP for item. If a result is already cached, or
// research for this item is already pending or in flight, Enqueue
// returns immediately without invoking the agent.
func (q *Queue) Enqueue(item *hierarchy.Item, backlog *hierarchy.Backlog) {
	q.mu.Lock()
	if _, ok := q.results[item.ID]; ok {
		q.mu.Unlock()
		return
	}
	if _, ok := q.researching[item.ID]; ok {
		q.mu.Unlock()
		return
	}
	if q.pendingIDs[item.ID] {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, item)
	q.pendingIDs[item.ID] = true
	q.mu.Unlock()

	q.drain(backlog)
}

// drain admits as many pending items as the semaphore allows, launching
// a background goroutine per admission. It is safe to call concurrently
// from Enqueue and from a completed admission's cleanup.
func (q *Queue) drain(backlog *hierarchy.Backlog) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		if !q.sem.TryAcquire(1) {
			q.mu.Unlock()
			return
		}

		item := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.pendingIDs, item.ID)

		fut := &future{done: make(chan struct{})}
		q.researching[item.ID] = fut
		q.mu.Unlock()

		go q.run(item, backlog, fut)
	}
}

// run invokes the agent for a single admitted item, stores the result
// on success, logs and discards the result on failure, and guarantees
// removal from researching on exit before attempting to drain again.
func (q *Queue) run(item *hierarchy.Item, backlog *hierarchy.Backlog, fut *future) {
	defer func() {
		q.sem.Release(1)
		q.mu.Lock()
		delete(q.researching, item.ID)
		q.mu.Unlock()
		close(fut.done)
		q.drain(backlog)
	}()

	prp, err := q.agent.Generate(context.Background(), item, backlog)
	if err != nil {
		fut.err = err
		q.logger.Warn("research failed",
			zap.String("task_id", item.ID),
			zap.Error(err),
		)
		return
	}

	q.mu.Lock()
	q.results[item.ID] = prp
	q.mu.Unlock()
}

// WaitForPRP blocks until an artifact exists for itemID. If the
// corresponding background task fails, the error propagates to the
// caller. ctx bounds how long the caller is willing to wait.
func (q *Queue) WaitForPRP(ctx context.Context, itemID string) (*PRP, error) {
	for {
		q.mu.Lock()
		if prp, ok := q.results[itemID]; ok {
			q.mu.Unlock()
			return prp, nil
		}
		fut, inFlight := q.researching[itemID]
		q.mu.Unlock()

		if !inFlight {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(DefaultPollInterval):
				continue
			}
		}

		select {
		case <-fut.done:
			if fut.err != nil {
				return nil, fut.err
			}
			// Loop back: success stores the result before done closes.
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Agent returns the underlying collaborator, for callers that need to
// bypass the cache and invoke it directly (e.g. an orchestrator's
// cache-bypass flag).
func (q *Queue) Agent() Agent {
	return q.agent
}

// GetPRP is a non-blocking lookup in the result cache.
func (q *Queue) GetPRP(itemID string) (*PRP, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	prp, ok := q.results[itemID]
	return prp, ok
}

// GetStats reflects the live state of the queue.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:      len(q.pending),
		Researching: len(q.researching),
		Cached:      len(q.results),
	}
}
