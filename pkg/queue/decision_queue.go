// Package queue implements the trigger-decision input queue: a bounded,
// blocking queue of pending TriggerDecisions with a pop-with-timeout
// contract. Decisions carry an optional priority (lower numbers pop
// first); decisions of equal priority preserve arrival order, so a
// stream of equal-priority decisions behaves as a plain FIFO queue.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

type decisionItem struct {
	decision models.TriggerDecision
	priority int
	seq      uint64
}

type decisionHeap []*decisionItem

func (h decisionHeap) Len() int { return len(h) }

func (h decisionHeap) Less(i, j int) bool {
	if h[i].priority == h[j].priority {
		return h[i].seq < h[j].seq
	}
	return h[i].priority < h[j].priority
}

func (h decisionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *decisionHeap) Push(x any) { *h = append(*h, x.(*decisionItem)) }

func (h *decisionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DecisionQueue is a bounded, thread-safe queue of TriggerDecisions.
// Push blocks (respecting the caller's context) once capacity is full,
// giving the dispatch loop real backpressure against the upstream
// trigger source. Pop blocks up to a timeout and retries the wait
// against a predicate on spurious wakeups, rather than trusting a single
// wait to mean "data is ready".
type DecisionQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    decisionHeap
	capacity int
	nextSeq  uint64
	closed   bool
}

// NewDecisionQueue creates a queue bounded at capacity. capacity <= 0
// means unbounded.
func NewDecisionQueue(capacity int) *DecisionQueue {
	q := &DecisionQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	heap.Init(&q.items)
	return q
}

// Push inserts a decision with the given priority (lower pops first),
// blocking while the queue is at capacity. It returns ctx.Err() if the
// context is cancelled before room is available, or an error if the
// queue has been closed.
func (q *DecisionQueue) Push(ctx context.Context, decision models.TriggerDecision, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.capacity > 0 && len(q.items) >= q.capacity && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		waitWithContext(ctx, q.notFull)
	}
	if q.closed {
		return errClosed
	}

	q.nextSeq++
	heap.Push(&q.items, &decisionItem{decision: decision, priority: priority, seq: q.nextSeq})
	q.notEmpty.Signal()
	return nil
}

// Pop removes the highest-priority (oldest, on ties) decision, blocking
// up to timeout for one to become available. ok is false on timeout or
// if the queue is closed and drained.
func (q *DecisionQueue) Pop(timeout time.Duration) (decision models.TriggerDecision, ok bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return models.TriggerDecision{}, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return models.TriggerDecision{}, false
		}

		timer := time.AfterFunc(remaining, q.notEmpty.Broadcast)
		q.notEmpty.Wait()
		timer.Stop()
	}

	item := heap.Pop(&q.items).(*decisionItem)
	q.notFull.Signal()
	return item.decision, true
}

// Len reports the number of decisions currently queued.
func (q *DecisionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed, waking any blocked Push/Pop callers.
func (q *DecisionQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func waitWithContext(ctx context.Context, cond *sync.Cond) {
	done := ctx.Done()
	if done == nil {
		cond.Wait()
		return
	}
	// cond.Wait() has no context support; poll with a short timer so a
	// cancelled context unblocks Push promptly without busy-spinning.
	timer := time.AfterFunc(10*time.Millisecond, cond.Signal)
	cond.Wait()
	timer.Stop()
}

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "queue: closed" }
