// Package dispatch implements the orchestrator's dispatch loop and its
// companion completion-token handler. It is the busiest package in the
// repository, coupling the input queue, the worker table, the network
// boundary, and the metrics counters.
package dispatch

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/codec"
	"github.com/athulya-anil/axon-dfo/pkg/metrics"
	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/network"
	"github.com/athulya-anil/axon-dfo/pkg/queue"
	"github.com/athulya-anil/axon-dfo/pkg/trb"
)

// slotPollInterval is how often Phase A re-checks for a free slot while
// parked on the slot signal.
const slotPollInterval = time.Millisecond

// Dispatcher is the dispatch loop's owning thread: extract a decision,
// select a worker with a free slot, send, record. Exactly one goroutine
// should call Run for a given Dispatcher.
type Dispatcher struct {
	table   *trb.WorkerTable
	queue   *queue.DecisionQueue
	net     network.Manager
	metrics *metrics.Metrics
	slots   *SlotSignal

	queueTimeout time.Duration
	sendRetries  int

	runFlag atomic.Bool
	done    chan struct{}
}

// New creates a Dispatcher wired to the given collaborators. queueTimeout
// bounds both the input-queue pop and each individual send attempt;
// sendRetries is the number of attempts per decision per worker before
// quarantine.
func New(table *trb.WorkerTable, q *queue.DecisionQueue, net network.Manager, m *metrics.Metrics, queueTimeout time.Duration, sendRetries int) *Dispatcher {
	return &Dispatcher{
		table:        table,
		queue:        q,
		net:          net,
		metrics:      m,
		slots:        NewSlotSignal(),
		queueTimeout: queueTimeout,
		sendRetries:  sendRetries,
		done:         make(chan struct{}),
	}
}

// NotifySlotAvailable wakes the Phase A wait. The token handler calls
// this after any completion that may have freed a slot.
func (d *Dispatcher) NotifySlotAvailable() { d.slots.Notify() }

// Run executes the dispatch loop until Stop clears the run flag, then
// performs the shutdown drain and closes the internal done channel. It
// blocks until shutdown completes; call it on its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	d.runFlag.Store(true)

	for d.runFlag.Load() {
		d.waitForSlot(ctx)
		if !d.runFlag.Load() {
			break
		}

		decision, ok := d.popDecision()
		if !ok {
			continue
		}

		d.dispatchWithReselect(ctx, decision, true)
	}

	d.drain(ctx)
}

// Stop clears the run flag, wakes anything parked on the slot signal,
// and blocks until Run has finished its shutdown drain. Idempotent.
func (d *Dispatcher) Stop() {
	d.runFlag.Store(false)
	d.slots.Notify()
	<-d.done
}

// Phase A — wait for slot.
func (d *Dispatcher) waitForSlot(ctx context.Context) {
	start := time.Now()
	d.slots.Wait(ctx, func() bool {
		return !d.runFlag.Load() || d.table.HasSlot()
	}, slotPollInterval)
	d.metrics.AddWaitingForSlots(time.Since(start))
}

// Phase B — extract a decision.
func (d *Dispatcher) popDecision() (models.TriggerDecision, bool) {
	start := time.Now()
	decision, ok := d.queue.Pop(d.queueTimeout)
	d.metrics.AddWaitingForDecision(time.Since(start))
	if ok {
		d.metrics.IncDecisionsReceived()
	}
	return decision, ok
}

// dispatchWithReselect runs Phases C and D for one decision: select a
// destination, attempt to send, and on exhausted retries loop back to
// Phase C against a different worker. When allowRetry is false (the
// shutdown drain) a missing destination or a send failure drops the
// decision immediately instead of re-selecting.
func (d *Dispatcher) dispatchWithReselect(ctx context.Context, decision models.TriggerDecision, allowRetry bool) {
	payload, err := codec.EncodeDecision(decision)
	if err != nil {
		log.Printf("[DISPATCH] ❌ encode trigger=%d: %v", decision.TriggerNumber, err)
		return
	}

	maxAttempts := d.sendRetries
	if !allowRetry {
		maxAttempts = 1
	}

	for {
		start := time.Now()
		worker, assignment := d.table.FindSlot(decision)
		d.metrics.AddDecidingDestination(time.Since(start))

		if worker == nil {
			if !allowRetry {
				log.Printf("[DISPATCH] ⚠️ dropping trigger=%d during shutdown: no worker available", decision.TriggerNumber)
				return
			}
			if !d.runFlag.Load() {
				return
			}
			time.Sleep(slotPollInterval)
			continue
		}

		if d.send(ctx, worker, assignment, payload, maxAttempts) {
			return
		}
		if !allowRetry || !d.runFlag.Load() {
			log.Printf("[DISPATCH] ⚠️ dropping trigger=%d during shutdown after send failure", decision.TriggerNumber)
			return
		}
		// worker is now in_error; loop back to Phase C against another worker.
	}
}

// send attempts up to maxAttempts deliveries to worker, serialized
// payload already in hand. On success it commits the assignment and
// returns true. On exhausted attempts it quarantines the worker (unless
// the run flag is already cleared, as in the shutdown drain) and returns
// false.
func (d *Dispatcher) send(ctx context.Context, worker *trb.WorkerState, assignment *trb.Assignment, payload []byte, maxAttempts int) bool {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.net.SendTo(ctx, worker.ConnectionName(), payload, d.queueTimeout)
		if lastErr == nil {
			if err := worker.AddAssignment(assignment); err != nil {
				log.Printf("[DISPATCH] ⚠️ trigger=%d sent to %s but could not commit: %v", assignment.Decision.TriggerNumber, worker.ConnectionName(), err)
				return false
			}
			d.metrics.IncDecisionsSent()
			return true
		}
		log.Printf("[DISPATCH] ⚠️ send trigger=%d to %s attempt %d/%d: %v", assignment.Decision.TriggerNumber, worker.ConnectionName(), attempt, maxAttempts, lastErr)
	}

	if d.runFlag.Load() {
		worker.SetInError(true)
		log.Printf("[DISPATCH] ❌ %s quarantined after %d failed attempts: %v", worker.ConnectionName(), maxAttempts, lastErr)
	}
	return false
}

// drain performs the bounded best-effort shutdown dispatch of the
// component contract: pop whatever remains in the queue without
// blocking on slot availability, and attempt one send per decision with
// no retries and no re-selection.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		decision, ok := d.queue.Pop(0)
		if !ok {
			return
		}
		d.dispatchWithReselect(ctx, decision, false)
	}
}
