package trb

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

const maxLatencySamples = 1000

type latencySample struct {
	at      time.Time
	elapsed time.Duration
}

// WorkerState is the per-worker bookkeeping record: outstanding
// assignments, busy/free hysteresis thresholds, latency history, and an
// error flag. It is mutated both by the dispatch loop (add on a
// successful send) and by an asynchronous token callback running on a
// network thread, so every field is either a lock-free atomic or guarded
// by its own mutex — no two locks are ever held at once.
type WorkerState struct {
	connectionName string

	busyThreshold atomic.Int64
	freeThreshold atomic.Int64

	isBusy  atomic.Bool
	inError atomic.Bool

	outstandingMu sync.Mutex
	outstanding   []*Assignment

	latencyMu     sync.Mutex
	latencyWindow []latencySample

	metadataMu sync.Mutex
	metadata   map[string]any

	now func() time.Time
}

// NewWorkerState constructs a WorkerState for the given connection name.
// freeThreshold must not exceed busyThreshold.
func NewWorkerState(connectionName string, busyThreshold, freeThreshold int) (*WorkerState, error) {
	if freeThreshold > busyThreshold {
		return nil, ErrThresholdsInconsistent
	}

	ws := &WorkerState{
		connectionName: connectionName,
		metadata:       make(map[string]any),
		now:            time.Now,
	}
	ws.busyThreshold.Store(int64(busyThreshold))
	ws.freeThreshold.Store(int64(freeThreshold))
	return ws, nil
}

// ConnectionName returns the worker's identity.
func (ws *WorkerState) ConnectionName() string { return ws.connectionName }

// BusyThreshold returns the configured busy threshold.
func (ws *WorkerState) BusyThreshold() int { return int(ws.busyThreshold.Load()) }

// FreeThreshold returns the configured free threshold.
func (ws *WorkerState) FreeThreshold() int { return int(ws.freeThreshold.Load()) }

// HasSlot reports whether this worker can currently accept a new
// assignment. It is lock-free so find_slot's scan stays cheap.
func (ws *WorkerState) HasSlot() bool {
	return !ws.isBusy.Load() && !ws.inError.Load()
}

// IsBusy reports the current busy flag.
func (ws *WorkerState) IsBusy() bool { return ws.isBusy.Load() }

// InError reports the current error flag.
func (ws *WorkerState) InError() bool { return ws.inError.Load() }

// SetInError sets or clears the error flag. The dispatcher sets it to
// true after exhausting send retries; the token handler clears it when a
// token arrives from this worker (implicit reconnection).
func (ws *WorkerState) SetInError(inError bool) { ws.inError.Store(inError) }

// MakeAssignment constructs (but does not insert) an assignment tagged
// with this worker's name and the current time. Separating construction
// from insertion lets the dispatcher attempt the network send before
// committing to this worker's books.
func (ws *WorkerState) MakeAssignment(decision models.TriggerDecision) *Assignment {
	return &Assignment{
		Decision:   decision,
		WorkerName: ws.connectionName,
		AssignedAt: ws.now(),
	}
}

// AddAssignment atomically appends the assignment to the outstanding
// list. It fails with ErrNoSlotsAvailable if the worker was marked
// in-error between selection and commit.
func (ws *WorkerState) AddAssignment(a *Assignment) error {
	ws.outstandingMu.Lock()
	defer ws.outstandingMu.Unlock()

	if ws.inError.Load() {
		return ErrNoSlotsAvailable
	}

	ws.outstanding = append(ws.outstanding, a)
	if int64(len(ws.outstanding)) >= ws.busyThreshold.Load() {
		ws.isBusy.Store(true)
	}
	return nil
}

// ExtractAssignment removes and returns the assignment with the given
// trigger number, or nil if none matches. If removal drops the
// outstanding count below the free threshold, the busy flag is cleared.
func (ws *WorkerState) ExtractAssignment(triggerNumber uint64) *Assignment {
	ws.outstandingMu.Lock()
	defer ws.outstandingMu.Unlock()

	var found *Assignment
	for i, a := range ws.outstanding {
		if a.Decision.TriggerNumber == triggerNumber {
			found = a
			ws.outstanding = append(ws.outstanding[:i], ws.outstanding[i+1:]...)
			break
		}
	}

	if int64(len(ws.outstanding)) < ws.freeThreshold.Load() {
		ws.isBusy.Store(false)
	}

	return found
}

// OutstandingLen returns the current outstanding assignment count.
func (ws *WorkerState) OutstandingLen() int {
	ws.outstandingMu.Lock()
	defer ws.outstandingMu.Unlock()
	return len(ws.outstanding)
}

// CompleteAssignment extracts the assignment for triggerNumber, records
// its latency, invokes metadataFn (if given) under the metadata lock, and
// returns the elapsed duration. It fails with ErrAssignmentNotFound if no
// such assignment is outstanding; in that case outstanding and in_error
// are left untouched.
func (ws *WorkerState) CompleteAssignment(triggerNumber uint64, metadataFn func(map[string]any)) (time.Duration, error) {
	a := ws.ExtractAssignment(triggerNumber)
	if a == nil {
		return 0, ErrAssignmentNotFound
	}

	now := ws.now()
	elapsed := now.Sub(a.AssignedAt)

	ws.latencyMu.Lock()
	ws.latencyWindow = append(ws.latencyWindow, latencySample{at: now, elapsed: elapsed})
	if len(ws.latencyWindow) > maxLatencySamples {
		ws.latencyWindow = ws.latencyWindow[len(ws.latencyWindow)-maxLatencySamples:]
	}
	ws.latencyMu.Unlock()

	if metadataFn != nil {
		ws.metadataMu.Lock()
		metadataFn(ws.metadata)
		ws.metadataMu.Unlock()
	}

	return elapsed, nil
}

// AverageLatency returns the mean latency of completions recorded at or
// after since. It returns zero when no samples qualify, rather than
// dividing by zero.
func (ws *WorkerState) AverageLatency(since time.Time) time.Duration {
	ws.latencyMu.Lock()
	defer ws.latencyMu.Unlock()

	var sum time.Duration
	var count int
	for i := len(ws.latencyWindow) - 1; i >= 0; i-- {
		sample := ws.latencyWindow[i]
		if sample.at.Before(since) {
			break
		}
		sum += sample.elapsed
		count++
	}

	if count == 0 {
		return 0
	}
	return sum / time.Duration(count)
}

// Metadata returns a shallow copy of the free-form metadata blob.
func (ws *WorkerState) Metadata() map[string]any {
	ws.metadataMu.Lock()
	defer ws.metadataMu.Unlock()

	out := make(map[string]any, len(ws.metadata))
	for k, v := range ws.metadata {
		out[k] = v
	}
	return out
}

// View returns a JSON-marshalable snapshot of this worker's state.
func (ws *WorkerState) View(since time.Time) models.WorkerView {
	return models.WorkerView{
		ConnectionName:   ws.connectionName,
		BusyThreshold:    ws.BusyThreshold(),
		FreeThreshold:    ws.FreeThreshold(),
		Outstanding:      ws.OutstandingLen(),
		IsBusy:           ws.IsBusy(),
		InError:          ws.InError(),
		AverageLatencyMs: float64(ws.AverageLatency(since).Microseconds()) / 1000.0,
	}
}
