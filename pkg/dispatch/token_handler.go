package dispatch

import (
	"log"
	"sync/atomic"

	"github.com/athulya-anil/axon-dfo/pkg/codec"
	"github.com/athulya-anil/axon-dfo/pkg/metrics"
	"github.com/athulya-anil/axon-dfo/pkg/trb"
)

// TokenHandler is the callback the network layer invokes for every
// inbound completion message. It runs on an arbitrary, possibly
// concurrent, network thread and holds no state of its own beyond the
// captured run number — it interacts with the rest of the orchestrator
// only through WorkerTable/WorkerState and the Dispatcher's slot signal.
type TokenHandler struct {
	table      *trb.WorkerTable
	metrics    *metrics.Metrics
	dispatcher *Dispatcher

	runNumber  atomic.Uint64
	metadataFn func(map[string]any)
}

// NewTokenHandler creates a handler bound to table and dispatcher.
func NewTokenHandler(table *trb.WorkerTable, m *metrics.Metrics, dispatcher *Dispatcher) *TokenHandler {
	return &TokenHandler{table: table, metrics: m, dispatcher: dispatcher}
}

// SetRunNumber captures the run number used by the stale-run filter.
// Called once at start.
func (h *TokenHandler) SetRunNumber(run uint64) { h.runNumber.Store(run) }

// SetMetadataFn installs an optional callback invoked with a worker's
// metadata blob on each successful completion.
func (h *TokenHandler) SetMetadataFn(fn func(map[string]any)) { h.metadataFn = fn }

// Handle decodes payload as a CompletionToken and applies the
// completion protocol: stale-run tokens are counted and discarded;
// tokens for an unknown destination or with no matching assignment are
// warned about and otherwise ignored; a genuine completion clears the
// assignment, records latency, clears in_error if set, and notifies the
// slot signal unconditionally.
func (h *TokenHandler) Handle(payload []byte) {
	token, err := codec.DecodeToken(payload)
	if err != nil {
		log.Printf("[TOKEN] ❌ decode: %v", err)
		return
	}

	h.metrics.IncTokensReceived()

	if token.RunNumber != h.runNumber.Load() {
		log.Printf("[TOKEN] stale run_number=%d (current %d), trigger=%d discarded", token.RunNumber, h.runNumber.Load(), token.TriggerNumber)
		return
	}

	worker, ok := h.table.Get(token.DecisionDestination)
	if !ok {
		log.Printf("[TOKEN] ⚠️ unknown destination %q for trigger=%d", token.DecisionDestination, token.TriggerNumber)
		return
	}

	if _, err := worker.CompleteAssignment(token.TriggerNumber, h.metadataFn); err != nil {
		log.Printf("[TOKEN] ⚠️ %v (worker=%s trigger=%d)", err, token.DecisionDestination, token.TriggerNumber)
		return
	}

	if worker.InError() {
		worker.SetInError(false)
		log.Printf("[TOKEN] worker %s reconnected, in_error cleared", token.DecisionDestination)
	}

	h.dispatcher.NotifySlotAvailable()
}
