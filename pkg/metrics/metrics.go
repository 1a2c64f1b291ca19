// Package metrics holds the orchestrator's operational counters and
// timers, the Go equivalent of the host framework's OpMon structs. Every
// field is an atomic so the dispatcher, the token handler, and the
// status API can touch them from different goroutines without a lock.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics is the set of counters and accumulators the specification
// requires be exposed per run: counts of tokens and decisions seen, plus
// running totals of the three timed phases of dispatch. Durations are
// stored and reported as accumulated microseconds; Snapshot reports
// totals only, not means.
type Metrics struct {
	tokensReceived   atomic.Int64
	decisionsSent    atomic.Int64
	decisionsReceived atomic.Int64

	decidingDestinationUs atomic.Int64
	waitingForDecisionUs  atomic.Int64
	waitingForSlotsUs     atomic.Int64
}

// New creates a zeroed Metrics.
func New() *Metrics {
	return &Metrics{}
}

// IncTokensReceived counts one inbound completion token, regardless of
// whether it was ultimately actionable.
func (m *Metrics) IncTokensReceived() { m.tokensReceived.Add(1) }

// IncDecisionsSent counts one trigger decision successfully handed to
// the network layer.
func (m *Metrics) IncDecisionsSent() { m.decisionsSent.Add(1) }

// IncDecisionsReceived counts one trigger decision pulled off the input
// queue by the dispatch loop.
func (m *Metrics) IncDecisionsReceived() { m.decisionsReceived.Add(1) }

// AddDecidingDestination accumulates time spent in FindSlot's scan.
func (m *Metrics) AddDecidingDestination(d time.Duration) {
	m.decidingDestinationUs.Add(d.Microseconds())
}

// AddWaitingForDecision accumulates time blocked on the input queue.
func (m *Metrics) AddWaitingForDecision(d time.Duration) {
	m.waitingForDecisionUs.Add(d.Microseconds())
}

// AddWaitingForSlots accumulates time blocked waiting for any worker to
// free a slot.
func (m *Metrics) AddWaitingForSlots(d time.Duration) {
	m.waitingForSlotsUs.Add(d.Microseconds())
}

// Snapshot is a point-in-time read of every counter, suitable for JSON
// marshaling on the status API.
type Snapshot struct {
	TokensReceived        int64 `json:"tokens_received"`
	DecisionsSent         int64 `json:"decisions_sent"`
	DecisionsReceived     int64 `json:"decisions_received"`
	DecidingDestinationUs int64 `json:"deciding_destination_us"`
	WaitingForDecisionUs  int64 `json:"waiting_for_decision_us"`
	WaitingForSlotsUs     int64 `json:"waiting_for_slots_us"`
}

// Snapshot reads every counter and atomically zeroes it, matching the
// "exported on demand, zeroed on read" contract periodic exporters rely
// on: two consecutive snapshots report the deltas for their own window,
// never a running total. Because it resets state, at most one consumer
// (the periodic exporter) should ever call this; anything else that
// wants to look at the counters — the dashboard, a second API caller —
// should use Peek instead, or it will steal the exporter's counts.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TokensReceived:        m.tokensReceived.Swap(0),
		DecisionsSent:         m.decisionsSent.Swap(0),
		DecisionsReceived:     m.decisionsReceived.Swap(0),
		DecidingDestinationUs: m.decidingDestinationUs.Swap(0),
		WaitingForDecisionUs:  m.waitingForDecisionUs.Swap(0),
		WaitingForSlotsUs:     m.waitingForSlotsUs.Swap(0),
	}
}

// Peek reads every counter without resetting it, for display purposes
// (the dashboard, a status probe) where destructively draining the
// counters out from under the periodic exporter would be wrong.
func (m *Metrics) Peek() Snapshot {
	return Snapshot{
		TokensReceived:        m.tokensReceived.Load(),
		DecisionsSent:         m.decisionsSent.Load(),
		DecisionsReceived:     m.decisionsReceived.Load(),
		DecidingDestinationUs: m.decidingDestinationUs.Load(),
		WaitingForDecisionUs:  m.waitingForDecisionUs.Load(),
		WaitingForSlotsUs:     m.waitingForSlotsUs.Load(),
	}
}
