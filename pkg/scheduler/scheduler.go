// Package scheduler owns the orchestrator's lifecycle state machine:
// configure, start, stop, scrap. It wires together the worker table, the
// decision queue, the dispatch loop, and the token handler the way the
// host DAQ framework expects — lifecycle commands arrive serialized,
// one at a time, and the core reacts.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/config"
	"github.com/athulya-anil/axon-dfo/pkg/dispatch"
	"github.com/athulya-anil/axon-dfo/pkg/metrics"
	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/network"
	"github.com/athulya-anil/axon-dfo/pkg/queue"
	"github.com/athulya-anil/axon-dfo/pkg/trb"
)

// State is a position in the lifecycle state machine.
type State int

const (
	StateInit State = iota
	StateConfigured
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConfigured:
		return "CONFIGURED"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// Orchestrator is the Data Flow Orchestrator core: the state machine
// plus the collaborators it wires together once configured. Lifecycle
// methods are not safe for concurrent use with each other — the host
// framework is expected to serialize them — but once RUNNING, decision
// submission and status reads are safe from any goroutine.
type Orchestrator struct {
	mu    sync.Mutex
	state State

	cfg   *config.Config
	net   network.Manager
	table *trb.WorkerTable
	q     *queue.DecisionQueue
	m     *metrics.Metrics

	dispatcher *dispatch.Dispatcher
	tokens     *dispatch.TokenHandler

	cancel    context.CancelFunc
	runNumber uint64
}

// New creates an Orchestrator in the INIT state.
func New() *Orchestrator {
	return &Orchestrator{state: StateInit}
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Configure populates the WorkerTable from cfg and wires the network
// manager the dispatcher will use. Rejected outside INIT/CONFIGURED.
func (o *Orchestrator) Configure(cfg *config.Config, net network.Manager) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateInit && o.state != StateConfigured {
		return fmt.Errorf("scheduler: configure rejected in state %s", o.state)
	}

	table := trb.NewWorkerTable()
	for _, spec := range cfg.DataflowApplications {
		ws, err := trb.NewWorkerState(spec.ConnectionName, spec.Capacity, spec.FreeThreshold)
		if err != nil {
			return fmt.Errorf("scheduler: configure %q: %w", spec.ConnectionName, err)
		}
		table.Register(ws)
	}

	o.cfg = cfg
	o.net = net
	o.table = table
	o.q = queue.NewDecisionQueue(cfg.QueueCapacity)
	o.m = metrics.New()
	o.state = StateConfigured

	log.Printf("[SCHEDULER] configured with %d workers", table.Len())
	return nil
}

// Start registers the token callback, launches the dispatch loop, and
// captures runNumber for the stale-run filter. Rejected outside
// CONFIGURED.
func (o *Orchestrator) Start(ctx context.Context, runNumber uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateConfigured {
		return fmt.Errorf("scheduler: start rejected in state %s", o.state)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.dispatcher = dispatch.New(o.table, o.q, o.net, o.m, o.cfg.GeneralQueueTimeout, o.cfg.TDSendRetries)
	o.tokens = dispatch.NewTokenHandler(o.table, o.m, o.dispatcher)
	o.tokens.SetRunNumber(runNumber)
	o.runNumber = runNumber

	if err := o.net.StartListening(o.cfg.TokenConnection); err != nil {
		cancel()
		return fmt.Errorf("scheduler: start listening on %q: %w", o.cfg.TokenConnection, err)
	}
	if err := o.net.RegisterCallback(o.cfg.TokenConnection, o.tokens.Handle); err != nil {
		cancel()
		return fmt.Errorf("scheduler: register token callback: %w", err)
	}

	go o.dispatcher.Run(runCtx)

	o.state = StateRunning
	log.Printf("[SCHEDULER] 🚀 started, run_number=%d", runNumber)
	return nil
}

// Stop clears the run flag, joins the dispatcher, and deregisters the
// token callback. Idempotent from RUNNING; a no-op from CONFIGURED.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRunning {
		return nil
	}

	o.dispatcher.Stop()
	if err := o.net.ClearCallback(o.cfg.TokenConnection); err != nil {
		log.Printf("[SCHEDULER] ⚠️ clear token callback: %v", err)
	}
	o.cancel()

	o.state = StateConfigured
	log.Printf("[SCHEDULER] 🛑 stopped")
	return nil
}

// Scrap stops listening for tokens and clears the WorkerTable, returning
// to INIT. Rejected from RUNNING — stop first.
func (o *Orchestrator) Scrap() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning {
		return fmt.Errorf("scheduler: scrap rejected in state %s", o.state)
	}
	if o.state == StateInit {
		return nil
	}

	if err := o.net.StopListening(o.cfg.TokenConnection); err != nil {
		log.Printf("[SCHEDULER] ⚠️ stop listening: %v", err)
	}
	o.table.Clear()
	o.state = StateInit
	log.Printf("[SCHEDULER] scrapped")
	return nil
}

// Submit pushes a trigger decision onto the input queue. If the queue is
// full it blocks for backpressure until room frees up or ctx is done.
func (o *Orchestrator) Submit(ctx context.Context, decision models.TriggerDecision) error {
	o.mu.Lock()
	q := o.q
	o.mu.Unlock()

	if q == nil {
		return fmt.Errorf("scheduler: not configured")
	}
	return q.Push(ctx, decision, 0)
}

// Metrics returns the current counter snapshot, zeroing every counter it
// reads. Intended for exactly one periodic exporter — calling this from
// more than one place silently splits the counts between callers.
func (o *Orchestrator) Metrics() metrics.Snapshot {
	o.mu.Lock()
	m := o.m
	o.mu.Unlock()
	if m == nil {
		return metrics.Snapshot{}
	}
	return m.Snapshot()
}

// PeekMetrics returns the current counter values without resetting them,
// for display contexts (the dashboard, a status probe) that must not
// compete with Metrics' exporter for the same counts.
func (o *Orchestrator) PeekMetrics() metrics.Snapshot {
	o.mu.Lock()
	m := o.m
	o.mu.Unlock()
	if m == nil {
		return metrics.Snapshot{}
	}
	return m.Peek()
}

// Workers returns a view of every registered worker's bookkeeping,
// latency averaged over the last window duration.
func (o *Orchestrator) Workers(window time.Duration) []models.WorkerView {
	o.mu.Lock()
	table := o.table
	o.mu.Unlock()

	if table == nil {
		return nil
	}

	since := models.LatencySince(window)
	all := table.All()
	views := make([]models.WorkerView, 0, len(all))
	for _, ws := range all {
		views = append(views, ws.View(since))
	}
	return views
}

// RunNumber returns the run number captured at the most recent start, or
// zero if the orchestrator has never been started. Stop and Scrap leave
// it unchanged.
func (o *Orchestrator) RunNumber() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runNumber
}
