package trb

import (
	"sync"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

// WorkerTable is the configure-time-frozen topology of known workers: a
// sequence of connection names fixed at configure and a lookup map, plus
// a rotating cursor used by FindSlot for round-robin selection. The
// cursor is a plain index into the frozen sequence rather than a map
// iterator, so it stays valid even though Go map iteration order is
// randomized.
type WorkerTable struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]*WorkerState
	cursor int
}

// NewWorkerTable creates an empty table. The cursor starts at -1 so the
// first FindSlot call (which advances before checking) lands on index 0.
func NewWorkerTable() *WorkerTable {
	return &WorkerTable{
		byName: make(map[string]*WorkerState),
		cursor: -1,
	}
}

// Register adds a worker to the table. Structural mutation like this is
// only safe during configure/scrap, when no dispatcher is running.
func (t *WorkerTable) Register(ws *WorkerState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byName[ws.ConnectionName()]; !exists {
		t.names = append(t.names, ws.ConnectionName())
	}
	t.byName[ws.ConnectionName()] = ws
}

// Clear removes every worker from the table and resets the cursor.
func (t *WorkerTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.names = nil
	t.byName = make(map[string]*WorkerState)
	t.cursor = -1
}

// Get looks up a worker by connection name.
func (t *WorkerTable) Get(name string) (*WorkerState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ws, ok := t.byName[name]
	return ws, ok
}

// Len returns the number of registered workers.
func (t *WorkerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// All returns a snapshot of every registered worker, in table order.
func (t *WorkerTable) All() []*WorkerState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*WorkerState, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.byName[name])
	}
	return out
}

// HasSlot reports whether any registered worker currently has a free
// slot. Used by the dispatcher's Phase A wait predicate.
func (t *WorkerTable) HasSlot() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, name := range t.names {
		if t.byName[name].HasSlot() {
			return true
		}
	}
	return false
}

// FindSlot advances the cursor one step, then scans forward (wrapping)
// for a worker with a free slot, making at most one full revolution. The
// cursor advances before the first check so that repeated successful
// dispatches round-robin across workers. It returns nil, nil if no
// worker is currently free.
func (t *WorkerTable) FindSlot(decision models.TriggerDecision) (*WorkerState, *Assignment) {
	t.mu.Lock()
	n := len(t.names)
	if n == 0 {
		t.mu.Unlock()
		return nil, nil
	}

	for tries := 0; tries < n; tries++ {
		t.cursor = (t.cursor + 1) % n
		ws := t.byName[t.names[t.cursor]]
		if ws.HasSlot() {
			t.mu.Unlock()
			return ws, ws.MakeAssignment(decision)
		}
	}

	t.mu.Unlock()
	return nil, nil
}
