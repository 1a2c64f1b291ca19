package trb

import (
	"testing"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

func newTable(t *testing.T, capacities map[string]int) *WorkerTable {
	table := NewWorkerTable()
	for name, cap := range capacities {
		ws, err := NewWorkerState(name, cap, cap)
		if err != nil {
			t.Fatal(err)
		}
		table.Register(ws)
	}
	return table
}

// TestBasicRotation covers spec scenario S1: two workers, capacity 2,
// decisions 1..4 should land A,B,A,B.
func TestBasicRotation(t *testing.T) {
	table := NewWorkerTable()
	a, _ := NewWorkerState("A", 2, 2)
	b, _ := NewWorkerState("B", 2, 2)
	table.Register(a)
	table.Register(b)

	var order []string
	for tn := uint64(1); tn <= 4; tn++ {
		ws, assignment := table.FindSlot(models.TriggerDecision{TriggerNumber: tn})
		if ws == nil {
			t.Fatalf("expected a slot for decision %d", tn)
		}
		if err := ws.AddAssignment(assignment); err != nil {
			t.Fatal(err)
		}
		order = append(order, ws.ConnectionName())
	}

	want := []string{"A", "B", "A", "B"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
	if a.OutstandingLen() != 2 || b.OutstandingLen() != 2 {
		t.Fatalf("expected 2/2 outstanding, got A=%d B=%d", a.OutstandingLen(), b.OutstandingLen())
	}
	if !a.IsBusy() || !b.IsBusy() {
		t.Fatal("expected both workers busy")
	}
}

func TestFindSlotReturnsNilWhenAllBusy(t *testing.T) {
	table := newTable(t, map[string]int{"A": 1})
	a, _ := table.Get("A")
	_ = a.AddAssignment(a.MakeAssignment(models.TriggerDecision{TriggerNumber: 1}))

	ws, assignment := table.FindSlot(models.TriggerDecision{TriggerNumber: 2})
	if ws != nil || assignment != nil {
		t.Fatal("expected no slot when every worker is busy")
	}
}

func TestFindSlotSkipsInError(t *testing.T) {
	table := NewWorkerTable()
	a, _ := NewWorkerState("A", 2, 2)
	b, _ := NewWorkerState("B", 2, 2)
	a.SetInError(true)
	table.Register(a)
	table.Register(b)

	ws, _ := table.FindSlot(models.TriggerDecision{TriggerNumber: 1})
	if ws == nil || ws.ConnectionName() != "B" {
		t.Fatalf("expected B to be selected, got %v", ws)
	}
}

func TestClearResetsTable(t *testing.T) {
	table := newTable(t, map[string]int{"A": 1, "B": 1})
	table.Clear()
	if table.Len() != 0 {
		t.Fatal("expected empty table after Clear")
	}
	if _, ok := table.Get("A"); ok {
		t.Fatal("expected lookup to miss after Clear")
	}
}
