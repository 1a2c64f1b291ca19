package trb

import (
	"testing"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

func TestNewWorkerStateThresholdsInconsistent(t *testing.T) {
	if _, err := NewWorkerState("trb-1", 3, 5); err != ErrThresholdsInconsistent {
		t.Fatalf("expected ErrThresholdsInconsistent, got %v", err)
	}
}

func TestHasSlotReflectsBusyAndError(t *testing.T) {
	ws, err := NewWorkerState("trb-1", 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ws.HasSlot() {
		t.Fatal("expected fresh worker to have a slot")
	}

	a1 := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: 1})
	a2 := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: 2})
	if err := ws.AddAssignment(a1); err != nil {
		t.Fatal(err)
	}
	if err := ws.AddAssignment(a2); err != nil {
		t.Fatal(err)
	}
	if !ws.IsBusy() {
		t.Fatal("expected busy after reaching busy_threshold")
	}
	if ws.HasSlot() {
		t.Fatal("expected no slot while busy")
	}

	ws.SetInError(true)
	if ws.HasSlot() {
		t.Fatal("in_error must hide capacity from the selector")
	}
}

// TestHysteresis covers spec scenario S6.
func TestHysteresis(t *testing.T) {
	ws, err := NewWorkerState("trb-1", 5, 3)
	if err != nil {
		t.Fatal(err)
	}

	for i := uint64(1); i <= 5; i++ {
		a := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: i})
		if err := ws.AddAssignment(a); err != nil {
			t.Fatal(err)
		}
	}
	if !ws.IsBusy() {
		t.Fatal("expected busy at 5/5")
	}

	if _, err := ws.CompleteAssignment(1, nil); err != nil {
		t.Fatal(err)
	}
	if !ws.IsBusy() {
		t.Fatal("expected still busy at 4 outstanding (strict <)")
	}

	if _, err := ws.CompleteAssignment(2, nil); err != nil {
		t.Fatal(err)
	}
	if !ws.IsBusy() {
		t.Fatal("expected still busy at 3 outstanding (strict <)")
	}

	if _, err := ws.CompleteAssignment(3, nil); err != nil {
		t.Fatal(err)
	}
	if ws.IsBusy() {
		t.Fatal("expected free at 2 outstanding (< free_threshold)")
	}
}

func TestAddAssignmentFailsInError(t *testing.T) {
	ws, _ := NewWorkerState("trb-1", 2, 1)
	ws.SetInError(true)

	a := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: 1})
	if err := ws.AddAssignment(a); err != ErrNoSlotsAvailable {
		t.Fatalf("expected ErrNoSlotsAvailable, got %v", err)
	}
}

func TestCompleteAssignmentNotFound(t *testing.T) {
	ws, _ := NewWorkerState("trb-1", 2, 1)
	if _, err := ws.CompleteAssignment(999, nil); err != ErrAssignmentNotFound {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
	if ws.InError() {
		t.Fatal("unknown trigger token must not mutate in_error")
	}
}

func TestExtractAssignmentIsNotDoubleFree(t *testing.T) {
	ws, _ := NewWorkerState("trb-1", 3, 1)
	a := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: 7})
	_ = ws.AddAssignment(a)

	first := ws.ExtractAssignment(7)
	if first == nil {
		t.Fatal("expected first extract to succeed")
	}
	second := ws.ExtractAssignment(7)
	if second != nil {
		t.Fatal("second extract of the same trigger number must return nil")
	}
}

func TestAddExtractRoundTrip(t *testing.T) {
	ws, _ := NewWorkerState("trb-1", 3, 1)
	a := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: 42})
	_ = ws.AddAssignment(a)

	got := ws.ExtractAssignment(42)
	if got != a {
		t.Fatal("extract_assignment must return the same Assignment value that was added")
	}
}

func TestAverageLatencyEmptyWindowIsZero(t *testing.T) {
	ws, _ := NewWorkerState("trb-1", 3, 1)
	if got := ws.AverageLatency(time.Now()); got != 0 {
		t.Fatalf("expected zero duration for empty window, got %v", got)
	}
}

func TestCompleteAssignmentMetadataCallback(t *testing.T) {
	ws, _ := NewWorkerState("trb-1", 3, 1)
	a := ws.MakeAssignment(models.TriggerDecision{TriggerNumber: 1})
	_ = ws.AddAssignment(a)

	called := false
	_, err := ws.CompleteAssignment(1, func(m map[string]any) {
		called = true
		m["last_trigger"] = uint64(1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("expected metadata callback to be invoked")
	}
	if ws.Metadata()["last_trigger"] != uint64(1) {
		t.Fatal("expected metadata mutation to persist")
	}
}
