package worker

import (
	"testing"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/codec"
	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/network"
)

func TestReferenceTRBReportsCompletion(t *testing.T) {
	bus := network.NewLocalBus()
	if err := bus.StartListening("tokens"); err != nil {
		t.Fatal(err)
	}

	tokens := make(chan []byte, 1)
	if err := bus.RegisterCallback("tokens", func(b []byte) { tokens <- b }); err != nil {
		t.Fatal(err)
	}

	trb := NewReferenceTRB("trb-1", "tokens", 2, bus)
	if err := trb.Start(); err != nil {
		t.Fatal(err)
	}
	defer trb.Stop()

	decision := models.TriggerDecision{TriggerNumber: 7, RunNumber: 1}
	payload, err := codec.EncodeDecision(decision)
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.Deliver("trb-1", payload); err != nil {
		t.Fatal(err)
	}

	select {
	case b := <-tokens:
		token, err := codec.DecodeToken(b)
		if err != nil {
			t.Fatal(err)
		}
		if token.TriggerNumber != 7 || token.DecisionDestination != "trb-1" {
			t.Fatalf("unexpected token: %+v", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion token never arrived")
	}

	deadline := time.Now().Add(time.Second)
	for trb.ActiveJobs() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if trb.ActiveJobs() != 0 {
		t.Fatalf("active jobs = %d, want 0 after completion", trb.ActiveJobs())
	}
}
