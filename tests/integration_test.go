// Package tests exercises the Data Flow Orchestrator end to end: a
// configured Orchestrator, a LocalBus standing in for the network
// manager, and one or more ReferenceTRB workers driving the full
// dispatch/token-handler protocol without sockets.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/config"
	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/network"
	"github.com/athulya-anil/axon-dfo/pkg/scheduler"
	"github.com/athulya-anil/axon-dfo/pkg/worker"
)

func testConfig(apps ...models.WorkerSpec) *config.Config {
	cfg := &config.Config{
		DataflowApplications: apps,
		GeneralQueueTimeout:  50 * time.Millisecond,
		TokenConnection:      "tokens",
		TDSendRetries:        2,
		FreeThresholdRatio:   0.5,
	}
	return cfg
}

// TestOrchestratorLifecycle walks the INIT -> CONFIGURED -> RUNNING ->
// CONFIGURED -> INIT state machine and checks each transition's guard.
func TestOrchestratorLifecycle(t *testing.T) {
	o := scheduler.New()
	bus := network.NewLocalBus()

	cfg := testConfig(models.WorkerSpec{ConnectionName: "trb-1", Capacity: 2, FreeThreshold: 1})

	if o.State() != scheduler.StateInit {
		t.Fatalf("expected initial state INIT, got %s", o.State())
	}

	if err := o.Configure(cfg, bus); err != nil {
		t.Fatal(err)
	}
	if o.State() != scheduler.StateConfigured {
		t.Fatalf("expected CONFIGURED after configure, got %s", o.State())
	}

	if err := bus.StartListening("trb-1"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Start(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if o.State() != scheduler.StateRunning {
		t.Fatalf("expected RUNNING after start, got %s", o.State())
	}

	if err := o.Scrap(); err == nil {
		t.Fatal("expected scrap to be rejected while RUNNING")
	}

	if err := o.Stop(); err != nil {
		t.Fatal(err)
	}
	if o.State() != scheduler.StateConfigured {
		t.Fatalf("expected CONFIGURED after stop, got %s", o.State())
	}

	if err := o.Scrap(); err != nil {
		t.Fatal(err)
	}
	if o.State() != scheduler.StateInit {
		t.Fatalf("expected INIT after scrap, got %s", o.State())
	}
}

// TestEndToEndDispatchAndCompletion covers spec scenario S1 against a
// real ReferenceTRB: decisions flow through the orchestrator, the TRB
// builds them, and completion tokens flow back, clearing outstanding
// assignments and eventually freeing every worker slot.
func TestEndToEndDispatchAndCompletion(t *testing.T) {
	bus := network.NewLocalBus()

	cfg := testConfig(
		models.WorkerSpec{ConnectionName: "trb-1", Capacity: 2, FreeThreshold: 1},
		models.WorkerSpec{ConnectionName: "trb-2", Capacity: 2, FreeThreshold: 1},
	)

	o := scheduler.New()
	if err := o.Configure(cfg, bus); err != nil {
		t.Fatal(err)
	}

	if err := bus.StartListening("tokens"); err != nil {
		t.Fatal(err)
	}

	trb1 := worker.NewReferenceTRB("trb-1", "tokens", 2, bus)
	trb2 := worker.NewReferenceTRB("trb-2", "tokens", 2, bus)
	if err := trb1.Start(); err != nil {
		t.Fatal(err)
	}
	if err := trb2.Start(); err != nil {
		t.Fatal(err)
	}
	defer trb1.Stop()
	defer trb2.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Start(ctx, 1); err != nil {
		t.Fatal(err)
	}
	defer o.Stop()

	for tn := uint64(1); tn <= 4; tn++ {
		if err := o.Submit(ctx, models.TriggerDecision{TriggerNumber: tn, RunNumber: 1}); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := o.PeekMetrics()
		if snap.TokensReceived >= 4 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	allFree := func() bool {
		for _, w := range o.Workers(time.Minute) {
			if w.Outstanding != 0 || w.IsBusy {
				return false
			}
		}
		return true
	}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !allFree() {
		time.Sleep(20 * time.Millisecond)
	}
	if !allFree() {
		t.Fatalf("expected every worker's outstanding assignments to clear, got %+v", o.Workers(time.Minute))
	}
}

// TestBackpressureBlocksSubmitUntilSlotFrees covers spec scenario S2: a
// single-capacity worker, two decisions in flight, and a third Submit
// that only succeeds once the orchestrator's bounded queue has room,
// which in turn only happens once the first decision completes and its
// slot frees.
func TestBackpressureBlocksSubmitUntilSlotFrees(t *testing.T) {
	bus := network.NewLocalBus()
	cfg := testConfig(models.WorkerSpec{ConnectionName: "trb-1", Capacity: 1, FreeThreshold: 1})
	cfg.QueueCapacity = 1

	o := scheduler.New()
	if err := o.Configure(cfg, bus); err != nil {
		t.Fatal(err)
	}
	if err := bus.StartListening("tokens"); err != nil {
		t.Fatal(err)
	}

	trb := worker.NewReferenceTRB("trb-1", "tokens", 1, bus)
	if err := trb.Start(); err != nil {
		t.Fatal(err)
	}
	defer trb.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Start(ctx, 1); err != nil {
		t.Fatal(err)
	}
	defer o.Stop()

	for tn := uint64(1); tn <= 2; tn++ {
		if err := o.Submit(ctx, models.TriggerDecision{TriggerNumber: tn, RunNumber: 1}); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- o.Submit(ctx, models.TriggerDecision{TriggerNumber: 3, RunNumber: 1})
	}()

	select {
	case err := <-done:
		t.Fatalf("third submit returned early (err=%v) before any slot freed up", err)
	case <-time.After(30 * time.Millisecond):
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("third submit never unblocked after workers drained")
	}
}
