package queue

import (
	"context"
	"testing"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
)

func TestDecisionQueueFIFOAtEqualPriority(t *testing.T) {
	q := NewDecisionQueue(0)
	ctx := context.Background()

	for tn := uint64(1); tn <= 4; tn++ {
		if err := q.Push(ctx, models.TriggerDecision{TriggerNumber: tn}, 0); err != nil {
			t.Fatal(err)
		}
	}

	for tn := uint64(1); tn <= 4; tn++ {
		d, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("expected decision %d to be present", tn)
		}
		if d.TriggerNumber != tn {
			t.Fatalf("expected FIFO order, got trigger %d at position for %d", d.TriggerNumber, tn)
		}
	}
}

func TestDecisionQueuePriorityOrdering(t *testing.T) {
	q := NewDecisionQueue(0)
	ctx := context.Background()

	_ = q.Push(ctx, models.TriggerDecision{TriggerNumber: 1}, 5)
	_ = q.Push(ctx, models.TriggerDecision{TriggerNumber: 2}, 1)
	_ = q.Push(ctx, models.TriggerDecision{TriggerNumber: 3}, 3)

	first, _ := q.Pop(time.Second)
	if first.TriggerNumber != 2 {
		t.Fatalf("expected trigger 2 (priority 1) first, got %d", first.TriggerNumber)
	}
	second, _ := q.Pop(time.Second)
	if second.TriggerNumber != 3 {
		t.Fatalf("expected trigger 3 (priority 3) second, got %d", second.TriggerNumber)
	}
}

func TestDecisionQueuePopTimesOutWhenEmpty(t *testing.T) {
	q := NewDecisionQueue(0)
	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout on empty queue")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("Pop returned before its timeout elapsed")
	}
}

func TestDecisionQueuePushBlocksAtCapacity(t *testing.T) {
	q := NewDecisionQueue(1)
	ctx := context.Background()
	if err := q.Push(ctx, models.TriggerDecision{TriggerNumber: 1}, 0); err != nil {
		t.Fatal(err)
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.Push(ctx2, models.TriggerDecision{TriggerNumber: 2}, 0)
	if err == nil {
		t.Fatal("expected Push to block and then fail once context is cancelled")
	}
}

func TestDecisionQueueCloseWakesPop(t *testing.T) {
	q := NewDecisionQueue(0)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(time.Second)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Pop to report no decision after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Close")
	}
}
