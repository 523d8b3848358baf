package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestInMemoryBus_Subscribe_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	var received int32
	unsub := bus.Subscribe(TaskAssigned, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})

	ev := New(TaskAssigned, "assigned", time.Now())
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received = %d, want 1", received)
	}

	unsub()
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish after unsub: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received after unsub = %d, want 1", received)
	}
}

func TestInMemoryBus_TypeRouting(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	var assigned, completed, all int32
	bus.Subscribe(TaskAssigned, func(context.Context, *Event) error { atomic.AddInt32(&assigned, 1); return nil })
	bus.Subscribe(TaskCompleted, func(context.Context, *Event) error { atomic.AddInt32(&completed, 1); return nil })
	bus.Subscribe(All, func(context.Context, *Event) error { atomic.AddInt32(&all, 1); return nil })

	for _, typ := range []Type{TaskAssigned, TaskAssigned, TaskCompleted, TaskUnblocked} {
		if err := bus.Publish(ctx, New(typ, "", time.Now())); err != nil {
			t.Fatalf("Publish %s: %v", typ, err)
		}
	}

	if assigned != 2 || completed != 1 || all != 4 {
		t.Errorf("assigned=%d completed=%d all=%d, want 2 1 4", assigned, completed, all)
	}
}

func TestInMemoryBus_HandlerError(t *testing.T) {
	bus := NewInMemoryBus()
	boom := errors.New("boom")

	var called int32
	bus.Subscribe(All, func(context.Context, *Event) error { return boom })
	bus.Subscribe(All, func(context.Context, *Event) error { atomic.AddInt32(&called, 1); return nil })

	err := bus.Publish(context.Background(), New(TaskCreated, "", time.Now()))
	if !errors.Is(err, boom) {
		t.Errorf("Publish err = %v, want boom", err)
	}
	if called != 1 {
		t.Error("second handler skipped after first failed")
	}
}

func TestInMemoryBus_History(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		if err := bus.Publish(ctx, New(TaskCreated, msg, time.Now())); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	got := bus.History(2)
	if len(got) != 2 || got[0].Message != "two" || got[1].Message != "three" {
		t.Errorf("History(2) = %+v", got)
	}
	if all := bus.History(0); len(all) != 3 {
		t.Errorf("History(0) len = %d, want 3", len(all))
	}
}

func TestInMemoryBus_HistoryCap(t *testing.T) {
	bus := NewInMemoryBus()
	bus.maxHist = 5
	for range 8 {
		_ = bus.Publish(context.Background(), New(TaskCreated, "", time.Now()))
	}
	if n := len(bus.History(0)); n != 5 {
		t.Errorf("history len = %d, want 5", n)
	}
}
