package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoCodeAlone/conductor/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func event(typ events.Type, taskID, worker string, at time.Time) *events.Event {
	ev := events.New(typ, "msg", at)
	ev.TaskID, ev.Task = taskID, "title-"+taskID
	ev.Worker = worker
	return ev
}

func TestStore_RecordAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ev := event(events.TaskCompleted, "t1", "Emma", at)
	ev.Metadata = map[string]string{"hours": "4.00"}
	if err := store.Record(ctx, ev); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != events.TaskCompleted || got.Task != "title-t1" || got.Worker != "Emma" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata["hours"] != "4.00" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if !got.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, at)
	}

	if _, err := store.Get(ctx, "missing"); err == nil {
		t.Error("Get(missing) returned no error")
	}
}

func TestStore_RecordIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ev := event(events.TaskCreated, "t1", "", time.Now())

	for range 2 {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestStore_ListFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	evs := []*events.Event{
		event(events.TaskCreated, "t1", "", base),
		event(events.TaskAssigned, "t1", "Emma", base.Add(time.Minute)),
		event(events.TaskAssigned, "t2", "Alex", base.Add(2*time.Minute)),
		event(events.TaskCompleted, "t1", "Emma", base.Add(3*time.Minute)),
	}
	for _, ev := range evs {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string // event IDs in order
	}{
		{"all", Filter{}, []string{evs[0].ID, evs[1].ID, evs[2].ID, evs[3].ID}},
		{"wildcard type", Filter{Type: events.All}, []string{evs[0].ID, evs[1].ID, evs[2].ID, evs[3].ID}},
		{"by type", Filter{Type: events.TaskAssigned}, []string{evs[1].ID, evs[2].ID}},
		{"by task", Filter{TaskID: "t1"}, []string{evs[0].ID, evs[1].ID, evs[3].ID}},
		{"by worker", Filter{Worker: "Emma"}, []string{evs[1].ID, evs[3].ID}},
		{"most recent two", Filter{Limit: 2}, []string{evs[2].ID, evs[3].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, ev := range got {
				if ev.ID != tt.want[i] {
					t.Errorf("[%d] = %s (%s), want %s", i, ev.ID, ev.Type, tt.want[i])
				}
			}
		})
	}
}

func TestStore_BusHandler(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewInMemoryBus()
	bus.Subscribe(events.All, store.Handler())

	ctx := context.Background()
	if err := bus.Publish(ctx, event(events.TaskUnblocked, "t3", "", time.Now())); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := store.List(ctx, Filter{Type: events.TaskUnblocked})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].TaskID != "t3" {
		t.Errorf("journal = %+v", got)
	}
}
