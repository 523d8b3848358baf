package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/conductor/events"
)

// readEvent reads one SSE event and returns its type and data.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var typ, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return typ, data
		case strings.HasPrefix(line, "event: "):
			typ = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data += strings.TrimPrefix(line, "data: ")
		}
	}
}

func connect(t *testing.T, hub *Hub, query string) *bufio.Reader {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeSSE))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+query, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)
	if typ, _ := readEvent(t, r); typ != "connected" {
		t.Fatalf("first event = %q, want connected", typ)
	}
	return r
}

func TestHub_StreamsEvents(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := connect(t, hub, "")
	if hub.Clients() != 1 {
		t.Fatalf("Clients = %d, want 1", hub.Clients())
	}

	ev := events.New(events.TaskAssigned, "planned", time.Now())
	ev.Task, ev.Worker = "Schema", "Alice"
	if err := hub.Handler()(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	typ, data := readEvent(t, r)
	if typ != string(events.TaskAssigned) {
		t.Errorf("event type = %q", typ)
	}
	var got events.Event
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if got.ID != ev.ID || got.Task != "Schema" || got.Worker != "Alice" {
		t.Errorf("event = %+v", got)
	}
}

func TestHub_TypeFilter(t *testing.T) {
	hub := NewHub(nil)
	r := connect(t, hub, "?type=task.completed,plan.applied")

	hub.Broadcast(events.New(events.TaskCreated, "", time.Now()))
	hub.Broadcast(events.New(events.PlanApplied, "no assignments", time.Now()))

	if typ, _ := readEvent(t, r); typ != string(events.PlanApplied) {
		t.Errorf("event type = %q, want plan.applied", typ)
	}
}

func TestParseTypes(t *testing.T) {
	if parseTypes("") != nil || parseTypes(" , ") != nil {
		t.Error("empty filter should match everything")
	}
	only := parseTypes("task.created, task.assigned")
	if !only[events.TaskCreated] || !only[events.TaskAssigned] || len(only) != 2 {
		t.Errorf("parseTypes = %v", only)
	}
}
