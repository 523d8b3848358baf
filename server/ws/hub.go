// Package ws implements a Server-Sent Events hub that streams lifecycle
// events to connected clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/GoCodeAlone/conductor/events"
)

const clientBuffer = 64

// client represents a single SSE connection.
type client struct {
	ch   chan frame
	only map[events.Type]bool // nil receives everything
}

func (c *client) wants(typ events.Type) bool {
	return c.only == nil || c.only[typ]
}

type frame struct {
	typ  events.Type
	data []byte
}

// Hub manages SSE client connections and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *slog.Logger
}

// NewHub creates a Hub ready to accept connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Handler returns a bus handler that forwards every event to the hub.
func (h *Hub) Handler() events.Handler {
	return func(_ context.Context, ev *events.Event) error {
		h.Broadcast(ev)
		return nil
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends ev to all interested clients. Slow clients miss events
// rather than block the publisher.
func (h *Hub) Broadcast(ev *events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("hub broadcast marshal", slog.Any("err", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev.Type) {
			continue
		}
		select {
		case c.ch <- frame{typ: ev.Type, data: data}:
		default:
			h.logger.Debug("dropping event for slow client", slog.String("type", string(ev.Type)))
		}
	}
}

// ServeSSE handles an SSE connection request. A comma separated "type"
// query parameter limits the stream to those event types.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	c := &client{ch: make(chan frame, clientBuffer), only: parseTypes(r.URL.Query().Get("type"))}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case f := <-c.ch:
			fmt.Fprintf(w, "event: %s\n", f.typ) //nolint:errcheck
			// Each SSE "data:" line must not contain newlines
			for _, line := range strings.Split(string(f.data), "\n") {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}

func parseTypes(q string) map[events.Type]bool {
	if q == "" {
		return nil
	}
	only := make(map[events.Type]bool)
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			only[events.Type(t)] = true
		}
	}
	if len(only) == 0 {
		return nil
	}
	return only
}
