// Package events provides the in-process bus carrying task and worker
// lifecycle events to observers (SSE stream, audit journal, CLI).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	WorkerCreated Type = "worker.created"
	TaskCreated   Type = "task.created"
	TaskAssigned  Type = "task.assigned" // includes reassignment
	TaskCompleted Type = "task.completed"
	TaskUnblocked Type = "task.unblocked"
	PlanApplied   Type = "plan.applied"  // batch planning round finished
	PlanFallback  Type = "plan.fallback" // single-task plan used the first worker
	PlanSkipped   Type = "plan.skipped"  // reference or race loss dropped from a plan

	// All subscribes to every type.
	All Type = "*"
)

// Event is one lifecycle notification.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	TaskID    string            `json:"task_id,omitempty"`
	Task      string            `json:"task,omitempty"` // title
	WorkerID  string            `json:"worker_id,omitempty"`
	Worker    string            `json:"worker,omitempty"` // name
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// New creates an event with a fresh ID stamped at at.
func New(typ Type, message string, at time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		Timestamp: at,
	}
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev *Event) error

// Publisher is the write side of the bus. The assignment engine only needs
// this much.
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
}

// Bus fans events out to subscribers and keeps a bounded history.
type Bus interface {
	Publisher

	// Subscribe registers a handler for events of typ (or All).
	// Returns an unsubscribe function.
	Subscribe(typ Type, handler Handler) (unsubscribe func())

	// History returns up to limit recent events in chronological order.
	History(limit int) []*Event
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, *Event) error { return nil }
