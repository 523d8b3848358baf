// Package org implements the organization registry that owns every worker
// and task in one planning domain.
//
// Tasks and workers live in ID-keyed maps; relationships between them are
// stored as IDs and resolved through the organization. Nothing in this
// package is safe for concurrent use: callers serialize access.
package org

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

var (
	ErrWorkerNotFound = errors.New("worker not found")
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskCompleted  = errors.New("task already archived")
)

// Organization is the registry of workers and tasks.
type Organization struct {
	Name string

	workers     map[string]*worker.Worker
	workerOrder []string
	byName      map[string]string // worker name -> ID

	tasks     map[string]*task.Task
	open      []string
	completed []string

	skills map[string][]string // skill -> worker IDs

	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Organization.
type Option func(*Organization)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Organization) { o.logger = l }
}

// WithClock overrides the time source used for assignment timestamps and
// urgency scoring.
func WithClock(now func() time.Time) Option {
	return func(o *Organization) { o.now = now }
}

// New creates an empty organization.
func New(name string, opts ...Option) *Organization {
	o := &Organization{
		Name:    name,
		workers: make(map[string]*worker.Worker),
		byName:  make(map[string]string),
		tasks:   make(map[string]*task.Task),
		skills:  make(map[string][]string),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Now returns the organization's current time.
func (o *Organization) Now() time.Time { return o.now() }

// Logger returns the organization's logger.
func (o *Organization) Logger() *slog.Logger { return o.logger }

// AddWorker registers w and indexes its skills. Names are expected to be
// unique; a later worker with a duplicate name is not reachable by name.
func (o *Organization) AddWorker(w *worker.Worker) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	o.workers[w.ID] = w
	o.workerOrder = append(o.workerOrder, w.ID)
	if _, dup := o.byName[w.Name]; dup {
		o.logger.Warn("duplicate worker name", slog.String("worker", w.Name))
	} else {
		o.byName[w.Name] = w.ID
	}
	for _, skill := range w.Skills {
		o.skills[skill] = append(o.skills[skill], w.ID)
	}
	o.logger.Info("added worker",
		slog.String("worker", w.Name),
		slog.String("skills", strings.Join(w.Skills, ", ")),
	)
}

// AddTask registers t as an open task and computes its initial status.
// Related tasks already in the organization are linked back to t. With
// autoAssign the deterministic heuristic picks a worker; the chosen worker is
// returned (nil when none).
func (o *Organization) AddTask(t *task.Task, autoAssign bool) *worker.Worker {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	o.tasks[t.ID] = t
	o.open = append(o.open, t.ID)

	for _, id := range t.RelatedTasks {
		if rt, ok := o.tasks[id]; ok {
			rt.LinkRelated(t.ID)
		}
	}
	t.UpdateStatus(o.LookupTask)

	var assignee *worker.Worker
	if autoAssign {
		assignee, _ = o.AutoAssign(t)
	}
	o.logger.Info("added task", slog.String("task", t.Title), slog.Int("priority", t.Priority))
	return assignee
}

// LookupTask resolves any registered task, open or archived.
// It satisfies task.Lookup.
func (o *Organization) LookupTask(id string) (*task.Task, bool) {
	t, ok := o.tasks[id]
	return t, ok
}

// Task returns a registered task by ID.
func (o *Organization) Task(id string) (*task.Task, error) {
	t, ok := o.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return t, nil
}

// Worker returns a registered worker by ID.
func (o *Organization) Worker(id string) (*worker.Worker, error) {
	w, ok := o.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker %s: %w", id, ErrWorkerNotFound)
	}
	return w, nil
}

// WorkerByName resolves a worker by exact name.
func (o *Organization) WorkerByName(name string) (*worker.Worker, bool) {
	id, ok := o.byName[name]
	if !ok {
		return nil, false
	}
	return o.workers[id], true
}

// Workers returns workers in registration order.
func (o *Organization) Workers() []*worker.Worker {
	out := make([]*worker.Worker, 0, len(o.workerOrder))
	for _, id := range o.workerOrder {
		out = append(out, o.workers[id])
	}
	return out
}

// WorkerNames returns worker names in registration order.
func (o *Organization) WorkerNames() []string {
	names := make([]string, 0, len(o.workerOrder))
	for _, id := range o.workerOrder {
		names = append(names, o.workers[id].Name)
	}
	return names
}

// WorkersWithSkill returns the workers indexed under skill.
func (o *Organization) WorkersWithSkill(skill string) []*worker.Worker {
	ids := o.skills[skill]
	out := make([]*worker.Worker, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.workers[id])
	}
	return out
}

// Skills returns every indexed skill, sorted.
func (o *Organization) Skills() []string {
	out := make([]string, 0, len(o.skills))
	for s := range o.skills {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Tasks returns open tasks in registration order. A task's position in this
// slice is its external index.
func (o *Organization) Tasks() []*task.Task {
	return o.resolve(o.open)
}

// CompletedTasks returns the archive in completion order.
func (o *Organization) CompletedTasks() []*task.Task {
	return o.resolve(o.completed)
}

// UnassignedTasks returns open tasks nobody holds.
func (o *Organization) UnassignedTasks() []*task.Task {
	var out []*task.Task
	for _, id := range o.open {
		if t := o.tasks[id]; !t.IsAssigned() {
			out = append(out, t)
		}
	}
	return out
}

// IndexOf returns the 0-based position of taskID among open tasks, or -1.
func (o *Organization) IndexOf(taskID string) int {
	return slices.Index(o.open, taskID)
}

// IsOpen reports whether taskID is registered and not archived.
func (o *Organization) IsOpen(taskID string) bool {
	return o.IndexOf(taskID) >= 0
}

// AssigneeOf returns the worker holding t, if any.
func (o *Organization) AssigneeOf(t *task.Task) (*worker.Worker, bool) {
	if !t.IsAssigned() {
		return nil, false
	}
	w, ok := o.workers[t.AssignedTo]
	return w, ok
}

// Workload returns the workload heuristic for w.
func (o *Organization) Workload(w *worker.Worker) float64 {
	return w.Workload(o.LookupTask)
}

// Archive moves an open task into the completed archive.
func (o *Organization) Archive(taskID string) error {
	i := o.IndexOf(taskID)
	if i < 0 {
		if slices.Contains(o.completed, taskID) {
			return fmt.Errorf("task %s: %w", taskID, ErrTaskCompleted)
		}
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	o.open = slices.Delete(o.open, i, i+1)
	o.completed = append(o.completed, taskID)
	return nil
}

// ReleaseDependents removes doneID from the dependency list of every open
// task and recomputes their status. It returns the tasks that went from
// blocked to not blocked.
func (o *Organization) ReleaseDependents(doneID string) []*task.Task {
	var unblocked []*task.Task
	for _, id := range o.open {
		t := o.tasks[id]
		if !t.RemoveDependency(doneID) {
			continue
		}
		was := t.Status
		if t.UpdateStatus(o.LookupTask) != task.StatusBlocked && was == task.StatusBlocked {
			o.logger.Info("task unblocked", slog.String("task", t.Title), slog.String("status", string(t.Status)))
			unblocked = append(unblocked, t)
		}
	}
	return unblocked
}

func (o *Organization) resolve(ids []string) []*task.Task {
	out := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.tasks[id])
	}
	return out
}

// String implements fmt.Stringer.
func (o *Organization) String() string {
	return fmt.Sprintf("Organization(%s, workers=%d, tasks=%d)", o.Name, len(o.workerOrder), len(o.open))
}
