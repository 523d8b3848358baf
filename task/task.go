// Package task defines the task model and its dependency/status state machine.
package task

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusBlocked    Status = "blocked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var (
	// ErrUnassigned is returned when completing a task nobody holds.
	ErrUnassigned = errors.New("task has no assigned worker")
	// ErrCompleted is returned when completing a task twice.
	ErrCompleted = errors.New("task already completed")
)

// Note is a timestamped entry in a task's append-only log.
type Note struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Subtask is an informal checklist entry. It has no lifecycle of its own.
type Subtask struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task is a unit of assignable work.
//
// Relationships to other tasks and to the assigned worker are stored as IDs
// and resolved through the owning organization.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       int        `json:"priority"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	RequiredSkills []string   `json:"required_skills,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"` // 0 when unknown

	DependsOn    []string  `json:"depends_on,omitempty"`
	RelatedTasks []string  `json:"related_tasks,omitempty"`
	Subtasks     []Subtask `json:"subtasks,omitempty"`

	Status      Status     `json:"status"`
	AssignedTo  string     `json:"assigned_to,omitempty"` // worker ID
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       []Note     `json:"notes,omitempty"`
}

// Lookup resolves a task ID to the task it names.
type Lookup func(id string) (*Task, bool)

// New creates a detached pending task with a fresh ID.
func New(title, description string, priority int) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
	}
}

// AddNote appends a note to the task log.
func (t *Task) AddNote(content string, at time.Time) {
	t.Notes = append(t.Notes, Note{Content: content, Timestamp: at})
}

// AddSubtask appends a checklist entry and returns it.
func (t *Task) AddSubtask(title, description string, at time.Time) Subtask {
	st := Subtask{Title: title, Description: description, CreatedAt: at}
	t.Subtasks = append(t.Subtasks, st)
	return st
}

// IsAssigned reports whether a worker currently holds the task.
func (t *Task) IsAssigned() bool { return t.AssignedTo != "" }

// IsCompleted reports whether the task reached its terminal state.
func (t *Task) IsCompleted() bool { return t.Status == StatusCompleted }

// IsBlocked reports whether any dependency is not yet completed.
// A dependency that cannot be resolved counts as incomplete.
func (t *Task) IsBlocked(lookup Lookup) bool {
	for _, id := range t.DependsOn {
		dep, ok := lookup(id)
		if !ok || dep.Status != StatusCompleted {
			return true
		}
	}
	return false
}

// UpdateStatus recomputes the status from dependencies and assignment.
// Completed tasks are never touched.
func (t *Task) UpdateStatus(lookup Lookup) Status {
	if t.Status == StatusCompleted {
		return t.Status
	}
	switch {
	case t.IsBlocked(lookup):
		t.Status = StatusBlocked
	case t.IsAssigned():
		t.Status = StatusInProgress
	default:
		t.Status = StatusPending
	}
	return t.Status
}

// HasDependency reports whether id is in the dependency list.
func (t *Task) HasDependency(id string) bool {
	return slices.Contains(t.DependsOn, id)
}

// RemoveDependency drops every copy of id from the dependency list. It
// reports whether the dependency was present.
func (t *Task) RemoveDependency(id string) bool {
	n := len(t.DependsOn)
	t.DependsOn = slices.DeleteFunc(t.DependsOn, func(dep string) bool { return dep == id })
	return len(t.DependsOn) < n
}

// LinkRelated records id as a related task, once.
func (t *Task) LinkRelated(id string) {
	if id == t.ID || slices.Contains(t.RelatedTasks, id) {
		return
	}
	t.RelatedTasks = append(t.RelatedTasks, id)
}

// SetAssignee records the worker holding the task.
func (t *Task) SetAssignee(workerID string, at time.Time) {
	t.AssignedTo = workerID
	t.AssignedAt = &at
}

// ClearAssignee forgets the current assignment.
func (t *Task) ClearAssignee() {
	t.AssignedTo = ""
	t.AssignedAt = nil
}

// Complete moves the task into its terminal state.
func (t *Task) Complete(at time.Time) error {
	if t.Status == StatusCompleted {
		return fmt.Errorf("task %q: %w", t.Title, ErrCompleted)
	}
	if !t.IsAssigned() {
		return fmt.Errorf("task %q: %w", t.Title, ErrUnassigned)
	}
	t.CompletedAt = &at
	t.Status = StatusCompleted
	return nil
}

// HoursToComplete returns the time between assignment and completion in
// hours. ok is false when either timestamp is missing.
func (t *Task) HoursToComplete() (hours float64, ok bool) {
	if t.AssignedAt == nil || t.CompletedAt == nil {
		return 0, false
	}
	return t.CompletedAt.Sub(*t.AssignedAt).Hours(), true
}

// UrgencyScore returns the priority raised by deadline proximity at now.
func (t *Task) UrgencyScore(now time.Time) float64 {
	score := float64(t.Priority)
	if t.Deadline == nil {
		return score
	}
	left := t.Deadline.Sub(now).Hours()
	switch {
	case left <= 0:
		score += 10
	case left < 24:
		score += 5
	case left < 72:
		score += 3
	case left < 168:
		score += 1
	}
	return score
}

// IsOverdue reports whether the deadline has passed at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now)
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	assignee := t.AssignedTo
	if assignee == "" {
		assignee = "unassigned"
	}
	return fmt.Sprintf("Task(%s, priority=%d, status=%s, worker=%s)", t.Title, t.Priority, t.Status, assignee)
}
