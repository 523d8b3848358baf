// Package worker defines the actors (human or automated) that tasks are
// assigned to, along with their history and performance metrics.
package worker

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/conductor/task"
)

// Action identifies a task history event.
type Action string

const (
	ActionAssigned  Action = "assigned"
	ActionCompleted Action = "completed"
)

// ErrNotHolding is returned when a worker is asked to complete a task that is
// not in its assigned list.
var ErrNotHolding = errors.New("task is not assigned to this worker")

// HistoryEntry is one line of a worker's append-only audit log.
type HistoryEntry struct {
	TaskID    string    `json:"task_id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics are derived from completed tasks.
type Metrics struct {
	TasksCompleted     int     `json:"tasks_completed"`
	AvgCompletionHours float64 `json:"avg_completion_time"`
}

// Worker is an actor capable of being assigned tasks.
type Worker struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	IsHuman    bool     `json:"is_human"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience_description"`
	Metrics    Metrics  `json:"performance_metrics"`

	AssignedTasks  []string       `json:"assigned_tasks"`
	CompletedTasks []string       `json:"completed_tasks"`
	History        []HistoryEntry `json:"task_history"`
}

// New creates a worker with a fresh ID.
func New(name string, isHuman bool, skills []string, experience string) *Worker {
	return &Worker{
		ID:         uuid.NewString(),
		Name:       name,
		IsHuman:    isHuman,
		Skills:     skills,
		Experience: experience,
	}
}

// Kind returns "Human" or "AI".
func (w *Worker) Kind() string {
	if w.IsHuman {
		return "Human"
	}
	return "AI"
}

// HasSkill reports whether the worker lists skill.
func (w *Worker) HasSkill(skill string) bool {
	return slices.Contains(w.Skills, skill)
}

// SharesSkill reports whether the worker holds at least one of required.
// A task that requires nothing matches everyone.
func (w *Worker) SharesSkill(required []string) bool {
	if len(required) == 0 {
		return true
	}
	return slices.ContainsFunc(required, w.HasSkill)
}

// Holds reports whether taskID is in the worker's active list.
func (w *Worker) Holds(taskID string) bool {
	return slices.Contains(w.AssignedTasks, taskID)
}

// Assign records t as held by this worker. Callers are responsible for
// making sure t is not held by anyone else.
func (w *Worker) Assign(t *task.Task, at time.Time) {
	w.AssignedTasks = append(w.AssignedTasks, t.ID)
	t.SetAssignee(w.ID, at)
	w.History = append(w.History, HistoryEntry{TaskID: t.ID, Action: ActionAssigned, Timestamp: at})
}

// Release drops taskID from the active list without completing it.
func (w *Worker) Release(taskID string) bool {
	i := slices.Index(w.AssignedTasks, taskID)
	if i < 0 {
		return false
	}
	w.AssignedTasks = slices.Delete(w.AssignedTasks, i, i+1)
	return true
}

// Complete finishes t: the task moves from the active to the completed list,
// the running average is updated and a paragraph is appended to the
// experience narrative. lookup resolves related task titles.
func (w *Worker) Complete(t *task.Task, at time.Time, lookup task.Lookup) error {
	if !w.Holds(t.ID) {
		return fmt.Errorf("worker %s, task %q: %w", w.Name, t.Title, ErrNotHolding)
	}
	if err := t.Complete(at); err != nil {
		return err
	}
	w.Release(t.ID)
	w.CompletedTasks = append(w.CompletedTasks, t.ID)
	w.History = append(w.History, HistoryEntry{TaskID: t.ID, Action: ActionCompleted, Timestamp: at})

	hours, timed := t.HoursToComplete()
	if timed {
		w.recordCompletion(hours)
	}
	w.appendExperience(t, hours, timed, lookup)
	return nil
}

// recordCompletion folds one completion time into the exact running mean.
func (w *Worker) recordCompletion(hours float64) {
	n := float64(w.Metrics.TasksCompleted)
	w.Metrics.AvgCompletionHours = (w.Metrics.AvgCompletionHours*n + hours) / (n + 1)
	w.Metrics.TasksCompleted++
}

func (w *Worker) appendExperience(t *task.Task, hours float64, timed bool, lookup task.Lookup) {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed '%s' ", t.Title)
	if len(t.RequiredSkills) > 0 {
		fmt.Fprintf(&b, "using skills in %s ", strings.Join(t.RequiredSkills, ", "))
	}

	switch {
	case timed && t.EstimatedHours > 0:
		switch {
		case hours < t.EstimatedHours:
			fmt.Fprintf(&b, "faster than expected (%.1f vs %.1f hours). ", hours, t.EstimatedHours)
		case hours > t.EstimatedHours:
			fmt.Fprintf(&b, "taking longer than expected (%.1f vs %.1f hours). ", hours, t.EstimatedHours)
		default:
			fmt.Fprintf(&b, "in the expected time (%.1f hours). ", hours)
		}
	case timed:
		fmt.Fprintf(&b, "in %.1f hours. ", hours)
	default:
		b.WriteString(". ")
	}

	var related []string
	for _, id := range t.RelatedTasks {
		if !slices.Contains(w.CompletedTasks, id) {
			continue
		}
		if rt, ok := lookup(id); ok {
			related = append(related, rt.Title)
		}
	}
	if len(related) > 0 {
		fmt.Fprintf(&b, "This built on previous experience with %s. ", strings.Join(related, ", "))
	}
	fmt.Fprintf(&b, "Task involved: %s", t.Description)

	if w.Experience == "" {
		w.Experience = b.String()
		return
	}
	w.Experience += "\n\n" + b.String()
}

// Workload returns (Σ priority / 10) × count over active tasks.
// Higher means busier.
func (w *Worker) Workload(lookup task.Lookup) float64 {
	if len(w.AssignedTasks) == 0 {
		return 0
	}
	total := 0
	for _, id := range w.AssignedTasks {
		if t, ok := lookup(id); ok {
			total += t.Priority
		}
	}
	return float64(total) / 10.0 * float64(len(w.AssignedTasks))
}

// ExperienceSummary renders the worker profile fed to the planner.
func (w *Worker) ExperienceSummary(lookup task.Lookup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Worker: %s (%s)\n", w.Name, w.Kind())
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(w.Skills, ", "))
	fmt.Fprintf(&b, "Tasks completed: %d\n", len(w.CompletedTasks))
	fmt.Fprintf(&b, "Current workload: %.1f (based on %d active tasks)\n", w.Workload(lookup), len(w.AssignedTasks))

	if w.Metrics.TasksCompleted > 0 {
		fmt.Fprintf(&b, "Average completion time: %.1f hours\n", w.Metrics.AvgCompletionHours)
	}
	if titles := w.ActiveTitles(lookup); len(titles) > 0 {
		fmt.Fprintf(&b, "Currently working on: %s\n", strings.Join(titles, ", "))
	}
	if w.Experience != "" {
		fmt.Fprintf(&b, "\nExperience:\n%s\n", w.Experience)
	}
	return b.String()
}

// ActiveTitles returns the titles of the worker's active tasks in order.
func (w *Worker) ActiveTitles(lookup task.Lookup) []string {
	titles := make([]string, 0, len(w.AssignedTasks))
	for _, id := range w.AssignedTasks {
		if t, ok := lookup(id); ok {
			titles = append(titles, t.Title)
		}
	}
	return titles
}

// String implements fmt.Stringer.
func (w *Worker) String() string {
	return fmt.Sprintf("Worker(%s, human=%t, skills=%v, active=%d)", w.Name, w.IsHuman, w.Skills, len(w.AssignedTasks))
}
