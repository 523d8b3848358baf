package org

import (
	"fmt"
	"strings"
	"time"

	"github.com/GoCodeAlone/conductor/task"
)

// DeadlineLayout is the timestamp format used in planning text.
const DeadlineLayout = "2006-01-02 15:04"

// FormatDeadline renders d for planning text, or none when d is nil.
func FormatDeadline(d *time.Time, none string) string {
	if d == nil {
		return none
	}
	return d.Format(DeadlineLayout)
}

// WorkersText renders the worker roster for the planning context.
func (o *Organization) WorkersText() string {
	if len(o.workerOrder) == 0 {
		return "No workers in the organization."
	}
	blocks := []string{fmt.Sprintf("Total Workers: %d", len(o.workerOrder))}
	for i, w := range o.Workers() {
		blocks = append(blocks, strings.Join([]string{
			fmt.Sprintf("Worker %d: %s", i+1, w.Name),
			"Type: " + w.Kind(),
			"Skills: " + strings.Join(w.Skills, ", "),
			fmt.Sprintf("Assigned Tasks: %d", len(w.AssignedTasks)),
		}, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// TasksText renders open tasks split into unassigned and assigned groups.
// Every task is numbered by its 1-based position among all open tasks, so the
// numbers stay valid references regardless of grouping.
func (o *Organization) TasksText() string {
	if len(o.open) == 0 {
		return "No tasks in the organization."
	}
	var unassigned, assigned []int
	for i, id := range o.open {
		if o.tasks[id].IsAssigned() {
			assigned = append(assigned, i)
		} else {
			unassigned = append(unassigned, i)
		}
	}

	blocks := []string{fmt.Sprintf("Total Tasks: %d", len(o.open))}
	if len(unassigned) > 0 {
		blocks = append(blocks, fmt.Sprintf("\nUnassigned Tasks (%d):", len(unassigned)))
		for _, i := range unassigned {
			blocks = append(blocks, o.taskBlock(i, false))
		}
	}
	if len(assigned) > 0 {
		blocks = append(blocks, fmt.Sprintf("\nAssigned Tasks (%d):", len(assigned)))
		for _, i := range assigned {
			blocks = append(blocks, o.taskBlock(i, true))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (o *Organization) taskBlock(i int, withAssignee bool) string {
	t := o.tasks[o.open[i]]
	lines := []string{
		fmt.Sprintf("Task %d: %s", i+1, t.Description),
		fmt.Sprintf("Priority: %d", t.Priority),
		"Deadline: " + FormatDeadline(t.Deadline, "No deadline"),
	}
	if withAssignee {
		name := "Unassigned"
		if w, ok := o.AssigneeOf(t); ok {
			name = w.Name
		}
		lines = append(lines, "Assigned to: "+name)
	}
	return strings.Join(lines, "\n")
}

// StateReport renders a human-readable summary: one line per worker with
// metrics once they have completions, open tasks by status, the last five
// completed tasks and an overdue warning.
func (o *Organization) StateReport() string {
	now := o.now()
	var b strings.Builder

	b.WriteString("Workers:\n")
	for _, w := range o.Workers() {
		fmt.Fprintf(&b, "  %s (%d active, %d completed): %s\n",
			w.Name, len(w.AssignedTasks), len(w.CompletedTasks),
			strings.Join(w.ActiveTitles(o.LookupTask), ", "))
		if w.Metrics.TasksCompleted == 0 {
			continue
		}
		fmt.Fprintf(&b, "    Avg. completion time: %.2f hours\n", w.Metrics.AvgCompletionHours)
		fmt.Fprintf(&b, "    Current workload: %.2f\n", o.Workload(w))
		if w.Experience != "" {
			fmt.Fprintf(&b, "    Recent experience: %s\n", experienceSnippet(w.Experience))
		}
	}

	byStatus := map[task.Status][]string{}
	var overdue []string
	for _, t := range o.Tasks() {
		byStatus[t.Status] = append(byStatus[t.Status], t.Title)
		if t.IsOverdue(now) {
			overdue = append(overdue, t.Title)
		}
	}

	b.WriteString("\nTasks by status:\n")
	for _, g := range []struct {
		label  string
		status task.Status
	}{
		{"Pending", task.StatusPending},
		{"In Progress", task.StatusInProgress},
		{"Blocked", task.StatusBlocked},
	} {
		fmt.Fprintf(&b, "  %s (%d): %s\n", g.label, len(byStatus[g.status]), listOrNone(byStatus[g.status]))
	}

	var done []string
	for _, t := range o.CompletedTasks() {
		done = append(done, t.Title)
	}
	more := ""
	if len(done) > 5 {
		more = " ..."
	}
	fmt.Fprintf(&b, "  Completed (%d): %s%s\n", len(done), listOrNone(done[max(0, len(done)-5):]), more)

	if len(overdue) > 0 {
		fmt.Fprintf(&b, "\nWARNING: %d overdue tasks: %s\n", len(overdue), strings.Join(overdue, ", "))
	}
	return b.String()
}

// experienceSnippet returns the first narrative paragraph cut to 100 runes.
func experienceSnippet(experience string) string {
	first, _, _ := strings.Cut(experience, "\n\n")
	r := []rune(first)
	if len(r) < 100 {
		return first
	}
	return string(r[:100]) + "..."
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
