package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

const singleInstructions = `Based on the information above, determine which worker would be the most appropriate
to assign this new task to. Consider each worker's skills, current workload,
past experience, and availability in relation to this task.

First, provide your reasoning for the assignment recommendation, and then give your recommendation.
Simply output the worker name after ASSIGNMENT: so that we can easily parse which worker this assignment goes to.

REASONING:
[Your detailed reasoning for the assignment recommendation]

ASSIGNMENT:
[Worker Name]`

// SinglePrompt builds the planning prompt focused on t.
func (c *Conductor) SinglePrompt(t *task.Task) string {
	info := strings.Join([]string{
		"New Task to Assign:",
		"Title: " + t.Title,
		"Description: " + t.Description,
		fmt.Sprintf("Priority: %d", t.Priority),
		"Deadline: " + org.FormatDeadline(t.Deadline, "None"),
		"Required Skills: " + joinOr(t.RequiredSkills, "Any"),
		"Estimated Hours: " + hoursOr(t.EstimatedHours, ""),
		"Tags: " + joinOr(t.Tags, "None"),
	}, "\n")
	return c.FullContext() + "\n" + info + "\n\n" + singleInstructions
}

// AssignNewTask registers t and asks the generator who should take it.
//
// The last non-empty line of the response is taken as the worker name. When
// it names nobody the task goes to the first registered worker, so unlike a
// batch round this always assigns something. With no workers at all the task
// stays registered and unassigned and ErrNoWorkers is returned.
func (c *Conductor) AssignNewTask(ctx context.Context, t *task.Task) (*worker.Worker, error) {
	c.org.AddTask(t, false)
	c.publish(ctx, c.event(events.TaskCreated, t, nil, ""))

	workers := c.org.Workers()
	if len(workers) == 0 {
		c.logger.Warn("cannot plan new task, no workers", slog.String("task", t.Title))
		return nil, fmt.Errorf("assign %q: %w", t.Title, ErrNoWorkers)
	}

	response := c.gen.Generate(ctx, c.SinglePrompt(t))
	name := LastLine(response)

	w, ok := c.org.WorkerByName(name)
	if !ok {
		w = workers[0]
		c.logger.Warn("planned worker not found, using first worker",
			slog.String("task", t.Title),
			slog.String("parsed", name),
			slog.String("worker", w.Name),
		)
		ev := c.event(events.PlanFallback, t, w, fmt.Sprintf("no worker named %q", name))
		c.publish(ctx, ev)
	}

	c.org.Assign(t, w)
	c.logger.Info("assigned new task", slog.String("task", t.Title), slog.String("worker", w.Name))
	c.publish(ctx, c.event(events.TaskAssigned, t, w, "planned"))
	return w, nil
}

// LastLine returns the last non-blank line of s with surrounding whitespace
// removed, or "" if there is none.
func LastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
