package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

const batchInstructions = `Based on the information above, assign the unassigned tasks to the most appropriate workers.
Consider:
1. Worker skills and task requirements
2. Task priorities and deadlines
3. Worker current workload
4. Whether tasks are better suited for humans or AI
5. Task dependencies (tasks with dependencies should be assigned to workers who can work on them together)
6. Worker's past experience with similar tasks (refer to the worker experience profiles)
7. Estimated time to complete the task vs. worker availability

First, provide your reasoning for the assignments, and then list the final assignments.
Use the task numbers (Task 1, Task 2, etc.) instead of task titles in your assignments.

Return your response in this exact format:

REASONING:
[Your detailed reasoning for task assignments]

ASSIGNMENTS:
[Worker Name]: Task 1, Task 2, ...
[Another Worker Name]: Task 3, ...
...`

// Assignment groups the tasks one worker received in a planning round.
type Assignment struct {
	Worker *worker.Worker
	Tasks  []*task.Task
}

// RaceLoss is a planned pair dropped because the task was already held.
type RaceLoss struct {
	Worker string
	Task   *task.Task
	HeldBy string
}

// Result is the outcome of a batch planning round. Assignments holds only
// pairs that were applied, grouped by worker in application order.
type Result struct {
	Assignments []Assignment
	Skipped     []Skip
	RaceLosses  []RaceLoss
}

// Count returns the number of applied (worker, task) pairs.
func (r *Result) Count() int {
	n := 0
	for _, a := range r.Assignments {
		n += len(a.Tasks)
	}
	return n
}

// BatchPrompt builds the planning prompt for every unassigned open task.
func (c *Conductor) BatchPrompt() string {
	return c.FullContext() + "\n" + c.dependencyText(c.org.Tasks()) + "\n" + batchInstructions
}

// GenerateTaskAssignments runs one batch planning round.
//
// Unusable plan lines are skipped, and a task already held when its pair is
// applied stays with its holder (first writer wins). Anything not applied is
// left unassigned for a later round. The round never fails; a response that
// does not parse assigns nothing.
func (c *Conductor) GenerateTaskAssignments(ctx context.Context) *Result {
	open := c.org.Tasks()
	prompt := c.BatchPrompt()
	response := c.gen.Generate(ctx, prompt)
	c.logger.Debug("planning response", slog.Int("prompt_len", len(prompt)), slog.String("response", response))

	plan := c.parse(response, len(open))
	res := &Result{Skipped: plan.Skipped}
	for _, s := range plan.Skipped {
		c.logger.Warn("skipped plan entry", slog.String("line", s.Line), slog.String("ref", s.Ref), slog.String("reason", s.Reason))
		if s.Reason != ReasonNoMarker {
			ev := c.event(events.PlanSkipped, nil, nil, s.Reason)
			ev.Metadata = map[string]string{"line": s.Line, "ref": s.Ref}
			c.publish(ctx, ev)
		}
	}

	for _, entry := range plan.Entries {
		w, ok := c.org.WorkerByName(entry.Worker)
		if !ok {
			// Names were validated against the same roster at parse time.
			c.logger.Warn("worker vanished during planning", slog.String("worker", entry.Worker))
			continue
		}
		var applied []*task.Task
		for _, n := range entry.Tasks {
			t := open[n-1]
			if t.IsAssigned() {
				loss := RaceLoss{Worker: w.Name, Task: t, HeldBy: c.holderName(t)}
				res.RaceLosses = append(res.RaceLosses, loss)
				c.logger.Warn("task already assigned, skipping",
					slog.String("task", t.Title),
					slog.String("held_by", loss.HeldBy),
					slog.String("worker", w.Name),
				)
				ev := c.event(events.PlanSkipped, t, w, "already assigned to "+loss.HeldBy)
				c.publish(ctx, ev)
				continue
			}
			c.org.Assign(t, w)
			applied = append(applied, t)
			c.logger.Info("assigned task", slog.String("task", t.Title), slog.String("worker", w.Name))
			c.publish(ctx, c.event(events.TaskAssigned, t, w, "planned"))
		}
		if len(applied) > 0 {
			res.Assignments = append(res.Assignments, Assignment{Worker: w, Tasks: applied})
		}
	}

	c.logger.Info("planning round finished",
		slog.Int("assigned", res.Count()),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("race_losses", len(res.RaceLosses)),
	)
	c.publish(ctx, c.event(events.PlanApplied, nil, nil, summarize(res)))
	return res
}

// parse runs ParsePlan, degrading to an empty plan if it panics.
func (c *Conductor) parse(response string, taskCount int) (plan Plan) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error parsing assignment response", slog.Any("panic", r))
			plan = Plan{}
		}
	}()
	return ParsePlan(response, taskCount, c.org.WorkerNames())
}

func (c *Conductor) holderName(t *task.Task) string {
	if w, ok := c.org.AssigneeOf(t); ok {
		return w.Name
	}
	return t.AssignedTo
}

func summarize(res *Result) string {
	if len(res.Assignments) == 0 {
		return "no assignments"
	}
	parts := make([]string, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		titles := make([]string, 0, len(a.Tasks))
		for _, t := range a.Tasks {
			titles = append(titles, t.Title)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.Worker.Name, strings.Join(titles, ", ")))
	}
	return strings.Join(parts, "; ")
}
