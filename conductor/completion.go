package conductor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/task"
)

// HandleTaskCompletion completes t on behalf of its worker, archives it,
// records feedback as a note when given and releases every open task that
// depended on it.
//
// Completing a task nobody holds returns ErrTaskUnassigned, one still
// waiting on dependencies returns ErrTaskBlocked and an archived one returns
// org.ErrTaskCompleted. None of them changes any state.
func (c *Conductor) HandleTaskCompletion(ctx context.Context, t *task.Task, feedback string) error {
	if !c.org.IsOpen(t.ID) {
		if _, err := c.org.Task(t.ID); err != nil {
			return err
		}
		return fmt.Errorf("complete %q: %w", t.Title, org.ErrTaskCompleted)
	}
	w, ok := c.org.AssigneeOf(t)
	if !ok {
		c.logger.Warn("cannot complete task, no assigned worker", slog.String("task", t.Title))
		return fmt.Errorf("complete %q: %w", t.Title, ErrTaskUnassigned)
	}
	if t.IsBlocked(c.org.LookupTask) {
		c.logger.Warn("cannot complete task, dependencies still open", slog.String("task", t.Title))
		return fmt.Errorf("complete %q: %w", t.Title, ErrTaskBlocked)
	}

	now := c.org.Now()
	if err := w.Complete(t, now, c.org.LookupTask); err != nil {
		return fmt.Errorf("complete %q: %w", t.Title, err)
	}
	if err := c.org.Archive(t.ID); err != nil {
		return fmt.Errorf("complete %q: %w", t.Title, err)
	}
	if feedback != "" {
		t.AddNote("Completion feedback: "+feedback, now)
	}
	c.logger.Info("task completed", slog.String("task", t.Title), slog.String("worker", w.Name))

	ev := c.event(events.TaskCompleted, t, w, feedback)
	if hours, ok := t.HoursToComplete(); ok {
		ev.Metadata = map[string]string{"hours": fmt.Sprintf("%.2f", hours)}
	}
	c.publish(ctx, ev)

	for _, dep := range c.org.ReleaseDependents(t.ID) {
		c.publish(ctx, c.event(events.TaskUnblocked, dep, nil, string(dep.Status)))
	}
	return nil
}
