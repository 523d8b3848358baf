// Package conductor implements the assignment engine: it serializes the
// organization into a planning prompt, asks a text generator for a plan,
// applies the validated result and handles task completion.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

var (
	// ErrTaskUnassigned is returned when completing a task nobody holds.
	ErrTaskUnassigned = errors.New("task has no assigned worker")
	// ErrTaskBlocked is returned when completing a task whose dependencies
	// are still open.
	ErrTaskBlocked = errors.New("task is blocked by open dependencies")
	// ErrNoWorkers is returned by single-task planning when the
	// organization has nobody to fall back to.
	ErrNoWorkers = errors.New("organization has no workers")
)

// Generator is the text generation capability. Implementations never fail
// to the caller: on error they return text starting with an error marker,
// which simply does not parse into a plan.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) string

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) string { return f(ctx, prompt) }

// Conductor orchestrates planning rounds over one organization. It holds no
// locks; callers serialize access together with every other mutation of the
// organization.
type Conductor struct {
	org        *org.Organization
	basePrompt string
	gen        Generator
	pub        events.Publisher
	logger     *slog.Logger
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithPublisher sends lifecycle events to p.
func WithPublisher(p events.Publisher) Option {
	return func(c *Conductor) { c.pub = p }
}

// WithLogger sets the logger. Defaults to the organization's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conductor) { c.logger = l }
}

// New creates a Conductor for o. basePrompt describes the organization and
// its goals and opens every planning prompt.
func New(o *org.Organization, basePrompt string, gen Generator, opts ...Option) *Conductor {
	c := &Conductor{
		org:        o,
		basePrompt: basePrompt,
		gen:        gen,
		pub:        events.Discard,
		logger:     o.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("conductor initialized",
		slog.String("organization", o.Name),
		slog.Int("base_prompt_len", len(basePrompt)),
	)
	return c
}

// Organization returns the organization being managed.
func (c *Conductor) Organization() *org.Organization { return c.org }

// BasePrompt returns the base instruction prompt.
func (c *Conductor) BasePrompt() string { return c.basePrompt }

// FullContext renders the base prompt, both rosters and every worker's
// experience profile. Task numbers are 1-based positions among open tasks.
func (c *Conductor) FullContext() string {
	var b strings.Builder
	b.WriteString(c.basePrompt)
	b.WriteString("\n\nCURRENT ORGANIZATION STATE:\n\n")
	b.WriteString(c.org.WorkersText())
	b.WriteString("\n\n")
	b.WriteString(c.org.TasksText())
	b.WriteString("\n\nWORKER EXPERIENCE PROFILES:\n\n")
	for _, w := range c.org.Workers() {
		b.WriteString(w.ExperienceSummary(c.org.LookupTask))
		b.WriteString("\n\n")
	}
	return b.String()
}

// dependencyText renders one line per unassigned task with its skills,
// dependencies and estimate, numbered like the task roster.
func (c *Conductor) dependencyText(open []*task.Task) string {
	var b strings.Builder
	b.WriteString("Task Dependencies and Information:\n")
	for i, t := range open {
		if t.IsAssigned() {
			continue
		}
		var deps []string
		for _, id := range t.DependsOn {
			if n := c.org.IndexOf(id); n >= 0 {
				deps = append(deps, fmt.Sprintf("Task %d", n+1))
			}
		}
		fmt.Fprintf(&b, "Task %d: Required Skills=%s, Dependencies=%s, Estimated Hours=%s\n",
			i+1,
			joinOr(t.RequiredSkills, "Any"),
			joinOr(deps, "None"),
			hoursOr(t.EstimatedHours, "%.1f"),
		)
	}
	return b.String()
}

func (c *Conductor) publish(ctx context.Context, ev *events.Event) {
	if err := c.pub.Publish(ctx, ev); err != nil {
		c.logger.Warn("publish event failed", slog.String("type", string(ev.Type)), slog.Any("error", err))
	}
}

func (c *Conductor) event(typ events.Type, t *task.Task, w *worker.Worker, msg string) *events.Event {
	ev := events.New(typ, msg, c.org.Now())
	if t != nil {
		ev.TaskID, ev.Task = t.ID, t.Title
	}
	if w != nil {
		ev.WorkerID, ev.Worker = w.ID, w.Name
	}
	return ev
}

func joinOr(items []string, none string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}

// hoursOr formats an estimate with layout, or "Unknown" when unset.
func hoursOr(h float64, layout string) string {
	if h <= 0 {
		return "Unknown"
	}
	if layout == "" {
		return strconv.FormatFloat(h, 'f', -1, 64)
	}
	return fmt.Sprintf(layout, h)
}
