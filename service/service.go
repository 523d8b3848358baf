// Package service is the boundary facade over the assignment engine. Tasks
// and workers are addressed by their position in the organization's lists,
// requests are validated, and every operation runs under one lock.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/conductor/conductor"
	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

var (
	// ErrNotFound is returned for an index or name that matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	minPriority = 1
	maxPriority = 10
)

// CreateWorkerRequest registers a worker.
type CreateWorkerRequest struct {
	Name       string   `json:"name"`
	IsHuman    bool     `json:"is_human"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience_description"`
}

// CreateTaskRequest registers a task. DependencyIDs are 0-based positions
// in the open task list; positions that match nothing are ignored.
type CreateTaskRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       int      `json:"priority"`
	DeadlineDays   int      `json:"deadline_days,omitempty"`
	RequiredSkills []string `json:"required_skills"`
	Tags           []string `json:"tags"`
	EstimatedHours float64  `json:"estimated_hours,omitempty"`
	DependencyIDs  []int    `json:"dependency_ids"`
	RelatedIDs     []int    `json:"related_ids,omitempty"`
	AutoAssign     bool     `json:"auto_assign,omitempty"`
}

// Service serializes access to one organization and its conductor.
type Service struct {
	mu     sync.Mutex
	org    *org.Organization
	cond   *conductor.Conductor
	pub    events.Publisher
	logger *slog.Logger
	v      views
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends worker and task registration events to p. The
// conductor publishes its own events through whatever it was built with.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithLogger sets the logger. Defaults to the organization's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service around c and its organization.
func New(c *conductor.Conductor, opts ...Option) *Service {
	o := c.Organization()
	s := &Service{
		org:    o,
		cond:   c,
		pub:    events.Discard,
		logger: o.Logger(),
		v:      views{org: o},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the organization name.
func (s *Service) Name() string { return s.org.Name }

// Do runs fn with exclusive access to the conductor. It is the escape
// hatch for setup code such as seeding.
func (s *Service) Do(fn func(c *conductor.Conductor)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cond)
}

// CreateWorker registers a new worker. Names must be non-empty and unique
// because planning responses refer to workers by name.
func (s *Service) CreateWorker(ctx context.Context, req CreateWorkerRequest) (WorkerView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return WorkerView{}, fmt.Errorf("%w: worker name is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.org.WorkerByName(name); exists {
		return WorkerView{}, fmt.Errorf("%w: worker %q already exists", ErrInvalidRequest, name)
	}
	w := worker.New(name, req.IsHuman, cleanList(req.Skills), req.Experience)
	s.org.AddWorker(w)

	ev := events.New(events.WorkerCreated, w.Kind(), s.org.Now())
	ev.WorkerID, ev.Worker = w.ID, w.Name
	s.publish(ctx, ev)
	return s.v.workerOf(w), nil
}

// Workers lists every worker in registration order.
func (s *Service) Workers() []WorkerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.workers()
}

// Worker returns the worker at index.
func (s *Service) Worker(index int) (WorkerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.workerAt(index)
	if err != nil {
		return WorkerView{}, err
	}
	return s.v.worker(index, w), nil
}

// CreateTask registers a new task. With AutoAssign set the deterministic
// heuristic picks a worker immediately.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (TaskView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.buildTask(req)
	if err != nil {
		return TaskView{}, err
	}
	w := s.org.AddTask(t, req.AutoAssign)

	s.publish(ctx, s.taskEvent(events.TaskCreated, t, nil, ""))
	if w != nil {
		s.publish(ctx, s.taskEvent(events.TaskAssigned, t, w, "auto"))
	}
	return s.v.task(t), nil
}

// Tasks lists the open tasks in order.
func (s *Service) Tasks() []TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.tasks(s.org.Tasks())
}

// Task returns the open task at index.
func (s *Service) Task(index int) (TaskView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskAt(index)
	if err != nil {
		return TaskView{}, err
	}
	return s.v.task(t), nil
}

// CompletedTasks lists archived tasks in completion order.
func (s *Service) CompletedTasks() []TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.tasks(s.org.CompletedTasks())
}

// PlanRound runs one batch planning round over the unassigned tasks.
func (s *Service) PlanRound(ctx context.Context) PlanView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.plan(s.cond.GenerateTaskAssignments(ctx))
}

// AssignTask gives the open task at index to the named worker, releasing
// it from any previous holder.
func (s *Service) AssignTask(ctx context.Context, index int, workerName string) (WorkerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskAt(index)
	if err != nil {
		return WorkerView{}, err
	}
	w, ok := s.org.WorkerByName(strings.TrimSpace(workerName))
	if !ok {
		return WorkerView{}, fmt.Errorf("worker %q: %w", workerName, ErrNotFound)
	}
	if t.AssignedTo != w.ID {
		s.org.Assign(t, w)
		s.logger.Info("assigned task", slog.String("task", t.Title), slog.String("worker", w.Name))
		s.publish(ctx, s.taskEvent(events.TaskAssigned, t, w, "direct"))
	}
	return s.v.workerOf(w), nil
}

// CreateAndPlan registers a new task and lets the planner choose its
// worker.
func (s *Service) CreateAndPlan(ctx context.Context, req CreateTaskRequest) (TaskView, WorkerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.buildTask(req)
	if err != nil {
		return TaskView{}, WorkerView{}, err
	}
	w, err := s.cond.AssignNewTask(ctx, t)
	if err != nil {
		return s.v.task(t), WorkerView{}, err
	}
	return s.v.task(t), s.v.workerOf(w), nil
}

// CompleteTask marks the open task at index completed with feedback.
func (s *Service) CompleteTask(ctx context.Context, index int, feedback string) (CompletionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskAt(index)
	if err != nil {
		return CompletionView{}, err
	}
	blocked := s.blockedOn(t.ID)
	if err := s.cond.HandleTaskCompletion(ctx, t, feedback); err != nil {
		return CompletionView{}, err
	}

	cv := CompletionView{
		Status:  "success",
		Message: fmt.Sprintf("Task '%s' marked as completed", t.Title),
	}
	for _, b := range blocked {
		if b.Status != task.StatusBlocked {
			cv.Unblocked = append(cv.Unblocked, b.Title)
		}
	}
	return cv, nil
}

// Organization returns the full organization view.
func (s *Service) Organization() OrganizationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return OrganizationView{
		Name:           s.org.Name,
		Workers:        s.v.workers(),
		Tasks:          s.v.tasks(s.org.Tasks()),
		CompletedTasks: s.v.tasks(s.org.CompletedTasks()),
		Skills:         nonNil(s.org.Skills()),
	}
}

// StateReport returns the human-readable organization summary.
func (s *Service) StateReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.org.StateReport()
}

func (s *Service) buildTask(req CreateTaskRequest) (*task.Task, error) {
	title := strings.TrimSpace(req.Title)
	var problems []error
	if title == "" {
		problems = append(problems, errors.New("title is required"))
	}
	if req.Priority < minPriority || req.Priority > maxPriority {
		problems = append(problems, fmt.Errorf("priority %d outside %d-%d", req.Priority, minPriority, maxPriority))
	}
	if req.DeadlineDays < 0 {
		problems = append(problems, fmt.Errorf("deadline_days %d is negative", req.DeadlineDays))
	}
	if req.EstimatedHours < 0 {
		problems = append(problems, fmt.Errorf("estimated_hours %g is negative", req.EstimatedHours))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(problems...))
	}

	t := task.New(title, req.Description, req.Priority)
	if req.DeadlineDays > 0 {
		d := s.org.Now().Add(time.Duration(req.DeadlineDays) * 24 * time.Hour)
		t.Deadline = &d
	}
	t.RequiredSkills = cleanList(req.RequiredSkills)
	t.Tags = cleanList(req.Tags)
	t.EstimatedHours = req.EstimatedHours
	t.DependsOn = s.resolveRefs(title, "dependency", req.DependencyIDs)
	t.RelatedTasks = s.resolveRefs(title, "related task", req.RelatedIDs)
	return t, nil
}

// resolveRefs maps open-task positions to IDs, dropping positions that
// match nothing and repeats.
func (s *Service) resolveRefs(title, kind string, refs []int) []string {
	open := s.org.Tasks()
	var ids []string
	for _, ref := range refs {
		if ref < 0 || ref >= len(open) {
			s.logger.Warn("ignoring "+kind+" reference",
				slog.String("task", title),
				slog.Int("index", ref),
				slog.Int("open_tasks", len(open)),
			)
			continue
		}
		if id := open[ref].ID; !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Service) workerAt(index int) (*worker.Worker, error) {
	ws := s.org.Workers()
	if index < 0 || index >= len(ws) {
		return nil, fmt.Errorf("worker %d: %w", index, ErrNotFound)
	}
	return ws[index], nil
}

func (s *Service) taskAt(index int) (*task.Task, error) {
	ts := s.org.Tasks()
	if index < 0 || index >= len(ts) {
		return nil, fmt.Errorf("task %d: %w", index, ErrNotFound)
	}
	return ts[index], nil
}

// blockedOn returns the open tasks currently blocked that depend on id.
func (s *Service) blockedOn(id string) []*task.Task {
	var out []*task.Task
	for _, t := range s.org.Tasks() {
		if t.Status == task.StatusBlocked && t.HasDependency(id) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Service) taskEvent(typ events.Type, t *task.Task, w *worker.Worker, msg string) *events.Event {
	ev := events.New(typ, msg, s.org.Now())
	ev.TaskID, ev.Task = t.ID, t.Title
	if w != nil {
		ev.WorkerID, ev.Worker = w.ID, w.Name
	}
	return ev
}

func (s *Service) publish(ctx context.Context, ev *events.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.logger.Warn("event handler failed", slog.String("type", string(ev.Type)), slog.Any("error", err))
	}
}

// cleanList trims entries and drops empty ones.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
