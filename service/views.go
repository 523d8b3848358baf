package service

import (
	"time"

	"github.com/GoCodeAlone/conductor/conductor"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

// TaskView is the boundary representation of a task. Relationships are
// rendered as titles and names.
type TaskView struct {
	Index          *int           `json:"index,omitempty"` // position among open tasks
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Priority       int            `json:"priority"`
	Deadline       *time.Time     `json:"deadline"`
	RequiredSkills []string       `json:"required_skills"`
	Tags           []string       `json:"tags"`
	EstimatedHours *float64       `json:"estimated_hours"`
	Status         task.Status    `json:"status"`
	AssignmentTime *time.Time     `json:"assignment_time"`
	CompletedTime  *time.Time     `json:"completed_time"`
	AssignedWorker *string        `json:"assigned_worker"`
	Notes          []task.Note    `json:"notes"`
	Subtasks       []task.Subtask `json:"subtasks,omitempty"`
	Dependencies   []string       `json:"dependencies"`
	RelatedTasks   []string       `json:"related_tasks,omitempty"`
	UrgencyScore   float64        `json:"urgency_score"`
}

// WorkerView is the boundary representation of a worker.
type WorkerView struct {
	Index          int            `json:"index"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	IsHuman        bool           `json:"is_human"`
	Skills         []string       `json:"skills"`
	Workload       float64        `json:"workload"`
	Experience     string         `json:"experience_description"`
	Metrics        worker.Metrics `json:"performance_metrics"`
	AssignedTasks  []TaskView     `json:"assigned_tasks"`
	CompletedTasks []TaskView     `json:"completed_tasks"`
}

// OrganizationView is the full state of the organization.
type OrganizationView struct {
	Name           string       `json:"name"`
	Workers        []WorkerView `json:"workers"`
	Tasks          []TaskView   `json:"tasks"`
	CompletedTasks []TaskView   `json:"completed_tasks"`
	Skills         []string     `json:"skills"`
}

// AssignmentView is one worker's share of a planning round.
type AssignmentView struct {
	Worker string     `json:"worker"`
	Tasks  []TaskView `json:"tasks"`
}

// RaceLossView is a planned pair dropped because the task was taken.
type RaceLossView struct {
	Worker string `json:"worker"`
	Task   string `json:"task"`
	HeldBy string `json:"held_by"`
}

// PlanView is the outcome of a batch planning round.
type PlanView struct {
	Assignments []AssignmentView `json:"assignments"`
	Skipped     []conductor.Skip `json:"skipped"`
	RaceLosses  []RaceLossView   `json:"race_losses"`
	Unassigned  int              `json:"unassigned"`
}

// CompletionView confirms a completion.
type CompletionView struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Unblocked []string `json:"unblocked,omitempty"`
}

// views renders core objects against one organization. Callers hold the
// service lock.
type views struct {
	org *org.Organization
}

func (v views) task(t *task.Task) TaskView {
	tv := TaskView{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Deadline:       t.Deadline,
		RequiredSkills: nonNil(t.RequiredSkills),
		Tags:           nonNil(t.Tags),
		Status:         t.Status,
		AssignmentTime: t.AssignedAt,
		CompletedTime:  t.CompletedAt,
		Notes:          t.Notes,
		Subtasks:       t.Subtasks,
		Dependencies:   v.titles(t.DependsOn),
		RelatedTasks:   v.titles(t.RelatedTasks),
		UrgencyScore:   t.UrgencyScore(v.org.Now()),
	}
	if tv.Notes == nil {
		tv.Notes = []task.Note{}
	}
	if i := v.org.IndexOf(t.ID); i >= 0 {
		tv.Index = &i
	}
	if t.EstimatedHours > 0 {
		h := t.EstimatedHours
		tv.EstimatedHours = &h
	}
	if w, ok := v.org.AssigneeOf(t); ok {
		name := w.Name
		tv.AssignedWorker = &name
	}
	return tv
}

func (v views) tasks(ts []*task.Task) []TaskView {
	out := make([]TaskView, 0, len(ts))
	for _, t := range ts {
		out = append(out, v.task(t))
	}
	return out
}

func (v views) tasksByID(ids []string) []TaskView {
	out := make([]TaskView, 0, len(ids))
	for _, id := range ids {
		if t, ok := v.org.LookupTask(id); ok {
			out = append(out, v.task(t))
		}
	}
	return out
}

func (v views) worker(index int, w *worker.Worker) WorkerView {
	return WorkerView{
		Index:          index,
		ID:             w.ID,
		Name:           w.Name,
		IsHuman:        w.IsHuman,
		Skills:         nonNil(w.Skills),
		Workload:       v.org.Workload(w),
		Experience:     w.Experience,
		Metrics:        w.Metrics,
		AssignedTasks:  v.tasksByID(w.AssignedTasks),
		CompletedTasks: v.tasksByID(w.CompletedTasks),
	}
}

func (v views) workerOf(w *worker.Worker) WorkerView {
	for i, candidate := range v.org.Workers() {
		if candidate == w {
			return v.worker(i, w)
		}
	}
	return v.worker(-1, w)
}

func (v views) workers() []WorkerView {
	ws := v.org.Workers()
	out := make([]WorkerView, 0, len(ws))
	for i, w := range ws {
		out = append(out, v.worker(i, w))
	}
	return out
}

func (v views) plan(res *conductor.Result) PlanView {
	pv := PlanView{
		Assignments: make([]AssignmentView, 0, len(res.Assignments)),
		Skipped:     res.Skipped,
		RaceLosses:  make([]RaceLossView, 0, len(res.RaceLosses)),
		Unassigned:  len(v.org.UnassignedTasks()),
	}
	if pv.Skipped == nil {
		pv.Skipped = []conductor.Skip{}
	}
	for _, a := range res.Assignments {
		pv.Assignments = append(pv.Assignments, AssignmentView{Worker: a.Worker.Name, Tasks: v.tasks(a.Tasks)})
	}
	for _, l := range res.RaceLosses {
		pv.RaceLosses = append(pv.RaceLosses, RaceLossView{Worker: l.Worker, Task: l.Task.Title, HeldBy: l.HeldBy})
	}
	return pv
}

func (v views) titles(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := v.org.LookupTask(id); ok {
			out = append(out, t.Title)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
