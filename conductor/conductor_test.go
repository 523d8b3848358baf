package conductor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// scripted is a Generator returning fixed responses in order and recording
// every prompt it was given.
type scripted struct {
	responses []string
	prompts   []string
}

func (s *scripted) Generate(_ context.Context, prompt string) string {
	s.prompts = append(s.prompts, prompt)
	if len(s.responses) == 0 {
		return ""
	}
	r := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return r
}

type fixture struct {
	org   *org.Organization
	gen   *scripted
	bus   *events.InMemoryBus
	c     *Conductor
	clock time.Time
}

func newFixture(t *testing.T, workerNames ...string) *fixture {
	t.Helper()
	f := &fixture{gen: &scripted{}, bus: events.NewInMemoryBus(), clock: testNow}
	f.org = org.New("DevTeam",
		org.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		org.WithClock(func() time.Time { return f.clock }),
	)
	for _, name := range workerNames {
		f.org.AddWorker(worker.New(name, true, []string{"go"}, ""))
	}
	f.c = New(f.org, "We build software.", f.gen, WithPublisher(f.bus))
	return f
}

func (f *fixture) addTasks(titles ...string) []*task.Task {
	out := make([]*task.Task, 0, len(titles))
	for _, title := range titles {
		tk := task.New(title, title+" description", 5)
		f.org.AddTask(tk, false)
		out = append(out, tk)
	}
	return out
}

func (f *fixture) worker(t *testing.T, name string) *worker.Worker {
	t.Helper()
	w, ok := f.org.WorkerByName(name)
	if !ok {
		t.Fatalf("worker %q not registered", name)
	}
	return w
}

func (f *fixture) countEvents(typ events.Type) int {
	n := 0
	for _, ev := range f.bus.History(0) {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func titles(tasks []*task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestGenerateTaskAssignments(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	tasks := f.addTasks("one", "two", "three")
	f.gen.responses = []string{"REASONING:\nsplit evenly\n\nASSIGNMENTS:\nAlice: Task 2, Task 1\nBob: Task 3"}

	res := f.c.GenerateTaskAssignments(context.Background())

	if len(res.Assignments) != 2 {
		t.Fatalf("Assignments = %+v", res.Assignments)
	}
	if a := res.Assignments[0]; a.Worker.Name != "Alice" || strings.Join(titles(a.Tasks), ",") != "two,one" {
		t.Errorf("Alice got %v", titles(a.Tasks))
	}
	if a := res.Assignments[1]; a.Worker.Name != "Bob" || strings.Join(titles(a.Tasks), ",") != "three" {
		t.Errorf("Bob got %v", titles(a.Tasks))
	}
	for _, tk := range tasks {
		if tk.Status != task.StatusInProgress {
			t.Errorf("%s status = %q, want in_progress", tk.Title, tk.Status)
		}
	}
	if got := f.countEvents(events.TaskAssigned); got != 3 {
		t.Errorf("task.assigned events = %d, want 3", got)
	}
	if got := f.countEvents(events.PlanApplied); got != 1 {
		t.Errorf("plan.applied events = %d, want 1", got)
	}
}

func TestGenerateTaskAssignments_OutOfRangeSkipped(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	f.addTasks("one", "two", "three")
	f.gen.responses = []string{"ASSIGNMENTS:\nAlice: Task 9, Task 1\nBob: Task 3"}

	res := f.c.GenerateTaskAssignments(context.Background())

	if res.Count() != 2 {
		t.Errorf("Count = %d, want 2", res.Count())
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != ReasonOutOfRange {
		t.Errorf("Skipped = %+v", res.Skipped)
	}
	if !f.worker(t, "Alice").Holds(f.org.Tasks()[0].ID) {
		t.Error("valid ref on the same line was not applied")
	}
	if f.org.Tasks()[1].IsAssigned() {
		t.Error("unreferenced task was assigned")
	}
}

func TestGenerateTaskAssignments_FirstWriterWins(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	tasks := f.addTasks("shared")
	f.gen.responses = []string{"ASSIGNMENTS:\nAlice: Task 1\nBob: Task 1"}

	res := f.c.GenerateTaskAssignments(context.Background())

	if len(res.Assignments) != 1 || res.Assignments[0].Worker.Name != "Alice" {
		t.Fatalf("Assignments = %+v", res.Assignments)
	}
	if len(res.RaceLosses) != 1 || res.RaceLosses[0].Worker != "Bob" || res.RaceLosses[0].HeldBy != "Alice" {
		t.Errorf("RaceLosses = %+v", res.RaceLosses)
	}
	if f.worker(t, "Bob").Holds(tasks[0].ID) {
		t.Error("task held by two workers")
	}
}

func TestGenerateTaskAssignments_AlreadyAssignedKept(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	tasks := f.addTasks("held")
	f.org.Assign(tasks[0], f.worker(t, "Alice"))
	f.gen.responses = []string{"ASSIGNMENTS:\nBob: Task 1"}

	res := f.c.GenerateTaskAssignments(context.Background())

	if res.Count() != 0 || len(res.RaceLosses) != 1 {
		t.Errorf("res = %+v", res)
	}
	if tasks[0].AssignedTo != f.worker(t, "Alice").ID {
		t.Error("planning round stole an assigned task")
	}
}

func TestGenerateTaskAssignments_ErrorMarker(t *testing.T) {
	f := newFixture(t, "Alice")
	tasks := f.addTasks("one")
	f.gen.responses = []string{"ERROR: Could not generate response. Please check your API key and network connection. Error: boom"}

	res := f.c.GenerateTaskAssignments(context.Background())
	if res.Count() != 0 {
		t.Errorf("Count = %d, want 0", res.Count())
	}
	if tasks[0].IsAssigned() {
		t.Error("task assigned from error response")
	}

	// Retrying with a usable response succeeds.
	f.gen.responses = []string{"ASSIGNMENTS:\nAlice: Task 1"}
	if res := f.c.GenerateTaskAssignments(context.Background()); res.Count() != 1 {
		t.Errorf("retry Count = %d, want 1", res.Count())
	}
}

func TestBatchPrompt(t *testing.T) {
	f := newFixture(t, "Alice")
	tasks := f.addTasks("schema", "api")
	tasks[1].DependsOn = []string{tasks[0].ID}
	tasks[1].RequiredSkills = []string{"python"}
	tasks[1].EstimatedHours = 8

	prompt := f.c.BatchPrompt()
	for _, want := range []string{
		"We build software.\n\nCURRENT ORGANIZATION STATE:",
		"Worker 1: Alice",
		"Task 2: api description",
		"WORKER EXPERIENCE PROFILES:\n\nWorker: Alice (Human)",
		"Task 1: Required Skills=Any, Dependencies=None, Estimated Hours=Unknown\n",
		"Task 2: Required Skills=python, Dependencies=Task 1, Estimated Hours=8.0\n",
		"ASSIGNMENTS:\n[Worker Name]: Task 1, Task 2, ...",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAssignNewTask_ExactName(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	f.gen.responses = []string{"REASONING:\nBob knows this.\n\nASSIGNMENT:\nBob\n"}
	tk := task.New("new", "something", 6)
	tk.Tags = []string{"backend"}

	w, err := f.c.AssignNewTask(context.Background(), tk)
	if err != nil {
		t.Fatalf("AssignNewTask: %v", err)
	}
	if w.Name != "Bob" || tk.AssignedTo != w.ID {
		t.Errorf("assigned to %v, want Bob", w)
	}
	if f.org.IndexOf(tk.ID) != 0 {
		t.Error("task not registered")
	}
	if p := f.gen.prompts[0]; !strings.Contains(p, "New Task to Assign:\nTitle: new") || !strings.Contains(p, "Tags: backend") {
		t.Errorf("single-task prompt missing task details:\n%s", p)
	}
	if f.countEvents(events.PlanFallback) != 0 {
		t.Error("unexpected fallback event")
	}
}

func TestAssignNewTask_FallbackToFirstWorker(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"unknown name", "ASSIGNMENT:\nZed"},
		{"error marker", "ERROR: Could not generate response. Error: boom"},
		{"empty", ""},
		{"name not on last line", "ASSIGNMENT:\nBob\nThanks!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "Alice", "Bob")
			f.gen.responses = []string{tt.response}
			tk := task.New("new", "", 5)

			w, err := f.c.AssignNewTask(context.Background(), tk)
			if err != nil {
				t.Fatalf("AssignNewTask: %v", err)
			}
			if w.Name != "Alice" {
				t.Errorf("assigned to %s, want Alice", w.Name)
			}
			if f.countEvents(events.PlanFallback) != 1 {
				t.Error("fallback event not published")
			}
		})
	}
}

func TestAssignNewTask_NoWorkers(t *testing.T) {
	f := newFixture(t)
	tk := task.New("orphan", "", 5)

	_, err := f.c.AssignNewTask(context.Background(), tk)
	if !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("err = %v, want ErrNoWorkers", err)
	}
	if !f.org.IsOpen(tk.ID) || tk.IsAssigned() {
		t.Error("task should stay registered and unassigned")
	}
	if len(f.gen.prompts) != 0 {
		t.Error("generator called with no workers")
	}
}

func TestHandleTaskCompletion(t *testing.T) {
	f := newFixture(t, "Alice")
	alice := f.worker(t, "Alice")
	tasks := f.addTasks("schema")
	child := task.New("api", "", 5)
	child.DependsOn = []string{tasks[0].ID}
	f.org.AddTask(child, false)
	if child.Status != task.StatusBlocked {
		t.Fatalf("child status = %q, want blocked", child.Status)
	}

	f.org.Assign(tasks[0], alice)
	f.clock = testNow.Add(4 * time.Hour)
	if err := f.c.HandleTaskCompletion(context.Background(), tasks[0], "great work"); err != nil {
		t.Fatalf("HandleTaskCompletion: %v", err)
	}

	done := tasks[0]
	if done.Status != task.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
	if f.org.IsOpen(done.ID) || len(f.org.CompletedTasks()) != 1 {
		t.Error("task not archived")
	}
	if n := len(done.Notes); n != 1 || done.Notes[0].Content != "Completion feedback: great work" {
		t.Errorf("Notes = %+v", done.Notes)
	}
	if alice.Metrics.TasksCompleted != 1 || alice.Metrics.AvgCompletionHours != 4 {
		t.Errorf("Metrics = %+v", alice.Metrics)
	}
	if child.HasDependency(done.ID) || child.Status != task.StatusPending {
		t.Errorf("child not unblocked: %s deps=%v", child, child.DependsOn)
	}
	if f.countEvents(events.TaskCompleted) != 1 || f.countEvents(events.TaskUnblocked) != 1 {
		t.Errorf("events = %+v", f.bus.History(0))
	}

	err := f.c.HandleTaskCompletion(context.Background(), done, "")
	if !errors.Is(err, org.ErrTaskCompleted) {
		t.Errorf("second completion err = %v, want ErrTaskCompleted", err)
	}
}

func TestHandleTaskCompletion_Unassigned(t *testing.T) {
	f := newFixture(t, "Alice")
	tasks := f.addTasks("idle")

	err := f.c.HandleTaskCompletion(context.Background(), tasks[0], "")
	if !errors.Is(err, ErrTaskUnassigned) {
		t.Fatalf("err = %v, want ErrTaskUnassigned", err)
	}
	if !f.org.IsOpen(tasks[0].ID) || tasks[0].Status != task.StatusPending {
		t.Error("state changed by rejected completion")
	}
}

func TestHandleTaskCompletion_Blocked(t *testing.T) {
	f := newFixture(t, "Alice")
	tasks := f.addTasks("schema")
	child := task.New("api", "", 5)
	child.DependsOn = []string{tasks[0].ID}
	f.org.AddTask(child, false)
	f.org.Assign(child, f.worker(t, "Alice"))

	err := f.c.HandleTaskCompletion(context.Background(), child, "")
	if !errors.Is(err, ErrTaskBlocked) {
		t.Fatalf("err = %v, want ErrTaskBlocked", err)
	}
	if !f.org.IsOpen(child.ID) || child.IsCompleted() || f.countEvents(events.TaskCompleted) != 0 {
		t.Error("state changed by rejected completion")
	}
}

func TestHandleTaskCompletion_UnknownTask(t *testing.T) {
	f := newFixture(t, "Alice")
	err := f.c.HandleTaskCompletion(context.Background(), task.New("stray", "", 1), "")
	if !errors.Is(err, org.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestCompletionFeedsPlanningContext(t *testing.T) {
	f := newFixture(t, "Alice")
	tasks := f.addTasks("schema", "api")
	f.org.Assign(tasks[0], f.worker(t, "Alice"))
	f.clock = testNow.Add(2 * time.Hour)
	if err := f.c.HandleTaskCompletion(context.Background(), tasks[0], ""); err != nil {
		t.Fatalf("HandleTaskCompletion: %v", err)
	}

	ctx := f.c.FullContext()
	for _, want := range []string{
		"Tasks completed: 1",
		"Average completion time: 2.0 hours",
		"Completed 'schema' ",
		"Task 1: api description", // renumbered after archive
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q", want)
		}
	}
}
