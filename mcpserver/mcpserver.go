// Package mcpserver exposes the conductor service as MCP tools so an
// assistant can inspect the team and drive planning over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GoCodeAlone/conductor/service"
)

// Name is the MCP server name announced to clients.
const Name = "conductor"

type emptyArgs struct{}

// IndexArgs addresses an item by list position.
type IndexArgs struct {
	Index int `json:"index" jsonschema:"required,description=0-based position in the list"`
}

// CreateWorkerArgs registers a worker.
type CreateWorkerArgs struct {
	Name       string   `json:"name" jsonschema:"required,description=Unique worker name"`
	IsHuman    bool     `json:"is_human" jsonschema:"description=False for automated workers"`
	Skills     []string `json:"skills" jsonschema:"description=Skill names"`
	Experience string   `json:"experience_description" jsonschema:"description=Background the planner can take into account"`
}

// CreateTaskArgs registers a task.
type CreateTaskArgs struct {
	Title          string   `json:"title" jsonschema:"required,description=Task title"`
	Description    string   `json:"description" jsonschema:"description=What needs doing"`
	Priority       int      `json:"priority" jsonschema:"required,minimum=1,maximum=10,description=1 (low) to 10 (high)"`
	DeadlineDays   int      `json:"deadline_days" jsonschema:"description=Days from now; 0 means no deadline"`
	RequiredSkills []string `json:"required_skills" jsonschema:"description=Skills the task needs"`
	Tags           []string `json:"tags"`
	EstimatedHours float64  `json:"estimated_hours" jsonschema:"description=0 means unknown"`
	DependencyIDs  []int    `json:"dependency_ids" jsonschema:"description=0-based positions of open tasks this one waits on"`
	AutoAssign     bool     `json:"auto_assign" jsonschema:"description=Pick a worker with the workload and urgency heuristic"`
}

func (a CreateTaskArgs) request() service.CreateTaskRequest {
	return service.CreateTaskRequest{
		Title:          a.Title,
		Description:    a.Description,
		Priority:       a.Priority,
		DeadlineDays:   a.DeadlineDays,
		RequiredSkills: a.RequiredSkills,
		Tags:           a.Tags,
		EstimatedHours: a.EstimatedHours,
		DependencyIDs:  a.DependencyIDs,
		AutoAssign:     a.AutoAssign,
	}
}

// AssignTaskArgs assigns an open task directly.
type AssignTaskArgs struct {
	Index      int    `json:"index" jsonschema:"required,description=0-based position of the open task"`
	WorkerName string `json:"worker_name" jsonschema:"required"`
}

// CompleteTaskArgs completes an open task.
type CompleteTaskArgs struct {
	Index    int    `json:"index" jsonschema:"required,description=0-based position of the open task"`
	Feedback string `json:"feedback" jsonschema:"description=Recorded as a note on the task"`
}

// New creates an MCP server with every conductor tool registered.
func New(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(Name, version, server.WithToolCapabilities(false))
	Register(s, svc)
	return s
}

// Serve runs the MCP server over stdin/stdout until the client disconnects.
func Serve(svc *service.Service, version string) error {
	return server.ServeStdio(New(svc, version))
}

// Register adds the conductor tools to s.
func Register(s *server.MCPServer, svc *service.Service) {
	t := &Tools{svc: svc}

	s.AddTool(mcp.NewTool("list_workers",
		mcp.WithDescription("List every worker with skills, workload, assigned and completed tasks."),
		mcp.WithInputSchema[emptyArgs](),
	), t.ListWorkers)

	s.AddTool(mcp.NewTool("create_worker",
		mcp.WithDescription("Add a human or automated worker to the organization."),
		mcp.WithInputSchema[CreateWorkerArgs](),
	), t.CreateWorker)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List open tasks in order. Positions in this list are the task indexes other tools take."),
		mcp.WithInputSchema[emptyArgs](),
	), t.ListTasks)

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Add a task. Dependencies refer to open tasks by 0-based position."),
		mcp.WithInputSchema[CreateTaskArgs](),
	), t.CreateTask)

	s.AddTool(mcp.NewTool("plan_assignments",
		mcp.WithDescription("Run one planning round: the language model proposes workers for every unassigned task and valid proposals are applied."),
		mcp.WithInputSchema[emptyArgs](),
	), t.PlanAssignments)

	s.AddTool(mcp.NewTool("assign_task",
		mcp.WithDescription("Assign an open task to a named worker, moving it from any previous holder."),
		mcp.WithInputSchema[AssignTaskArgs](),
	), t.AssignTask)

	s.AddTool(mcp.NewTool("create_and_plan_task",
		mcp.WithDescription("Add a task and let the language model choose its worker."),
		mcp.WithInputSchema[CreateTaskArgs](),
	), t.CreateAndPlanTask)

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark an open task completed. Tasks waiting on it are released."),
		mcp.WithInputSchema[CompleteTaskArgs](),
	), t.CompleteTask)

	s.AddTool(mcp.NewTool("organization_state",
		mcp.WithDescription("Human-readable summary of workers, tasks by status and overdue work."),
		mcp.WithInputSchema[emptyArgs](),
	), t.OrganizationState)
}

// Tools holds the tool handlers.
type Tools struct {
	svc *service.Service
}

// NewTools returns handlers bound to svc.
func NewTools(svc *service.Service) *Tools { return &Tools{svc: svc} }

func (t *Tools) ListWorkers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.svc.Workers())
}

func (t *Tools) CreateWorker(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args CreateWorkerArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	wv, err := t.svc.CreateWorker(ctx, service.CreateWorkerRequest{
		Name:       args.Name,
		IsHuman:    args.IsHuman,
		Skills:     args.Skills,
		Experience: args.Experience,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created worker %s (index %d, skills: %s)", wv.Name, wv.Index, listOr(wv.Skills))), nil
}

func (t *Tools) ListTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.svc.Tasks())
}

func (t *Tools) CreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args CreateTaskArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	tv, err := t.svc.CreateTask(ctx, args.request())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg := fmt.Sprintf("Created task %q (index %d, status %s)", tv.Title, *tv.Index, tv.Status)
	if tv.AssignedWorker != nil {
		msg += ", assigned to " + *tv.AssignedWorker
	}
	return mcp.NewToolResultText(msg), nil
}

func (t *Tools) PlanAssignments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pv := t.svc.PlanRound(ctx)

	var b strings.Builder
	if len(pv.Assignments) == 0 {
		b.WriteString("No assignments were made.\n")
	}
	for _, a := range pv.Assignments {
		titles := make([]string, 0, len(a.Tasks))
		for _, tv := range a.Tasks {
			titles = append(titles, tv.Title)
		}
		fmt.Fprintf(&b, "%s: %s\n", a.Worker, strings.Join(titles, ", "))
	}
	for _, l := range pv.RaceLosses {
		fmt.Fprintf(&b, "Kept %q with %s (proposed for %s)\n", l.Task, l.HeldBy, l.Worker)
	}
	for _, s := range pv.Skipped {
		fmt.Fprintf(&b, "Skipped %q: %s\n", s.Line, s.Reason)
	}
	fmt.Fprintf(&b, "Unassigned tasks remaining: %d", pv.Unassigned)
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) AssignTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args AssignTaskArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	wv, err := t.svc.AssignTask(ctx, args.Index, args.WorkerName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %d assigned to %s (workload %.2f)", args.Index, wv.Name, wv.Workload)), nil
}

func (t *Tools) CreateAndPlanTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args CreateTaskArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	tv, wv, err := t.svc.CreateAndPlan(ctx, args.request())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created task %q and assigned it to %s", tv.Title, wv.Name)), nil
}

func (t *Tools) CompleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args CompleteTaskArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	cv, err := t.svc.CompleteTask(ctx, args.Index, args.Feedback)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg := cv.Message
	if len(cv.Unblocked) > 0 {
		msg += "\nUnblocked: " + strings.Join(cv.Unblocked, ", ")
	}
	return mcp.NewToolResultText(msg), nil
}

func (t *Tools) OrganizationState(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(t.svc.StateReport()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func listOr(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
