// Package demo seeds a sample software team so the server, the MCP tools
// and the demo command have something to plan.
package demo

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/conductor/service"
)

// OrganizationName is the name of the sample team.
const OrganizationName = "DevTeam"

// BasePrompt describes the sample team's project and goals.
const BasePrompt = `You are assisting a software development team working on a web application.
The application is a customer relationship management (CRM) system with:
- User authentication
- Customer data management
- Sales pipeline tracking
- Reporting and analytics

Team Goals:
1. Complete core features for an MVP within 2 weeks
2. Maintain high code quality and test coverage
3. Create clear documentation for APIs and user interfaces
4. Follow best security practices for data protection

Task assignments should consider skill matching, deadlines, dependencies between tasks,
and the right balance between human and AI contributions.`

// PlanResponse is a well-formed planning reply for the seeded team, used
// when no language model is configured.
const PlanResponse = `REASONING:
Emma owns the backend and database work, so she starts with the schema that
unblocks authentication and the customer API. Sophia covers the dashboard
design, Alex implements it once the design lands, Michael sets up the
pipeline and the AI Assistant drafts the API documentation.

ASSIGNMENTS:
Emma: Task 1, Task 2, Task 3
Sophia: Task 4
Alex: Task 5
Michael: Task 6
AI Assistant: Task 7`

// Workers is the sample roster.
var Workers = []service.CreateWorkerRequest{
	{Name: "Alex", IsHuman: true, Skills: []string{"frontend_development", "javascript", "react", "UI_design"}},
	{Name: "Emma", IsHuman: true, Skills: []string{"backend_development", "python", "django", "database"}},
	{Name: "Michael", IsHuman: true, Skills: []string{"devops", "kubernetes", "docker", "infrastructure"}},
	{Name: "Sophia", IsHuman: true, Skills: []string{"product_management", "UX_design", "user_research"}},
	{Name: "AI Assistant", IsHuman: false, Skills: []string{"documentation", "research", "testing", "code_review"}},
}

// Tasks is the sample backlog. Dependencies refer to earlier entries.
var Tasks = []service.CreateTaskRequest{
	{
		Title:          "Database Schema Design",
		Description:    "Design the database schema for user accounts, customers, and sales data",
		Priority:       9,
		DeadlineDays:   2,
		RequiredSkills: []string{"database", "backend_development"},
		EstimatedHours: 6,
		Tags:           []string{"database", "architecture"},
	},
	{
		Title:          "User Authentication System",
		Description:    "Implement secure login, registration, and password reset",
		Priority:       8,
		DeadlineDays:   3,
		RequiredSkills: []string{"backend_development", "security", "python"},
		EstimatedHours: 8,
		Tags:           []string{"security", "users"},
		DependencyIDs:  []int{0},
	},
	{
		Title:          "Customer API Endpoints",
		Description:    "Create REST API endpoints for customer data CRUD operations",
		Priority:       7,
		DeadlineDays:   4,
		RequiredSkills: []string{"backend_development", "python", "API_design"},
		EstimatedHours: 10,
		Tags:           []string{"API", "customers"},
		DependencyIDs:  []int{0},
	},
	{
		Title:          "UI Design for Dashboard",
		Description:    "Create wireframes and design mockups for the main dashboard",
		Priority:       7,
		DeadlineDays:   3,
		RequiredSkills: []string{"UI_design", "UX_design"},
		EstimatedHours: 8,
		Tags:           []string{"design", "UI"},
	},
	{
		Title:          "Implement Dashboard UI",
		Description:    "Implement the React components for the main dashboard",
		Priority:       7,
		DeadlineDays:   5,
		RequiredSkills: []string{"frontend_development", "react", "javascript"},
		EstimatedHours: 12,
		Tags:           []string{"frontend", "UI"},
		DependencyIDs:  []int{3},
	},
	{
		Title:          "Setup CI/CD Pipeline",
		Description:    "Configure CI/CD pipeline for automated testing and deployment",
		Priority:       6,
		DeadlineDays:   6,
		RequiredSkills: []string{"devops", "kubernetes", "docker"},
		EstimatedHours: 10,
		Tags:           []string{"infrastructure", "automation"},
	},
	{
		Title:          "API Documentation",
		Description:    "Generate comprehensive API documentation for the backend endpoints",
		Priority:       5,
		DeadlineDays:   7,
		RequiredSkills: []string{"documentation", "API_design"},
		EstimatedHours: 6,
		Tags:           []string{"documentation", "API"},
	},
}

// Seed registers the sample workers and tasks on an empty service. Tasks
// are left unassigned.
func Seed(ctx context.Context, svc *service.Service) error {
	if n := len(svc.Workers()) + len(svc.Tasks()); n > 0 {
		return fmt.Errorf("seed: organization already has %d workers and tasks", n)
	}
	for _, w := range Workers {
		if _, err := svc.CreateWorker(ctx, w); err != nil {
			return fmt.Errorf("seed worker %s: %w", w.Name, err)
		}
	}
	for _, t := range Tasks {
		if _, err := svc.CreateTask(ctx, t); err != nil {
			return fmt.Errorf("seed task %s: %w", t.Title, err)
		}
	}
	return nil
}
