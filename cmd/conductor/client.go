package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/conductor/service"
)

const (
	defaultServer = "http://localhost:8000"
	envServer     = "CONDUCTOR_SERVER"
)

// Client talks to a running conductor server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func newClientCmd() *cobra.Command {
	serverURL := os.Getenv(envServer)
	if serverURL == "" {
		serverURL = defaultServer
	}
	cli := &Client{HTTPClient: &http.Client{Timeout: 3 * time.Minute}}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Query and drive a running conductor server",
		PersistentPreRun: func(*cobra.Command, []string) {
			cli.BaseURL = strings.TrimRight(serverURL, "/")
		},
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", serverURL, "server URL (or $"+envServer+")")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show server status",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return cli.cmdStatus(c.OutOrStdout()) },
		},
		&cobra.Command{
			Use:   "workers",
			Short: "List workers",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return cli.cmdWorkers(c.OutOrStdout()) },
		},
		&cobra.Command{
			Use:   "tasks",
			Short: "List open tasks",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return cli.cmdTasks(c.OutOrStdout()) },
		},
		&cobra.Command{
			Use:   "plan",
			Short: "Run a planning round for all unassigned tasks",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return cli.cmdPlan(c.OutOrStdout()) },
		},
		&cobra.Command{
			Use:   "assign <task-index> <worker-name>",
			Short: "Assign an open task to a worker",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(c *cobra.Command, args []string) error {
				return cli.cmdAssign(c.OutOrStdout(), args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "complete <task-index> [feedback]",
			Short: "Mark an open task completed",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				return cli.cmdComplete(c.OutOrStdout(), args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "state",
			Short: "Print the organization state report",
			Args:  cobra.NoArgs,
			RunE:  func(c *cobra.Command, _ []string) error { return cli.cmdState(c.OutOrStdout()) },
		},
	)
	return cmd
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

// post performs a POST of body encoded as JSON and decodes the response
// into v (may be nil).
func (c *Client) post(path string, body, v any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// --- status ---

func (c *Client) cmdStatus(w io.Writer) error {
	var result map[string]string
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Fprintf(w, "status:       %s\n", result["status"])
	fmt.Fprintf(w, "version:      %s\n", result["version"])
	fmt.Fprintf(w, "organization: %s\n", result["organization"])
	return nil
}

// --- workers ---

func (c *Client) cmdWorkers(w io.Writer) error {
	var workers []service.WorkerView
	if err := c.get("/api/workers", &workers); err != nil {
		return err
	}
	if len(workers) == 0 {
		fmt.Fprintln(w, "no workers")
		return nil
	}
	fmt.Fprintf(w, "%-3s %-20s %-6s %-8s %-6s %s\n", "#", "NAME", "TYPE", "WORKLOAD", "TASKS", "SKILLS")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, wv := range workers {
		kind := "AI"
		if wv.IsHuman {
			kind = "Human"
		}
		fmt.Fprintf(w, "%-3d %-20s %-6s %-8.2f %-6d %s\n",
			wv.Index,
			truncate(wv.Name, 20),
			kind,
			wv.Workload,
			len(wv.AssignedTasks),
			strings.Join(wv.Skills, ", "),
		)
	}
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(w io.Writer) error {
	var tasks []service.TaskView
	if err := c.get("/api/tasks", &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return nil
	}
	fmt.Fprintf(w, "%-3s %-30s %-4s %-12s %s\n", "#", "TITLE", "PRIO", "STATUS", "ASSIGNED TO")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, t := range tasks {
		assignee := "-"
		if t.AssignedWorker != nil {
			assignee = *t.AssignedWorker
		}
		idx := 0
		if t.Index != nil {
			idx = *t.Index
		}
		fmt.Fprintf(w, "%-3d %-30s %-4d %-12s %s\n", idx, truncate(t.Title, 30), t.Priority, t.Status, assignee)
	}
	return nil
}

// --- planning ---

func (c *Client) cmdPlan(w io.Writer) error {
	var pv service.PlanView
	if err := c.post("/api/tasks/assign", nil, &pv); err != nil {
		return err
	}
	if len(pv.Assignments) == 0 {
		fmt.Fprintln(w, "no assignments")
	}
	for _, a := range pv.Assignments {
		titles := make([]string, 0, len(a.Tasks))
		for _, t := range a.Tasks {
			titles = append(titles, t.Title)
		}
		fmt.Fprintf(w, "%s: %s\n", a.Worker, strings.Join(titles, ", "))
	}
	for _, s := range pv.Skipped {
		fmt.Fprintf(w, "skipped %q: %s\n", s.Line, s.Reason)
	}
	fmt.Fprintf(w, "%d task(s) still unassigned\n", pv.Unassigned)
	return nil
}

func (c *Client) cmdAssign(w io.Writer, index, worker string) error {
	if _, err := strconv.Atoi(index); err != nil {
		return fmt.Errorf("task index %q is not a number", index)
	}
	var wv service.WorkerView
	if err := c.post("/api/tasks/"+index+"/assign", map[string]string{"worker_name": worker}, &wv); err != nil {
		return err
	}
	fmt.Fprintf(w, "task %s assigned to %s\n", index, wv.Name)
	return nil
}

func (c *Client) cmdComplete(w io.Writer, index, feedback string) error {
	if _, err := strconv.Atoi(index); err != nil {
		return fmt.Errorf("task index %q is not a number", index)
	}
	var cv service.CompletionView
	if err := c.post("/api/tasks/"+index+"/complete", map[string]string{"feedback": feedback}, &cv); err != nil {
		return err
	}
	fmt.Fprintln(w, cv.Message)
	for _, t := range cv.Unblocked {
		fmt.Fprintf(w, "unblocked: %s\n", t)
	}
	return nil
}

func (c *Client) cmdState(w io.Writer) error {
	var result map[string]string
	if err := c.get("/api/organization/state", &result); err != nil {
		return err
	}
	fmt.Fprintln(w, result["organization_state"])
	return nil
}

// --- helpers ---

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
