package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/conductor/internal/demo"
	"github.com/GoCodeAlone/conductor/service"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	workerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5A50A"))
)

func newDemoCmd(flags *rootFlags) *cobra.Command {
	var (
		live     bool
		complete bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed the demo team, run a planning round and print the state",
		Long: "Seeds a sample software team, prints its state, runs one planning round and prints the result.\n" +
			"Without --live a scripted planner is used so no API key is needed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !live && flags.provider == "" {
				flags.provider = "mock"
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cfg.Organization.Name = demo.OrganizationName
			cfg.Organization.Seed = true
			if cfg.Provider.Type == "mock" && len(cfg.Provider.Responses) == 0 {
				cfg.Provider.Responses = []string{demo.PlanResponse}
			}
			if flags.configPath == "" {
				cfg.Journal.Path = ""
			}

			a, err := newApp(cmd.Context(), cfg, newLogger(os.Stderr, cfg.LogLevel))
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck
			return runDemo(cmd, a.svc, complete)
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "use the configured language model instead of the scripted planner")
	cmd.Flags().BoolVar(&complete, "complete", false, "complete the first assigned task after planning")
	return cmd
}

func runDemo(cmd *cobra.Command, svc *service.Service, complete bool) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	renderSection(out, "Initial organization state", svc.StateReport())

	fmt.Fprintln(out, mutedStyle.Render("Generating task assignments..."))
	renderPlan(out, svc.PlanRound(ctx))
	renderSection(out, "Organization state after assignments", svc.StateReport())

	if !complete {
		return nil
	}
	for i, tv := range svc.Tasks() {
		if tv.AssignedWorker == nil {
			continue
		}
		cv, err := svc.CompleteTask(ctx, i, "Completed during the demo.")
		if err != nil {
			return err
		}
		body := cv.Message
		if len(cv.Unblocked) > 0 {
			body += "\nUnblocked: " + strings.Join(cv.Unblocked, ", ")
		}
		renderSection(out, "Completion", body)
		renderSection(out, "Organization state after completion", svc.StateReport())
		return nil
	}
	fmt.Fprintln(out, warnStyle.Render("No assigned task to complete."))
	return nil
}

func renderSection(w io.Writer, title, body string) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(body, "\n")))
}

func renderPlan(w io.Writer, pv service.PlanView) {
	var b strings.Builder
	if len(pv.Assignments) == 0 {
		b.WriteString(warnStyle.Render("No assignments were made."))
	}
	for i, a := range pv.Assignments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(workerStyle.Render(a.Worker))
		for _, tv := range a.Tasks {
			fmt.Fprintf(&b, "\n  - %s", tv.Title)
		}
	}
	for _, l := range pv.RaceLosses {
		fmt.Fprintf(&b, "\n%s", warnStyle.Render(fmt.Sprintf("%s stays with %s (proposed for %s)", l.Task, l.HeldBy, l.Worker)))
	}
	for _, s := range pv.Skipped {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render(fmt.Sprintf("skipped %q: %s", s.Line, s.Reason)))
	}
	renderSection(w, "Assignments", b.String())
}
