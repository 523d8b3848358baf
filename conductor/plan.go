package conductor

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// AssignmentsMarker introduces the structured section of a planning response.
const AssignmentsMarker = "ASSIGNMENTS:"

// PlanEntry is one worker's share of a parsed plan. Tasks holds 1-based task
// numbers in the order the response listed them.
type PlanEntry struct {
	Worker string
	Tasks  []int
}

// Skip records a line or reference the parser could not use.
type Skip struct {
	Line   string `json:"line"`
	Ref    string `json:"ref,omitempty"`
	Reason string `json:"reason"`
}

// Plan is a parsed planning response. It has been validated against the
// worker names and task count it was parsed with, nothing more.
type Plan struct {
	Entries []PlanEntry
	Skipped []Skip
}

// Pairs returns the number of (worker, task) pairs in the plan.
func (p Plan) Pairs() int {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Tasks)
	}
	return n
}

// Skip reasons.
const (
	ReasonNoMarker      = "no " + AssignmentsMarker + " section"
	ReasonNoSeparator   = "no worker separator"
	ReasonUnknownWorker = "unknown worker"
	ReasonNotTaskRef    = "not a task reference"
	ReasonNotNumber     = "task number is not an integer"
	ReasonOutOfRange    = "task number out of range"
	ReasonNoTasks       = "no valid task references"
)

// ParsePlan extracts assignments from a planning response.
//
// Only the text after the first AssignmentsMarker (up to a second one, if
// any) is read. Each line of the form "Name: Task 1, task #2" names a worker
// exactly as registered; references are matched case-insensitively, may carry
// a '#', and must number a task in [1, taskCount]. Unusable lines and
// references are skipped and reported, never fatal. Lines repeating a worker
// are merged in order.
func ParsePlan(text string, taskCount int, workerNames []string) Plan {
	var p Plan
	parts := strings.Split(text, AssignmentsMarker)
	if len(parts) < 2 {
		p.Skipped = append(p.Skipped, Skip{Reason: ReasonNoMarker})
		return p
	}

	fold := cases.Fold()
	section := strings.TrimSpace(parts[1])
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, refs, ok := strings.Cut(line, ":")
		if !ok {
			p.Skipped = append(p.Skipped, Skip{Line: line, Reason: ReasonNoSeparator})
			continue
		}
		name = strings.TrimSpace(name)
		if !slices.Contains(workerNames, name) {
			p.Skipped = append(p.Skipped, Skip{Line: line, Reason: ReasonUnknownWorker})
			continue
		}

		var nums []int
		for _, ref := range strings.Split(refs, ",") {
			ref = strings.TrimSpace(ref)
			n, reason := parseTaskRef(fold.String(ref), taskCount)
			if reason != "" {
				p.Skipped = append(p.Skipped, Skip{Line: line, Ref: ref, Reason: reason})
				continue
			}
			nums = append(nums, n)
		}
		if len(nums) == 0 {
			p.Skipped = append(p.Skipped, Skip{Line: line, Reason: ReasonNoTasks})
			continue
		}
		p.add(name, nums)
	}
	return p
}

func (p *Plan) add(name string, nums []int) {
	for i := range p.Entries {
		if p.Entries[i].Worker == name {
			p.Entries[i].Tasks = append(p.Entries[i].Tasks, nums...)
			return
		}
	}
	p.Entries = append(p.Entries, PlanEntry{Worker: name, Tasks: nums})
}

// parseTaskRef resolves a case-folded reference such as "task #3". It returns
// a non-empty reason when the reference is unusable.
func parseTaskRef(folded string, taskCount int) (int, string) {
	if !strings.Contains(folded, "task") {
		return 0, ReasonNotTaskRef
	}
	cleaned := strings.ReplaceAll(folded, "task", "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "#", ""))
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, ReasonNotNumber
	}
	if n < 1 || n > taskCount {
		return 0, ReasonOutOfRange
	}
	return n, ""
}
