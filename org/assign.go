package org

import (
	"log/slog"

	"github.com/GoCodeAlone/conductor/task"
	"github.com/GoCodeAlone/conductor/worker"
)

// skillBoost multiplies the score of a worker sharing a required skill.
const skillBoost = 1.5

// Assign gives t to w and recomputes the task status.
//
// Callers planning in batches must check t is unassigned first. If t is held
// by a different worker it is released from that worker before reassignment;
// assigning to the current holder is a no-op.
func (o *Organization) Assign(t *task.Task, w *worker.Worker) {
	if t.AssignedTo == w.ID {
		return
	}
	if prev, ok := o.AssigneeOf(t); ok {
		prev.Release(t.ID)
		t.ClearAssignee()
		o.logger.Info("released task for reassignment",
			slog.String("task", t.Title),
			slog.String("from", prev.Name),
		)
	}
	w.Assign(t, o.now())
	t.UpdateStatus(o.LookupTask)
}

// AutoAssign picks a worker for t with the deterministic heuristic
//
//	score = 1/(1+workload) × urgency × boost
//
// and assigns it. The strictly greatest score wins, so the earliest
// registered worker wins ties. Without workers nothing happens and ok is false.
func (o *Organization) AutoAssign(t *task.Task) (*worker.Worker, bool) {
	best := o.bestCandidate(t)
	if best == nil {
		o.logger.Info("could not auto-assign task, no suitable worker", slog.String("task", t.Title))
		return nil, false
	}
	o.Assign(t, best)
	o.logger.Info("auto-assigned task", slog.String("task", t.Title), slog.String("worker", best.Name))
	return best, true
}

// Score returns the auto-assignment score of w for t at the organization's
// current time.
func (o *Organization) Score(t *task.Task, w *worker.Worker) float64 {
	boost := 1.0
	if w.SharesSkill(t.RequiredSkills) {
		boost = skillBoost
	}
	return (1.0 / (1.0 + o.Workload(w))) * t.UrgencyScore(o.now()) * boost
}

func (o *Organization) bestCandidate(t *task.Task) *worker.Worker {
	var (
		best      *worker.Worker
		bestScore = -1.0
	)
	for _, w := range o.Workers() {
		if score := o.Score(t, w); score > bestScore {
			best, bestScore = w, score
		}
	}
	return best
}
