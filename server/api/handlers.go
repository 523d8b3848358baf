// Package api implements the REST handlers of the conductor server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GoCodeAlone/conductor/conductor"
	"github.com/GoCodeAlone/conductor/events"
	"github.com/GoCodeAlone/conductor/journal"
	"github.com/GoCodeAlone/conductor/org"
	"github.com/GoCodeAlone/conductor/service"
)

const defaultJournalLimit = 50

// EventLister reads persisted lifecycle events.
type EventLister interface {
	List(ctx context.Context, filter journal.Filter) ([]*events.Event, error)
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Service *service.Service
	Journal EventLister // optional; falls back to Bus history
	Bus     events.Bus  // optional
	Logger  *slog.Logger
	Version string
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/organization", h.organization)
	mux.HandleFunc("GET /api/organization/state", h.organizationState)

	mux.HandleFunc("GET /api/workers", h.listWorkers)
	mux.HandleFunc("POST /api/workers", h.createWorker)
	mux.HandleFunc("GET /api/workers/{id}", h.getWorker)

	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("POST /api/tasks/assign", h.planRound)
	mux.HandleFunc("POST /api/tasks/new-assign", h.createAndPlan)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("POST /api/tasks/{id}/assign", h.assignTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.completeTask)
	mux.HandleFunc("GET /api/completed-tasks", h.completedTasks)

	mux.HandleFunc("GET /api/journal", h.listJournal)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, org.ErrTaskNotFound),
		errors.Is(err, org.ErrWorkerNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, conductor.ErrTaskUnassigned),
		errors.Is(err, conductor.ErrTaskBlocked),
		errors.Is(err, org.ErrTaskCompleted):
		return http.StatusBadRequest
	case errors.Is(err, conductor.ErrNoWorkers):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger().Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeError(w, status, err.Error())
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// pathIndex parses the {id} path segment as a list position.
func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer index")
		return 0, false
	}
	return n, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// --- Organization handlers ---

func (h *Handlers) organization(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Organization())
}

func (h *Handlers) organizationState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"organization_state": h.Service.StateReport()})
}

// --- Worker handlers ---

func (h *Handlers) listWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Workers())
}

func (h *Handlers) createWorker(w http.ResponseWriter, r *http.Request) {
	var req service.CreateWorkerRequest
	if !decode(w, r, &req) {
		return
	}
	wv, err := h.Service.CreateWorker(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wv)
}

func (h *Handlers) getWorker(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	wv, err := h.Service.Worker(idx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wv)
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Tasks())
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if !decode(w, r, &req) {
		return
	}
	tv, err := h.Service.CreateTask(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tv)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	tv, err := h.Service.Task(idx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tv)
}

func (h *Handlers) completedTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.CompletedTasks())
}

func (h *Handlers) planRound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.PlanRound(r.Context()))
}

func (h *Handlers) assignTask(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req struct {
		WorkerName string `json:"worker_name"`
	}
	if !decode(w, r, &req) {
		return
	}
	wv, err := h.Service.AssignTask(r.Context(), idx, req.WorkerName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wv)
}

func (h *Handlers) createAndPlan(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if !decode(w, r, &req) {
		return
	}
	tv, wv, err := h.Service.CreateAndPlan(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": tv, "worker": wv})
}

func (h *Handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cv, err := h.Service.CompleteTask(r.Context(), idx, req.Feedback)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cv)
}

// --- Journal handlers ---

func (h *Handlers) listJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := journal.Filter{
		Type:   events.Type(q.Get("type")),
		TaskID: q.Get("task_id"),
		Worker: q.Get("worker"),
		Limit:  defaultJournalLimit,
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}

	var (
		evs []*events.Event
		err error
	)
	switch {
	case h.Journal != nil:
		evs, err = h.Journal.List(r.Context(), filter)
	case h.Bus != nil:
		evs = h.Bus.History(filter.Limit)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if evs == nil {
		evs = []*events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      h.Version,
		"organization": h.Service.Name(),
	})
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
