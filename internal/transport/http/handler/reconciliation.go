package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-shop-api/internal/application/reconcile"
)

// SchedulerControl is the operational surface the handler needs from the
// reconciliation scheduler.
type SchedulerControl interface {
	Start()
	Stop()
	Status() reconcile.Status
	SetInterval(d time.Duration) error
	RunOnce(ctx context.Context) ([]reconcile.Outcome, error)
}

type SetIntervalRequest struct {
	Interval string `json:"interval" validate:"required"` // Go duration string, e.g. "2m"
}

type StatusEnvelope struct {
	Running  bool   `json:"running"`
	Interval string `json:"interval"`
	LastRun  string `json:"last_run,omitempty"`
	NextRun  string `json:"next_run,omitempty"`
}

type PassEnvelope struct {
	Outcomes []reconcile.Outcome `json:"outcomes"`
}

// ReconciliationHandler exposes the scheduler's operational control surface.
type ReconciliationHandler struct {
	sched SchedulerControl
}

func NewReconciliationHandler(sched SchedulerControl) *ReconciliationHandler {
	return &ReconciliationHandler{sched: sched}
}

func (h *ReconciliationHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "start":
		h.sched.Start()
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "scheduler started"})
	case "stop":
		h.sched.Stop()
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "scheduler stopped"})
	case "run":
		outcomes, err := h.sched.RunOnce(r.Context())
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PassEnvelope{Outcomes: outcomes})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *ReconciliationHandler) Status(w http.ResponseWriter, _ *http.Request) {
	st := h.sched.Status()
	env := StatusEnvelope{
		Running:  st.Running,
		Interval: st.Interval.String(),
	}
	if !st.LastRun.IsZero() {
		env.LastRun = st.LastRun.Format(time.RFC3339)
	}
	if !st.NextRun.IsZero() {
		env.NextRun = st.NextRun.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *ReconciliationHandler) SetInterval(w http.ResponseWriter, r *http.Request) {
	var req SetIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := time.ParseDuration(req.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid interval duration")
		return
	}
	if err := h.sched.SetInterval(d); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "interval updated"})
}
