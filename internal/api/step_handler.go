package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/engine"
)

// GetStep возвращает шаг по ID.
// GET /api/v1/steps/{id}
func (h *Handler) GetStep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid step id")
		return
	}

	step, err := h.steps.GetByID(r.Context(), id)
	if HandleError(w, r, err, CodeStepNotFound) {
		return
	}

	Success(w, StepFromDomain(step))
}

// PerformStep выполняет шаг. Без force=true шаг, время которого
// не наступило, не выполняется (outcome not_due).
// POST /api/v1/steps/{id}/perform?force=true
func (h *Handler) PerformStep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid step id")
		return
	}

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			BadRequest(w, r, "invalid force flag")
			return
		}
	}

	var report *engine.Report
	if force {
		report, err = h.engine.Perform(r.Context(), id)
	} else {
		report, err = h.engine.PerformIfDue(r.Context(), id)
	}
	if HandleError(w, r, err, CodeStepNotFound) {
		return
	}

	Success(w, report)
}

// ScheduleNext создаёт недостающих преемников шага.
// POST /api/v1/steps/{id}/schedule-next
func (h *Handler) ScheduleNext(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid step id")
		return
	}

	created, err := h.engine.ScheduleNext(r.Context(), id)
	if HandleError(w, r, err, CodeStepNotFound) {
		return
	}
	if created == nil {
		created = []uuid.UUID{}
	}

	Success(w, ScheduleNextResponse{Created: created})
}
