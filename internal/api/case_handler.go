package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Collector/internal/domain"
)

// GetCase возвращает дело по ID или номеру.
// GET /api/v1/cases/{id}
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.resolveCase(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, CodeCaseNotFound) {
		return
	}

	Success(w, CaseFromDomain(c))
}

// ListCaseSteps возвращает шаги дела в порядке истории.
// GET /api/v1/cases/{id}/steps
func (h *Handler) ListCaseSteps(w http.ResponseWriter, r *http.Request) {
	c, err := h.resolveCase(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, CodeCaseNotFound) {
		return
	}

	steps, err := h.steps.ListByCase(r.Context(), c.ID)
	if HandleError(w, r, err, CodeCaseNotFound) {
		return
	}

	result := make([]StepResponse, len(steps))
	for i := range steps {
		result[i] = StepFromDomain(&steps[i])
	}

	List(w, result, len(result))
}

// CreateCaseStep создаёт шаг дела: этапа каталога или ручной.
// POST /api/v1/cases/{id}/steps
func (h *Handler) CreateCaseStep(w http.ResponseWriter, r *http.Request) {
	var req CreateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}
	if req.Template == "" && req.Label == "" {
		BadRequest(w, r, "template or label is required")
		return
	}

	c, err := h.resolveCase(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, CodeCaseNotFound) {
		return
	}

	at := h.now()
	if req.At != nil {
		at = *req.At
	}

	var step *domain.CaseStep
	if req.Template != "" {
		step, err = h.engine.StartWorkflow(r.Context(), c.ID, req.Template, at)
	} else {
		step, err = h.engine.CreateAdHocStep(r.Context(), c.ID, req.Label, at)
	}
	if HandleError(w, r, err, CodeCaseNotFound) {
		return
	}

	Created(w, StepFromDomain(step))
}

// resolveCase находит дело по UUID или номеру.
func (h *Handler) resolveCase(ctx context.Context, ref string) (*domain.Case, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return h.cases.GetByID(ctx, id)
	}
	return h.cases.GetByReference(ctx, ref)
}
