package api

import (
	"net/http"
	"time"
)

// ListTemplates возвращает этапы каталога в порядке объявления.
// GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	all := h.templates.All()

	result := make([]TemplateResponse, len(all))
	for i, t := range all {
		result[i] = TemplateFromDomain(t)
	}

	List(w, result, len(result))
}

// AdjustTime сдвигает время на ближайший рабочий день.
// GET /api/v1/calendar/adjust?t=2024-12-25T10:00:00Z
func (h *Handler) AdjustTime(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		BadRequest(w, r, "query parameter t is required")
		return
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		BadRequest(w, r, "t must be RFC3339")
		return
	}

	Success(w, AdjustResponse{
		Input:       t,
		Adjusted:    h.calendar.Adjust(t),
		BusinessDay: h.calendar.IsBusinessDay(t),
		Holiday:     h.calendar.HolidayName(t),
	})
}
