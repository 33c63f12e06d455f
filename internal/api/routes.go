package api

import (
	"net/http"
)

// RegisterRoutes регистрирует маршруты API. Каждый обработчик
// оборачивается в RequestID, Logging и Recovery.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, wrap(fn, RequestID, Logging(h.logger), Recovery(h.logger)))
	}

	// Cases
	handle("GET /api/v1/cases/{id}", h.GetCase)
	handle("GET /api/v1/cases/{id}/steps", h.ListCaseSteps)
	handle("POST /api/v1/cases/{id}/steps", h.CreateCaseStep)

	// Steps
	handle("GET /api/v1/steps/{id}", h.GetStep)
	handle("POST /api/v1/steps/{id}/perform", h.PerformStep)
	handle("POST /api/v1/steps/{id}/schedule-next", h.ScheduleNext)

	// Catalog & calendar
	handle("GET /api/v1/templates", h.ListTemplates)
	handle("GET /api/v1/calendar/adjust", h.AdjustTime)
}
