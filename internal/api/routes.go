package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(h.metrics),
		Logging(h.logger),
	)

	mux.HandleFunc("GET /healthz", h.Healthz)
	if h.metricsHandler != nil {
		mux.Handle("GET /metrics", h.metricsHandler)
	}

	// Definitions
	mux.Handle("GET /api/v1/definitions", chain(http.HandlerFunc(h.ListDefinitions)))

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("POST /api/v1/flows/import", chain(http.HandlerFunc(h.ImportFlow)))
	mux.Handle("POST /api/v1/flows/validate", chain(http.HandlerFunc(h.ValidateFlow)))
	mux.Handle("POST /api/v1/flows/migrate", chain(http.HandlerFunc(h.MigrateFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))
	mux.Handle("GET /api/v1/flows/{id}/export", chain(http.HandlerFunc(h.ExportFlow)))
	mux.Handle("POST /api/v1/flows/{id}/validate", chain(http.HandlerFunc(h.ValidateStoredFlow)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/flows/{id}/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/events", chain(http.HandlerFunc(h.ListRunEvents)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/flows/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
