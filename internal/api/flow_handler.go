package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/repo"
)

// maxDocumentSize — предел тела с документом flow.
const maxDocumentSize = 4 << 20

// ListFlows возвращает список flow.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]FlowSummary, len(flows))
	for i, f := range flows {
		result[i] = FlowSummaryFromDomain(f)
	}

	List(w, result, len(result))
}

// CreateFlow сохраняет новый flow. Тело — документ JSON или YAML
// любой поддерживаемой версии схемы.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	parsed, ok := h.parseBody(w, r)
	if !ok {
		return
	}

	_, err := h.flows.Get(r.Context(), parsed.Flow.ID)
	switch {
	case err == nil:
		Conflict(w, fmt.Sprintf("flow %s already exists", parsed.Flow.ID))
		return
	case !errors.Is(err, repo.ErrNotFound):
		InternalError(w, h.logger, err)
		return
	}

	if err := h.flows.Save(r.Context(), parsed.Flow); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, h.flowResponse(parsed.Flow, &parsed.Migration))
}

// ImportFlow сохраняет flow, заменяя существующий с тем же ID.
// POST /api/v1/flows/import
func (h *Handler) ImportFlow(w http.ResponseWriter, r *http.Request) {
	parsed, ok := h.parseBody(w, r)
	if !ok {
		return
	}

	if err := h.flows.Save(r.Context(), parsed.Flow); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("flow imported",
		"flow_id", parsed.Flow.ID,
		"migrations", parsed.Migration.Applied,
	)
	Success(w, h.flowResponse(parsed.Flow, &parsed.Migration))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, h.flowResponse(flow, nil))
}

// UpdateFlow заменяет flow. ID в документе должен совпадать с путём.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	parsed, ok := h.parseBody(w, r)
	if !ok {
		return
	}
	if parsed.Flow.ID != id {
		BadRequest(w, fmt.Sprintf("flow id %q does not match path id %q", parsed.Flow.ID, id))
		return
	}

	_, err := h.flows.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	if err := h.flows.Save(r.Context(), parsed.Flow); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, h.flowResponse(parsed.Flow, &parsed.Migration))
}

// DeleteFlow удаляет flow.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	if err := h.flows.Delete(r.Context(), r.PathValue("id")); HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	NoContent(w)
}

// ExportFlow отдаёт flow документом JSON или YAML.
// GET /api/v1/flows/{id}/export?format=json|yaml
func (h *Handler) ExportFlow(w http.ResponseWriter, r *http.Request) {
	format, err := engine.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	body, err := engine.MarshalFlow(flow, format)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	contentType := "application/json"
	if format == engine.FormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", flow.ID+"."+string(format)))
	Raw(w, contentType, body)
}

// ValidateStoredFlow проверяет сохранённый flow.
// POST /api/v1/flows/{id}/validate
func (h *Handler) ValidateStoredFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, h.validate(flow))
}

// ValidateFlow проверяет документ из тела, ничего не сохраняя.
// Ошибка схемы — 422, структурные ошибки — 200 с valid=false.
// POST /api/v1/flows/validate
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	parsed, ok := h.parseBody(w, r)
	if !ok {
		return
	}

	Success(w, h.validate(parsed.Flow))
}

// MigrateFlow прогоняет документ через миграции и возвращает результат.
// Схема не проверяется: клиент видит, что получилось, даже если
// документ так и не стал текущей версии.
// POST /api/v1/flows/migrate
func (h *Handler) MigrateFlow(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}

	doc, report, err := engine.MigrateDocument(data, engine.DefaultPipeline())
	if err != nil {
		InvalidFlow(w, err.Error(), nil)
		return
	}

	Success(w, MigrateResponse{Document: doc, Migration: MigrationFromReport(report)})
}

func (h *Handler) parseBody(w http.ResponseWriter, r *http.Request) (*engine.ParseResult, bool) {
	data, ok := readBody(w, r)
	if !ok {
		return nil, false
	}

	parsed, err := engine.ParseFlow(data, h.definitions)
	if err != nil {
		InvalidFlow(w, err.Error(), nil)
		return nil, false
	}
	return parsed, true
}

func (h *Handler) validate(flow *domain.Flow) ValidateResponse {
	errs := engine.ValidateFlow(flow, h.definitions, engine.ValidateOptions{})
	if errs == nil {
		errs = []engine.ValidationError{}
	}
	return ValidateResponse{Valid: len(errs) == 0, Errors: errs}
}

func (h *Handler) flowResponse(flow *domain.Flow, report *engine.MigrationReport) FlowResponse {
	v := h.validate(flow)
	resp := FlowResponse{Flow: *flow, Valid: v.Valid, Validation: v.Errors}
	if report != nil {
		resp.Migration = MigrationFromReport(*report)
	}
	return resp
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return nil, false
	}
	if len(data) == 0 {
		BadRequest(w, "request body is empty")
		return nil, false
	}
	return data, true
}
