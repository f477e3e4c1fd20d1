package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/repo"
)

// ListRuns возвращает ID run, новые первыми.
// GET /api/v1/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := h.runs.ListRunIDs(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if ids == nil {
		ids = []string{}
	}

	List(w, ids, len(ids))
}

// CreateRun запускает flow.
//
//	mode=queued (по умолчанию) — заявка, 202; при повторе idempotencyKey
//	                             возвращается существующая заявка, 200
//	mode=inline                — движок в процессе API, 200 с Result
//
// POST /api/v1/flows/{id}/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	flowID := r.PathValue("id")

	var req CreateRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	flow, err := h.flows.Get(r.Context(), flowID)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	switch req.Mode {
	case RunModeInline:
		h.runInline(w, r, flow, req)
	case RunModeQueued, "":
		h.enqueueRun(w, r, flow, req)
	default:
		BadRequest(w, "mode must be queued or inline")
	}
}

func (h *Handler) runInline(w http.ResponseWriter, r *http.Request, flow *domain.Flow, req CreateRunRequest) {
	if h.engine == nil {
		InvalidState(w, "inline runs are not enabled on this server")
		return
	}

	parsed, err := engine.ReparseFlow(flow, h.definitions)
	if err != nil {
		InvalidFlow(w, err.Error(), nil)
		return
	}

	execCtx := domain.ExecutionContext{
		TraceID:          req.TraceID,
		Input:            req.Input,
		Variables:        req.Variables,
		SecretReferences: req.SecretReferences,
	}

	result := h.engine.Run(r.Context(), parsed.Flow, execCtx)
	h.logger.Info("inline run finished",
		"flow_id", flow.ID,
		"run_id", result.RunID,
		"status", result.Status,
	)

	Success(w, result)
}

func (h *Handler) enqueueRun(w http.ResponseWriter, r *http.Request, flow *domain.Flow, req CreateRunRequest) {
	ctx := r.Context()

	if req.IdempotencyKey != "" {
		existing, err := h.requests.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			Success(w, RunResponse{RunID: existing.ID, Request: existing})
			return
		}
		if !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, h.logger, err)
			return
		}
	}

	runReq := domain.NewRunRequest(flow.ID, req.Input)
	runReq.Variables = req.Variables
	runReq.SecretReferences = req.SecretReferences
	runReq.IdempotencyKey = req.IdempotencyKey
	if req.TraceID != "" {
		runReq.TraceID = req.TraceID
	}

	if err := h.requests.Create(ctx, runReq); HandleRepoError(w, h.logger, err, "") {
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRunRequested(ctx, runReq); err != nil {
			h.logger.Warn("failed to publish run request", "request_id", runReq.ID, "error", err)
		}
	}

	Accepted(w, RunResponse{RunID: runReq.ID, Request: runReq})
}

// GetRun возвращает снимок run или, пока его нет, заявку.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp := RunResponse{RunID: id}

	run, err := h.runs.RunSnapshot(r.Context(), id)
	switch {
	case err == nil:
		resp.Run = run
	case !errors.Is(err, repo.ErrNotFound):
		InternalError(w, h.logger, err)
		return
	}

	if h.requests != nil {
		req, err := h.requests.GetByID(r.Context(), id)
		switch {
		case err == nil:
			resp.Request = req
		case !errors.Is(err, repo.ErrNotFound):
			InternalError(w, h.logger, err)
			return
		}
	}

	if resp.Run == nil && resp.Request == nil {
		NotFound(w, "run not found")
		return
	}

	Success(w, resp)
}

// ListRunEvents возвращает журнал run по возрастанию sequence.
// GET /api/v1/runs/{id}/events
func (h *Handler) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.runs.EventsByRunID(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if len(events) == 0 {
		NotFound(w, "run not found")
		return
	}

	List(w, events, len(events))
}
