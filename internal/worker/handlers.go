package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/mq"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/telemetry"
)

// handleRunRequested обрабатывает сообщение из runs.pending.
func (w *Worker) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrDrop, err)
	}

	_, err = w.ProcessRequest(ctx, payload.RequestID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRequestNotPending):
		// уже подобрал poll или другой воркер
		w.logger.Debug("request already taken", "request_id", payload.RequestID)
		return nil
	case errors.Is(err, ErrRequestNotFound):
		return fmt.Errorf("%w: %v", mq.ErrDrop, err)
	default:
		return err
	}
}

// ProcessRequest выполняет одну заявку.
//
// Заявка переводится PENDING → RUNNING → DONE. Если flow не найден
// или не разобрался, движок не запускается, а в хранилище run пишется
// снимок со статусом validation_error. Ошибка возвращается только
// когда заявку не удалось взять или закрыть.
func (w *Worker) ProcessRequest(ctx context.Context, requestID string) (*orchestrator.Result, error) {
	req, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req.Status != domain.RequestStatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrRequestNotPending, req.ID, req.Status)
	}

	if err := w.requests.MarkRunning(ctx, req); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotPending, req.ID)
		}
		return nil, fmt.Errorf("mark request running: %w", err)
	}

	logger := telemetry.WithFlowID(telemetry.WithRunID(w.logger, req.ID), req.FlowID)
	logger.Info("run request started", "schedule_id", req.ScheduleID)

	var result *orchestrator.Result
	flow, err := w.loadFlow(ctx, req.FlowID)
	if err != nil {
		logger.Warn("run request rejected", "error", err)
		result = w.reject(ctx, req, err)
	} else {
		result = w.engine.Run(ctx, flow, req.ExecutionContext())
	}

	if err := w.requests.MarkDone(ctx, req); err != nil {
		return result, fmt.Errorf("mark request done: %w", err)
	}

	w.metrics.RequestHandled(string(result.Status))
	logger.Info("run request done",
		"status", result.Status,
		"duration_ms", result.Metrics.DurationMs,
	)
	return result, nil
}

// loadFlow загружает flow и прогоняет его через миграции и проверку схемы.
func (w *Worker) loadFlow(ctx context.Context, flowID string) (*domain.Flow, error) {
	stored, err := w.flows.Get(ctx, flowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
		}
		return nil, fmt.Errorf("get flow: %w", err)
	}

	parsed, err := engine.ReparseFlow(stored, w.definitions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFlowInvalid, err)
	}
	if len(parsed.Migration.Applied) > 0 {
		w.logger.Info("flow migrated before run",
			"flow_id", flowID,
			"from", parsed.Migration.From,
			"to", parsed.Migration.To,
		)
	}
	return parsed.Flow, nil
}

// reject сохраняет снимок run, до движка не дошедшего.
func (w *Worker) reject(ctx context.Context, req *domain.RunRequest, cause error) *orchestrator.Result {
	now := time.Now().UTC()
	execErr := orchestrator.NewExecutionError(orchestrator.CodeFlowValidation, cause.Error(), false)
	execErr.Err = cause

	result := &orchestrator.Result{
		RunID:    req.ID,
		Status:   domain.ExecutionStatusValidationError,
		Outputs:  map[string]any{},
		Error:    execErr,
		Metrics:  orchestrator.RunMetrics{StartedAt: now, FinishedAt: now},
		NodeRuns: []domain.NodeRun{},
	}

	if w.runs == nil {
		return result
	}
	snapshot := domain.FlowRun{
		RunID:        req.ID,
		FlowID:       req.FlowID,
		TraceID:      req.TraceID,
		Status:       result.Status,
		StartedAt:    now,
		FinishedAt:   now,
		Outputs:      result.Outputs,
		NodeRuns:     result.NodeRuns,
		ErrorCode:    execErr.Code,
		ErrorMessage: execErr.Message,
	}
	if err := w.runs.SaveRunSnapshot(ctx, snapshot); err != nil {
		w.logger.Error("failed to save rejected run snapshot", "run_id", req.ID, "error", err)
	}
	return result
}
