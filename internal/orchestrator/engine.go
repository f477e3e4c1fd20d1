package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/telemetry"
)

// Engine выполняет flow как DAG.
//
// Алгоритм — классический Кан с FIFO-очередью готовых узлов:
//   - узлы выполняются строго по одному, независимые ветки не параллелятся
//   - первая невосстанавливаемая ошибка или таймаут останавливает run
//   - каждое событие записывается в RunRepository до продолжения
//
// Engine не хранит состояние между run и безопасен для
// одновременного вызова Run из разных горутин.
type Engine struct {
	definitions engine.DefinitionLookup
	executor    NodeExecutor
	repo        RunRepository
	allowCycles bool

	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Definitions — реестр определений узлов (default: registry.NewDefault()).
	Definitions engine.DefinitionLookup

	// Executor — исполнитель узлов. Без него любой узел завершится
	// с NODE_EXECUTOR_NOT_FOUND.
	Executor NodeExecutor

	// Repository — журнал и снимки (default: ничего не хранит).
	Repository RunRepository

	// AllowCycles отключает поиск циклов в валидаторе.
	// Flow с циклом тогда завершится FLOW_SCHEDULING_ERROR.
	AllowCycles bool

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	definitions := cfg.Definitions
	if definitions == nil {
		definitions = registry.NewDefault()
	}

	repo := cfg.Repository
	if repo == nil {
		repo = discardRepository{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		definitions: definitions,
		executor:    cfg.Executor,
		repo:        repo,
		allowCycles: cfg.AllowCycles,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Result — итог выполнения flow.
//
// Run никогда не возвращает error: ошибки — часть результата,
// вызывающий проверяет Status и Error.
type Result struct {
	RunID    string                 `json:"runId"`
	Status   domain.ExecutionStatus `json:"status"`
	Outputs  map[string]any         `json:"outputs"`
	Error    *ExecutionError        `json:"error,omitempty"`
	Metrics  RunMetrics             `json:"metrics"`
	NodeRuns []domain.NodeRun       `json:"nodeRuns"`
}

// RunMetrics — счётчики одного run.
type RunMetrics struct {
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	DurationMs     int64     `json:"durationMs"`
	NodeExecutions int       `json:"nodeExecutions"`
	Retries        int       `json:"retries"`
	TimedOutNodes  int       `json:"timedOutNodes"`
}

// Run выполняет flow со свежим хранилищем чекпоинтов.
func (e *Engine) Run(ctx context.Context, flow *domain.Flow, execCtx domain.ExecutionContext) *Result {
	return e.RunWithCheckpoints(ctx, flow, execCtx, NewCheckpointStore())
}

// RunWithCheckpoints выполняет flow с заданным хранилищем чекпоинтов.
//
// Узел с idempotencyKey, для которого в store уже есть чекпоинт,
// не выполняется: его выходы берутся из чекпоинта. Такое повторное
// использование не увеличивает NodeExecutions.
//
// ctx передаётся исполнителю и репозиторию как есть. Отдельного API
// отмены нет; ctx только прерывает ожидание между повторами.
func (e *Engine) RunWithCheckpoints(ctx context.Context, flow *domain.Flow, execCtx domain.ExecutionContext, store *CheckpointStore) *Result {
	if execCtx.RunID == "" {
		execCtx.RunID = uuid.NewString()
	}
	if execCtx.TraceID == "" {
		execCtx.TraceID = uuid.NewString()
	}
	if store == nil {
		store = NewCheckpointStore()
	}

	logger := telemetry.WithTraceID(telemetry.WithRunID(e.logger, execCtx.RunID), execCtx.TraceID)

	state := &runState{
		runID:       execCtx.RunID,
		traceID:     execCtx.TraceID,
		startedAt:   time.Now().UTC(),
		outputs:     make(map[string]any),
		nodeRuns:    make([]domain.NodeRun, 0),
		checkpoints: store,
		repo:        e.repo,
		metrics:     e.metrics,
		logger:      logger,
	}

	if flow == nil {
		state.emit(ctx, domain.EventRunStarted, "", map[string]any{"traceId": execCtx.TraceID})
		return e.finish(ctx, state, domain.ExecutionStatusValidationError,
			NewExecutionError(CodeFlowValidation, ErrNilFlow.Error(), false))
	}

	state.flowID = flow.ID
	state.logger = telemetry.WithFlowID(logger, flow.ID)

	// 1. RUN_STARTED
	state.emit(ctx, domain.EventRunStarted, "", map[string]any{
		"flowId":    flow.ID,
		"nodeCount": len(flow.Nodes),
		"edgeCount": len(flow.Edges),
		"traceId":   execCtx.TraceID,
	})
	state.logger.Info("run started", "nodes", len(flow.Nodes), "edges", len(flow.Edges))

	// 2. Валидация
	if errs := engine.ValidateFlow(flow, e.definitions, engine.ValidateOptions{AllowCycles: e.allowCycles}); len(errs) > 0 {
		execErr := NewExecutionError(CodeFlowValidation, engine.JoinMessages(errs), false)
		execErr.Details = map[string]any{"errors": errs}
		return e.finish(ctx, state, domain.ExecutionStatusValidationError, execErr)
	}

	// 3. Граф и очередь готовых узлов
	graph := engine.BuildSchedulingGraph(flow)
	inDegree := make(map[string]int, len(graph.IncomingCount))
	for id, n := range graph.IncomingCount {
		inDegree[id] = n
	}
	queue := graph.Roots()
	processed := 0

	// 4. Обход
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]
		node := graph.NodesByID[nodeID]

		if execErr, status := e.processNode(ctx, state, flow, node, execCtx); execErr != nil {
			return e.finish(ctx, state, status, execErr)
		}

		processed++
		for _, dep := range graph.Dependents[nodeID] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// 5. Не все узлы обработаны
	if processed != graph.Size() {
		execErr := NewExecutionError(CodeFlowScheduling,
			fmt.Sprintf("Not all nodes of the DAG could be processed (%d of %d).", processed, graph.Size()), false)
		return e.finish(ctx, state, domain.ExecutionStatusFailed, execErr)
	}

	// 6. Успех
	return e.finish(ctx, state, domain.ExecutionStatusSuccess, nil)
}

// processNode выполняет один узел.
// Возвращает ошибку и статус run, если run нужно остановить.
func (e *Engine) processNode(ctx context.Context, state *runState, flow *domain.Flow, node *domain.FlowNode, execCtx domain.ExecutionContext) (*ExecutionError, domain.ExecutionStatus) {
	logger := telemetry.WithNodeID(state.logger, node.ID)
	startedAt := time.Now().UTC()

	state.emit(ctx, domain.EventNodeStarted, node.ID, map[string]any{
		"nodeType": node.NodeType,
		"label":    node.Label,
	})

	policy := PolicyFromNode(node)

	// Повторное использование чекпоинта
	if policy.IdempotencyKey != "" {
		if cp, ok := state.checkpoints.Get(node.ID); ok {
			state.outputs[node.ID] = cp.Outputs
			state.recordNode(domain.NodeRun{
				NodeID:     node.ID,
				Status:     domain.NodeRunStatusSuccess,
				StartedAt:  startedAt,
				FinishedAt: time.Now().UTC(),
				Outputs:    cp.Outputs,
			})
			state.emit(ctx, domain.EventNodeSucceeded, node.ID, map[string]any{
				"retries":        0,
				"fromCheckpoint": true,
				"idempotencyKey": policy.IdempotencyKey,
			})
			logger.Debug("node outputs reused from checkpoint")
			return nil, ""
		}
	}

	req := NodeRequest{
		Node:            node,
		Context:         execCtx,
		UpstreamOutputs: state.upstreamOutputs(flow, node.ID),
		Policy:          policy,
	}

	// исполнитель логирует с run_id/trace_id/node_id
	attempt := e.executeWithPolicy(telemetry.WithLogger(ctx, logger), req)
	finishedAt := time.Now().UTC()
	state.retries += attempt.retries

	if attempt.err != nil {
		status := domain.NodeRunStatusFailed
		runStatus := domain.ExecutionStatusFailed
		if attempt.timedOut {
			status = domain.NodeRunStatusTimeout
			runStatus = domain.ExecutionStatusTimeout
			state.timedOutNodes++
		}

		state.recordNode(domain.NodeRun{
			NodeID:       node.ID,
			Status:       status,
			StartedAt:    startedAt,
			FinishedAt:   finishedAt,
			Retries:      attempt.retries,
			TimedOut:     attempt.timedOut,
			ErrorCode:    attempt.err.Code,
			ErrorMessage: attempt.err.Message,
		})
		state.emit(ctx, domain.EventNodeFailed, node.ID, map[string]any{
			"code":        attempt.err.Code,
			"message":     attempt.err.Message,
			"recoverable": attempt.err.Recoverable,
			"retries":     attempt.retries,
			"timedOut":    attempt.timedOut,
		})
		e.metrics.NodeFailed(attempt.err.Code, attempt.retries, attempt.timedOut)
		logger.Warn("node failed",
			"code", attempt.err.Code,
			"retries", attempt.retries,
			"timed_out", attempt.timedOut,
			"error", attempt.err.Message,
		)

		return attempt.err, runStatus
	}

	outputs := attempt.outputs
	if outputs == nil {
		outputs = map[string]any{}
	}

	state.nodeExecutions++
	state.outputs[node.ID] = outputs
	state.checkpoints.Save(Checkpoint{
		NodeID:         node.ID,
		Outputs:        outputs,
		ExecutedAt:     finishedAt,
		IdempotencyKey: policy.IdempotencyKey,
	})
	state.recordNode(domain.NodeRun{
		NodeID:     node.ID,
		Status:     domain.NodeRunStatusSuccess,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Retries:    attempt.retries,
		Outputs:    outputs,
	})
	state.emit(ctx, domain.EventNodeSucceeded, node.ID, map[string]any{
		"retries":        attempt.retries,
		"fromCheckpoint": false,
	})
	e.metrics.NodeSucceeded(attempt.retries)
	logger.Debug("node succeeded", "retries", attempt.retries)

	return nil, ""
}

// finish записывает RUN_FINISHED и снимок, собирает Result.
func (e *Engine) finish(ctx context.Context, state *runState, status domain.ExecutionStatus, execErr *ExecutionError) *Result {
	finishedAt := time.Now().UTC()
	duration := finishedAt.Sub(state.startedAt)

	payload := map[string]any{
		"status":     string(status),
		"durationMs": duration.Milliseconds(),
	}
	if execErr != nil {
		payload["errorCode"] = execErr.Code
	}
	state.emit(ctx, domain.EventRunFinished, "", payload)

	// Снимок получает свои копии: Result уходит вызывающему,
	// а репозиторий в памяти хранит снимок как есть.
	snapshot := domain.FlowRun{
		RunID:      state.runID,
		FlowID:     state.flowID,
		TraceID:    state.traceID,
		Status:     status,
		StartedAt:  state.startedAt,
		FinishedAt: finishedAt,
		Outputs:    maps.Clone(state.outputs),
		NodeRuns:   slices.Clone(state.nodeRuns),
	}
	if execErr != nil {
		snapshot.ErrorCode = execErr.Code
		snapshot.ErrorMessage = execErr.Message
	}

	if err := e.repo.SaveRunSnapshot(ctx, snapshot); err != nil {
		e.metrics.RepositoryError("save_snapshot")
		state.logger.Error("failed to save run snapshot", "error", err)
	}

	e.metrics.RunFinished(string(status), duration)

	logArgs := []any{"status", status, "duration_ms", duration.Milliseconds(), "node_executions", state.nodeExecutions}
	if execErr != nil {
		logArgs = append(logArgs, "error_code", execErr.Code, "error", execErr.Message)
	}
	state.logger.Info("run finished", logArgs...)

	return &Result{
		RunID:    state.runID,
		Status:   status,
		Outputs:  state.outputs,
		Error:    execErr,
		NodeRuns: state.nodeRuns,
		Metrics: RunMetrics{
			StartedAt:      state.startedAt,
			FinishedAt:     finishedAt,
			DurationMs:     duration.Milliseconds(),
			NodeExecutions: state.nodeExecutions,
			Retries:        state.retries,
			TimedOutNodes:  state.timedOutNodes,
		},
	}
}
