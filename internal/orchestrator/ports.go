package orchestrator

import (
	"context"

	"github.com/shaiso/flowgen/internal/domain"
)

// NodeRequest — запрос на выполнение одного узла.
type NodeRequest struct {
	Node    *domain.FlowNode
	Context domain.ExecutionContext

	// UpstreamOutputs — выходы источников входящих рёбер (nodeID → output).
	UpstreamOutputs map[string]any

	Policy Policy
}

// NodeOutcome — результат выполнения узла.
type NodeOutcome struct {
	Outputs map[string]any
}

// NodeExecutor выполняет узлы flow.
//
// Execute может вернуть *ExecutionError или любую ошибку с методом
// ErrorCode(): код и признак Recoverable сохранятся. Остальные ошибки
// считаются невосстанавливаемыми NODE_EXECUTION_ERROR.
type NodeExecutor interface {
	// CanExecute возвращает false, если узел выполнить нечем.
	// Движок тогда сразу завершает run с NODE_EXECUTOR_NOT_FOUND.
	CanExecute(node *domain.FlowNode) bool

	Execute(ctx context.Context, req NodeRequest) (*NodeOutcome, error)
}

// NodeExecutorFunc — адаптер функции к NodeExecutor, выполняющий любой узел.
type NodeExecutorFunc func(ctx context.Context, req NodeRequest) (*NodeOutcome, error)

// CanExecute всегда возвращает true.
func (f NodeExecutorFunc) CanExecute(*domain.FlowNode) bool { return true }

// Execute вызывает f.
func (f NodeExecutorFunc) Execute(ctx context.Context, req NodeRequest) (*NodeOutcome, error) {
	return f(ctx, req)
}

// RunRepository — журнал событий и снимки run.
//
// Движок дожидается каждой записи события перед продолжением,
// поэтому порядок внутри run гарантирован. Блокировки между
// разными run — ответственность реализации.
type RunRepository interface {
	AppendEvent(ctx context.Context, event domain.ExecutionEvent) error
	SaveRunSnapshot(ctx context.Context, run domain.FlowRun) error

	// EventsByRunID возвращает события, отсортированные по Sequence.
	EventsByRunID(ctx context.Context, runID string) ([]domain.ExecutionEvent, error)

	// RunSnapshot возвращает снимок или ошибку "не найдено" реализации.
	RunSnapshot(ctx context.Context, runID string) (*domain.FlowRun, error)

	ListRunIDs(ctx context.Context) ([]string, error)
}

// discardRepository — RunRepository, который ничего не хранит.
type discardRepository struct{}

func (discardRepository) AppendEvent(context.Context, domain.ExecutionEvent) error { return nil }
func (discardRepository) SaveRunSnapshot(context.Context, domain.FlowRun) error    { return nil }
func (discardRepository) EventsByRunID(context.Context, string) ([]domain.ExecutionEvent, error) {
	return nil, nil
}
func (discardRepository) RunSnapshot(context.Context, string) (*domain.FlowRun, error) {
	return nil, nil
}
func (discardRepository) ListRunIDs(context.Context) ([]string, error) { return nil, nil }
