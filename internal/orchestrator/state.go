package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/telemetry"
)

// runState — состояние одного run в памяти.
//
// Создаётся в начале Run и отбрасывается в конце; наружу уходит
// только то, что записано через RunRepository. Доступ из одной
// горутины, поэтому без мьютекса.
type runState struct {
	runID   string
	flowID  string
	traceID string

	startedAt time.Time

	// sequence — номер последнего записанного события.
	sequence int

	outputs     map[string]any
	nodeRuns    []domain.NodeRun
	checkpoints *CheckpointStore

	nodeExecutions int
	retries        int
	timedOutNodes  int

	repo    RunRepository
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// emit записывает событие с очередным номером.
//
// Ошибка записи не прерывает run: результат выполнения важнее
// журнала. Она логируется и учитывается в метриках.
func (s *runState) emit(ctx context.Context, eventType domain.EventType, nodeID string, payload map[string]any) {
	s.sequence++
	event := domain.ExecutionEvent{
		RunID:      s.runID,
		Sequence:   s.sequence,
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		NodeID:     nodeID,
		Payload:    payload,
	}

	if err := s.repo.AppendEvent(ctx, event); err != nil {
		s.metrics.RepositoryError("append_event")
		s.logger.Error("failed to append event",
			"event_type", eventType,
			"sequence", event.Sequence,
			"error", err,
		)
	}
}

// recordNode добавляет запись NodeRun.
func (s *runState) recordNode(nr domain.NodeRun) {
	s.nodeRuns = append(s.nodeRuns, nr)
}

// upstreamOutputs собирает выходы источников входящих рёбер.
// Если источник ещё не выполнен, значение nil.
func (s *runState) upstreamOutputs(flow *domain.Flow, nodeID string) map[string]any {
	upstream := make(map[string]any)
	for _, edge := range flow.Edges {
		if edge.TargetNodeID != nodeID {
			continue
		}
		if out, ok := s.outputs[edge.SourceNodeID]; ok {
			upstream[edge.SourceNodeID] = out
		} else {
			upstream[edge.SourceNodeID] = nil
		}
	}
	return upstream
}
