package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/orchestrator"
)

// EventPublisher — то, что нужно EventFanout от брокера.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.ExecutionEvent) error
}

// EventFanout — RunRepository, который после записи события
// в основное хранилище публикует его в flowgen.events.
//
// Ошибка публикации только логируется: журнал в хранилище
// остаётся источником истины, брокер — best effort.
type EventFanout struct {
	orchestrator.RunRepository

	publisher EventPublisher
	logger    *slog.Logger
}

var _ orchestrator.RunRepository = (*EventFanout)(nil)

// NewEventFanout оборачивает repo.
func NewEventFanout(repo orchestrator.RunRepository, publisher EventPublisher, logger *slog.Logger) *EventFanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventFanout{
		RunRepository: repo,
		publisher:     publisher,
		logger:        logger,
	}
}

// AppendEvent сохраняет событие и публикует его.
// Если хранилище отказало, событие не публикуется.
func (f *EventFanout) AppendEvent(ctx context.Context, event domain.ExecutionEvent) error {
	if err := f.RunRepository.AppendEvent(ctx, event); err != nil {
		return err
	}

	if err := f.publisher.PublishEvent(ctx, event); err != nil {
		f.logger.Warn("event fan-out failed",
			"run_id", event.RunID,
			"sequence", event.Sequence,
			"type", event.Type,
			"error", err,
		)
	}
	return nil
}
