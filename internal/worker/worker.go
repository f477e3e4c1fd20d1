package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/mq"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/telemetry"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 1
)

// Worker выполняет заявки на запуск flow.
//
// Заявки приходят из очереди runs.pending; независимо от брокера
// Worker периодически опрашивает RequestStore и подбирает PENDING-заявки,
// созданные пока он был выключен или без брокера вовсе.
//
// Несколько экземпляров могут работать одновременно: заявку получает
// тот, чей MarkRunning прошёл первым.
type Worker struct {
	requests    repo.RequestStore
	flows       repo.FlowStore
	runs        orchestrator.RunRepository
	engine      *orchestrator.Engine
	definitions engine.DefinitionLookup

	conn     *mq.Connection
	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	metrics    *telemetry.Metrics
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Requests repo.RequestStore
	Flows    repo.FlowStore

	// Runs — хранилище журнала. Сюда же пишется снимок для заявок,
	// до движка не дошедших (flow не найден или не разобрался).
	Runs orchestrator.RunRepository

	// Engine — движок с настроенными исполнителем и репозиторием.
	Engine *orchestrator.Engine

	// Definitions — реестр для разбора flow (default: registry.NewDefault()).
	Definitions engine.DefinitionLookup

	// Conn — соединение с RabbitMQ. nil — только polling.
	Conn *mq.Connection

	PollInterval time.Duration // default: 10s
	BatchSize    int           // заявок за один poll (default: 20)

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	definitions := cfg.Definitions
	if definitions == nil {
		definitions = registry.NewDefault()
	}

	return &Worker{
		requests:     cfg.Requests,
		flows:        cfg.Flows,
		runs:         cfg.Runs,
		engine:       cfg.Engine,
		definitions:  definitions,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// Start запускает consumer (если есть брокер) и polling.
// Не блокируется.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"broker", w.conn != nil,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, mq.ConsumerConfig{
			Queue:    mq.QueueRunsPending,
			Handler:  w.handleRunRequested,
			Prefetch: defaultPrefetch,
			Logger:   w.logger,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	return nil
}

// Stop останавливает Worker и ждёт текущую заявку.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// первый проход сразу: подхватываем заявки, накопившиеся за простой
	w.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll обрабатывает одну пачку PENDING-заявок.
// Возвращает количество выполненных заявок.
func (w *Worker) Poll(ctx context.Context) int {
	pending, err := w.requests.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending requests", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	w.logger.Debug("poll found pending requests", "count", len(pending))

	handled := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		id := pending[i].ID
		if _, err := w.ProcessRequest(ctx, id); err != nil {
			if errors.Is(err, ErrRequestNotPending) {
				continue
			}
			w.logger.Error("failed to process request from poll", "request_id", id, "error", err)
			continue
		}
		handled++
	}
	return handled
}
