package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/repo"
)

const (
	defaultBatchSize = 100
	defaultTick      = time.Second
)

// RequestPublisher уведомляет воркеров о новой заявке.
// Реализуется mq.Publisher.
type RequestPublisher interface {
	PublishRunRequested(ctx context.Context, req *domain.RunRequest) error
}

// Leader решает, должен ли этот экземпляр выполнять тик.
// Реализуется repo.AdvisoryLock.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler создаёт заявки на запуск по расписаниям.
type Scheduler struct {
	schedules repo.ScheduleStore
	requests  repo.RequestStore
	flows     repo.FlowStore
	publisher RequestPublisher
	leader    Leader

	tick      time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules repo.ScheduleStore
	Requests  repo.RequestStore
	Flows     repo.FlowStore

	// Publisher — опционально. Без него заявки подхватывает polling воркера.
	Publisher RequestPublisher

	// Leader — опционально. Без него каждый экземпляр считает себя лидером.
	Leader Leader

	Tick      time.Duration // default: 1s
	BatchSize int           // расписаний за один тик (default: 100)
	Logger    *slog.Logger
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		requests:  cfg.Requests,
		flows:     cfg.Flows,
		publisher: cfg.Publisher,
		leader:    cfg.Leader,
		tick:      tick,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// Run вызывает Tick с периодом Tick до отмены ctx.
// С Leader тик выполняется только пока лидерство удерживается.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var leading bool
	defer func() {
		if leading {
			if err := s.leader.Release(context.Background()); err != nil {
				s.logger.Warn("failed to release leadership", "error", err)
			}
		}
	}()

	s.logger.Info("scheduler started", "tick", s.tick, "batch_size", s.batchSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if s.leader != nil && !leading {
			ok, err := s.leader.TryAcquire(ctx)
			if err != nil {
				s.logger.Error("leader election failed", "error", err)
				continue
			}
			if !ok {
				continue
			}
			leading = true
			s.logger.Info("acquired scheduler leadership")
		}

		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	}
}

// Tick обрабатывает созревшие расписания.
//
//  1. ListDue (enabled, nextDueAt <= now)
//  2. Для каждого — заявка с ключом "{schedule_id}_{unix}"
//  3. Публикация заявки
//  4. Сдвиг nextDueAt
//
// Ошибка одного расписания не останавливает остальные.
// Возвращает количество созданных заявок.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var processed, created int
	for i := range due {
		sched := &due[i]

		ok, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		processed++
		if ok {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(due),
		"processed", processed,
		"requests_created", created,
	)
	return created, nil
}

// IdempotencyKey — ключ заявки для срабатывания расписания в момент due.
func IdempotencyKey(sched *domain.Schedule, due time.Time) string {
	return fmt.Sprintf("%s_%d", sched.ID, due.Unix())
}

// processSchedule возвращает true, если заявка создана (а не найдена по ключу).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	if _, err := s.flows.Get(ctx, sched.FlowID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("flow not found for schedule, skipping",
				"schedule_id", sched.ID,
				"flow_id", sched.FlowID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get flow: %w", err)
	}

	key := IdempotencyKey(sched, *sched.NextDueAt)

	req, created, err := s.ensureRequest(ctx, sched, key)
	if err != nil {
		return false, err
	}

	if created && s.publisher != nil {
		if err := s.publisher.PublishRunRequested(ctx, req); err != nil {
			// заявка уже в хранилище, её подберёт polling воркера
			s.logger.Warn("failed to publish run request", "request_id", req.ID, "error", err)
		}
	}

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// nextDueAt не трогаем: расписание останется due, ключ не даст дубликатов
		s.logger.Error("failed to calculate next due", "schedule_id", sched.ID, "error", err)
		return created, nil
	}

	sched.RecordRun(req.ID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return created, fmt.Errorf("update schedule: %w", err)
	}

	return created, nil
}

// ensureRequest находит заявку по ключу или создаёт новую.
func (s *Scheduler) ensureRequest(ctx context.Context, sched *domain.Schedule, key string) (*domain.RunRequest, bool, error) {
	existing, err := s.requests.GetByIdempotencyKey(ctx, key)
	if err == nil {
		s.logger.Debug("run request already exists", "schedule_id", sched.ID, "request_id", existing.ID)
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("check idempotency: %w", err)
	}

	req := domain.NewRunRequest(sched.FlowID, sched.Input)
	req.IdempotencyKey = key
	req.ScheduleID = sched.ID.String()

	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// параллельный экземпляр успел раньше
			existing, getErr := s.requests.GetByIdempotencyKey(ctx, key)
			if getErr != nil {
				return nil, false, fmt.Errorf("get concurrent request: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create run request: %w", err)
	}

	s.logger.Info("created run request from schedule",
		"request_id", req.ID,
		"schedule_id", sched.ID,
		"flow_id", sched.FlowID,
	)
	return req, true, nil
}
