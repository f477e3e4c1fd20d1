package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/orchestrator"
)

// MemoryRunRepo — RunRepository в памяти процесса.
// Используется CLI и тестами.
type MemoryRunRepo struct {
	mu        sync.RWMutex
	events    map[string][]domain.ExecutionEvent
	snapshots map[string]domain.FlowRun
}

var _ orchestrator.RunRepository = (*MemoryRunRepo)(nil)

// NewMemoryRunRepo создаёт пустой MemoryRunRepo.
func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{
		events:    make(map[string][]domain.ExecutionEvent),
		snapshots: make(map[string]domain.FlowRun),
	}
}

// AppendEvent добавляет событие.
func (r *MemoryRunRepo) AppendEvent(_ context.Context, event domain.ExecutionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events[event.RunID] {
		if e.Sequence == event.Sequence {
			return fmt.Errorf("%w: event %s/%d", ErrAlreadyExists, event.RunID, event.Sequence)
		}
	}
	r.events[event.RunID] = append(r.events[event.RunID], event)
	return nil
}

// SaveRunSnapshot сохраняет снимок.
func (r *MemoryRunRepo) SaveRunSnapshot(_ context.Context, run domain.FlowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[run.RunID] = run
	return nil
}

// EventsByRunID возвращает копию событий, отсортированную по sequence.
func (r *MemoryRunRepo) EventsByRunID(_ context.Context, runID string) ([]domain.ExecutionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := append([]domain.ExecutionEvent(nil), r.events[runID]...)
	sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })
	return events, nil
}

// RunSnapshot возвращает снимок или ErrNotFound.
func (r *MemoryRunRepo) RunSnapshot(_ context.Context, runID string) (*domain.FlowRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.snapshots[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

// ListRunIDs возвращает ID run со снимками, последние первыми.
func (r *MemoryRunRepo) ListRunIDs(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]domain.FlowRun, 0, len(r.snapshots))
	for _, run := range r.snapshots {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.RunID
	}
	return ids, nil
}

// MemoryFlowRepo — FlowStore в памяти.
type MemoryFlowRepo struct {
	mu    sync.RWMutex
	flows map[string]domain.Flow
	order []string
}

var _ FlowStore = (*MemoryFlowRepo)(nil)

// NewMemoryFlowRepo создаёт пустой MemoryFlowRepo.
func NewMemoryFlowRepo() *MemoryFlowRepo {
	return &MemoryFlowRepo{flows: make(map[string]domain.Flow)}
}

func (r *MemoryFlowRepo) Get(_ context.Context, id string) (*domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, ok := r.flows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &flow, nil
}

// List возвращает flow в порядке первого сохранения.
func (r *MemoryFlowRepo) List(context.Context) ([]domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flows := make([]domain.Flow, 0, len(r.order))
	for _, id := range r.order {
		flows = append(flows, r.flows[id])
	}
	return flows, nil
}

func (r *MemoryFlowRepo) Save(_ context.Context, flow *domain.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[flow.ID]; !exists {
		r.order = append(r.order, flow.ID)
	}
	r.flows[flow.ID] = *flow
	return nil
}

func (r *MemoryFlowRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[id]; !exists {
		return ErrNotFound
	}
	delete(r.flows, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryRequestRepo — RequestStore в памяти.
type MemoryRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.RunRequest
}

var _ RequestStore = (*MemoryRequestRepo)(nil)

// NewMemoryRequestRepo создаёт пустой MemoryRequestRepo.
func NewMemoryRequestRepo() *MemoryRequestRepo {
	return &MemoryRequestRepo{requests: make(map[string]*domain.RunRequest)}
}

func (r *MemoryRequestRepo) Create(_ context.Context, req *domain.RunRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID]; exists {
		return fmt.Errorf("%w: request %s", ErrAlreadyExists, req.ID)
	}
	if req.IdempotencyKey != "" {
		for _, existing := range r.requests {
			if existing.IdempotencyKey == req.IdempotencyKey {
				return fmt.Errorf("%w: idempotency key %s", ErrAlreadyExists, req.IdempotencyKey)
			}
		}
	}

	stored := *req
	r.requests[req.ID] = &stored
	return nil
}

func (r *MemoryRequestRepo) GetByID(_ context.Context, id string) (*domain.RunRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *req
	return &out, nil
}

func (r *MemoryRequestRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.RunRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.IdempotencyKey == key {
			out := *req
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// ListPending возвращает заявки PENDING, старые первыми.
func (r *MemoryRequestRepo) ListPending(_ context.Context, limit int) ([]domain.RunRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []domain.RunRequest
	for _, req := range r.requests {
		if req.Status == domain.RequestStatusPending {
			pending = append(pending, *req)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *MemoryRequestRepo) MarkRunning(_ context.Context, req *domain.RunRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.requests[req.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != domain.RequestStatusPending {
		return fmt.Errorf("%w: request %s is not pending", ErrInvalidState, req.ID)
	}
	req.MarkRunning()
	*stored = *req
	return nil
}

func (r *MemoryRequestRepo) MarkDone(_ context.Context, req *domain.RunRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.requests[req.ID]
	if !ok {
		return ErrNotFound
	}
	req.MarkDone()
	*stored = *req
	return nil
}

// MemoryScheduleRepo — ScheduleStore в памяти.
type MemoryScheduleRepo struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*domain.Schedule
}

var _ ScheduleStore = (*MemoryScheduleRepo)(nil)

// NewMemoryScheduleRepo создаёт пустой MemoryScheduleRepo.
func NewMemoryScheduleRepo() *MemoryScheduleRepo {
	return &MemoryScheduleRepo{schedules: make(map[uuid.UUID]*domain.Schedule)}
}

func (r *MemoryScheduleRepo) Create(_ context.Context, s *domain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schedules[s.ID]; exists {
		return fmt.Errorf("%w: schedule %s", ErrAlreadyExists, s.ID)
	}
	stored := *s
	r.schedules[s.ID] = &stored
	return nil
}

func (r *MemoryScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

func (r *MemoryScheduleRepo) List(_ context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Schedule
	for _, s := range r.schedules {
		if filter.FlowID != "" && s.FlowID != filter.FlowID {
			continue
		}
		if filter.Enabled != nil && s.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (r *MemoryScheduleRepo) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []domain.Schedule
	for _, s := range r.schedules {
		if s.IsDue(now) {
			due = append(due, *s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextDueAt.Before(*due[j].NextDueAt) })
	return paginate(due, 0, limit), nil
}

func (r *MemoryScheduleRepo) Update(_ context.Context, s *domain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[s.ID]; !ok {
		return ErrNotFound
	}
	stored := *s
	r.schedules[s.ID] = &stored
	return nil
}

func (r *MemoryScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(r.schedules, id)
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
