package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunRequest — заявка на запуск flow.
//
// Заявка создаётся когда:
// - Пользователь запускает flow через API/CLI в режиме очереди
// - Scheduler срабатывает по расписанию
//
// Воркер берёт заявку, выполняет flow движком и помечает её DONE.
// Итог выполнения (статус, выходы, ошибка) хранится в снимке FlowRun
// с тем же ID.
type RunRequest struct {
	// ID — идентификатор заявки, он же RunID будущего run.
	ID string `json:"id"`

	// FlowID — какой flow запускать.
	FlowID string `json:"flowId"`

	// Status — статус заявки.
	Status RequestStatus `json:"status"`

	// Input / Variables / SecretReferences — попадут в ExecutionContext.
	Input            map[string]any    `json:"input,omitempty"`
	Variables        map[string]any    `json:"variables,omitempty"`
	SecretReferences map[string]string `json:"secretReferences,omitempty"`

	// TraceID — идентификатор трассировки.
	TraceID string `json:"traceId"`

	// IdempotencyKey — ключ идемпотентности для защиты от дубликатов.
	// Для запусков по расписанию: "{schedule_id}_{unix}".
	IdempotencyKey string `json:"idempotencyKey,omitempty"`

	// ScheduleID — расписание, создавшее заявку (если есть).
	ScheduleID string `json:"scheduleId,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewRunRequest создаёт PENDING-заявку с новыми ID и TraceID.
func NewRunRequest(flowID string, input map[string]any) *RunRequest {
	return &RunRequest{
		ID:        uuid.NewString(),
		FlowID:    flowID,
		Status:    RequestStatusPending,
		Input:     input,
		TraceID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// ExecutionContext строит контекст выполнения из заявки.
func (r *RunRequest) ExecutionContext() ExecutionContext {
	return ExecutionContext{
		RunID:            r.ID,
		TraceID:          r.TraceID,
		Input:            r.Input,
		Variables:        r.Variables,
		SecretReferences: r.SecretReferences,
	}
}

// MarkRunning переводит заявку в RUNNING.
func (r *RunRequest) MarkRunning() {
	now := time.Now()
	r.Status = RequestStatusRunning
	r.StartedAt = &now
}

// MarkDone переводит заявку в DONE.
func (r *RunRequest) MarkDone() {
	now := time.Now()
	r.Status = RequestStatusDone
	r.FinishedAt = &now
}
