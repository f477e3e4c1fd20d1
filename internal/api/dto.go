package api

import (
	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
)

// Flow DTOs

// FlowResponse — flow с результатом структурной валидации.
// Сохранять невалидный flow можно (редактирование по шагам),
// но запустить его движок не даст.
type FlowResponse struct {
	Flow       domain.Flow              `json:"flow"`
	Valid      bool                     `json:"valid"`
	Validation []engine.ValidationError `json:"validation"`
	Migration  *MigrationResponse       `json:"migration,omitempty"`
}

// FlowSummary — элемент списка flow.
type FlowSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// FlowSummaryFromDomain конвертирует domain.Flow в FlowSummary.
func FlowSummaryFromDomain(f domain.Flow) FlowSummary {
	return FlowSummary{
		ID:        f.ID,
		Name:      f.Name,
		NodeCount: len(f.Nodes),
		EdgeCount: len(f.Edges),
	}
}

// ValidateResponse — ответ на проверку документа.
type ValidateResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []engine.ValidationError `json:"errors"`
}

// MigrationResponse — отчёт о миграции.
type MigrationResponse struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Applied []string `json:"applied"`
	Current bool     `json:"current"`
}

// MigrationFromReport конвертирует engine.MigrationReport.
func MigrationFromReport(r engine.MigrationReport) *MigrationResponse {
	applied := r.Applied
	if applied == nil {
		applied = []string{}
	}
	return &MigrationResponse{From: r.From, To: r.To, Applied: applied, Current: r.Current}
}

// MigrateResponse — мигрированный документ без проверки схемы.
type MigrateResponse struct {
	Document  any                `json:"document"`
	Migration *MigrationResponse `json:"migration"`
}

// Run DTOs

// RunMode — как выполнять run.
type RunMode string

const (
	// RunModeQueued — заявка в RequestStore, выполняет воркер.
	RunModeQueued RunMode = "queued"

	// RunModeInline — движок в процессе API, ответ после завершения.
	RunModeInline RunMode = "inline"
)

// CreateRunRequest — запрос на запуск flow.
type CreateRunRequest struct {
	Mode             RunMode           `json:"mode,omitempty"`
	Input            map[string]any    `json:"input,omitempty"`
	Variables        map[string]any    `json:"variables,omitempty"`
	SecretReferences map[string]string `json:"secretReferences,omitempty"`
	TraceID          string            `json:"traceId,omitempty"`
	IdempotencyKey   string            `json:"idempotencyKey,omitempty"`
}

// RunResponse — состояние run.
// Пока воркер не закончил, Run пуст, а Request показывает статус заявки.
type RunResponse struct {
	RunID   string             `json:"runId"`
	Request *domain.RunRequest `json:"request,omitempty"`
	Run     *domain.FlowRun    `json:"run,omitempty"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cronExpr,omitempty"`
	IntervalSec int            `json:"intervalSec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — частичное обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cronExpr,omitempty"`
	IntervalSec *int            `json:"intervalSec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Input       *map[string]any `json:"input,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}
