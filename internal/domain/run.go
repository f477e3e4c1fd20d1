package domain

import (
	"time"
)

// ExecutionContext — неизменяемый контекст одного run.
type ExecutionContext struct {
	// RunID — идентификатор run. Если пуст, движок генерирует UUID.
	RunID string `json:"runId"`

	// TraceID — идентификатор трассировки для логов и событий.
	TraceID string `json:"traceId"`

	// Input — входные данные run.
	Input map[string]any `json:"input,omitempty"`

	// Variables — переменные окружения flow.
	Variables map[string]any `json:"variables,omitempty"`

	// SecretReferences — имена секретов (не сами значения).
	SecretReferences map[string]string `json:"secretReferences,omitempty"`
}

// AsMap возвращает контекст в виде документа для инструментов и выражений.
func (c ExecutionContext) AsMap() map[string]any {
	return map[string]any{
		"runId":            c.RunID,
		"traceId":          c.TraceID,
		"input":            orEmpty(c.Input),
		"variables":        orEmpty(c.Variables),
		"secretReferences": c.SecretReferences,
	}
}

// EventType — тип события журнала выполнения.
type EventType string

const (
	EventRunStarted    EventType = "RUN_STARTED"
	EventNodeStarted   EventType = "NODE_STARTED"
	EventNodeSucceeded EventType = "NODE_SUCCEEDED"
	EventNodeFailed    EventType = "NODE_FAILED"
	EventRunFinished   EventType = "RUN_FINISHED"
)

// ExecutionEvent — запись журнала выполнения (append-only).
//
// Sequence строго возрастает в рамках run и начинается с 1.
type ExecutionEvent struct {
	RunID      string         `json:"runId"`
	Sequence   int            `json:"sequence"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	NodeID     string         `json:"nodeId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// FlowRun — итоговый снимок run.
//
// Сохраняется через RunRepository один раз, в конце выполнения.
type FlowRun struct {
	RunID      string          `json:"runId"`
	FlowID     string          `json:"flowId"`
	TraceID    string          `json:"traceId"`
	Status     ExecutionStatus `json:"status"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`

	// Outputs — результаты узлов по их ID.
	Outputs map[string]any `json:"outputs"`

	// NodeRuns — записи узлов в порядке запуска.
	NodeRuns []NodeRun `json:"nodeRuns"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Duration возвращает продолжительность run.
func (r *FlowRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NodeRun — запись выполнения одного узла.
type NodeRun struct {
	NodeID     string         `json:"nodeId"`
	Status     NodeRunStatus  `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Retries    int            `json:"retries"`
	TimedOut   bool           `json:"timedOut"`
	Outputs    map[string]any `json:"outputs,omitempty"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
