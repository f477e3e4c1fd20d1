package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/flowgen/internal/telemetry"
)

// Executor находит инструмент в реестре и выполняет его.
//
// Любая ошибка инструмента приводится к *ToolError: структурированные
// ошибки проходят как есть, остальные получают TOOL_EXECUTION_ERROR.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor создаёт Executor.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute выполняет инструмент toolName.
func (e *Executor) Execute(ctx context.Context, toolName string, req *Request) (*Result, error) {
	tool, err := e.registry.Get(toolName)
	if err != nil {
		return nil, &ToolError{
			Code:    CodeToolNotFound,
			Message: fmt.Sprintf("Tool %q is not registered.", toolName),
			Err:     err,
		}
	}

	telemetry.FromContextOr(ctx, e.logger).Debug("executing tool",
		"tool", toolName,
		"side_effects", tool.Capabilities().SideEffectLevel,
	)

	result, err := tool.Execute(ctx, req)
	if err != nil {
		return nil, normalizeToolError(err, toolName)
	}
	if result == nil {
		result = &Result{}
	}
	return result, nil
}

func normalizeToolError(err error, toolName string) *ToolError {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		if toolErr.Code == "" {
			normalized := *toolErr
			normalized.Code = CodeToolExecution
			return &normalized
		}
		return toolErr
	}

	return &ToolError{
		Code:    CodeToolExecution,
		Message: err.Error(),
		Details: map[string]any{"toolName": toolName},
		Err:     err,
	}
}
