package tools

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки инструментов.
var (
	// ErrToolNotFound — инструмент не зарегистрирован.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments — невалидные аргументы инструмента.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolCancelled — выполнение инструмента отменено.
	ErrToolCancelled = errors.New("tool execution cancelled")
)

// Коды ошибок инструментов.
const (
	CodeToolNotFound         = "TOOL_NOT_FOUND"
	CodeToolExecution        = "TOOL_EXECUTION_ERROR"
	CodeToolHTTP             = "TOOL_HTTP_ERROR"
	CodeInvalidToolReference = "INVALID_TOOL_REFERENCE"
	CodeConditionEvaluation  = "CONDITION_EVALUATION_ERROR"
)

// ExecutionMode — синхронный или асинхронный инструмент.
type ExecutionMode string

const (
	ExecutionModeSync  ExecutionMode = "sync"
	ExecutionModeAsync ExecutionMode = "async"
)

// StreamingMode — отдаёт ли инструмент результат частями.
type StreamingMode string

const (
	StreamingNone    StreamingMode = "none"
	StreamingChunked StreamingMode = "chunked"
)

// SideEffectLevel — уровень побочных эффектов инструмента.
type SideEffectLevel string

const (
	SideEffectNone     SideEffectLevel = "none"
	SideEffectRead     SideEffectLevel = "read"
	SideEffectWrite    SideEffectLevel = "write"
	SideEffectExternal SideEffectLevel = "external"
)

// Capabilities — описание поведения инструмента.
type Capabilities struct {
	ExecutionMode   ExecutionMode   `json:"executionMode"`
	Streaming       StreamingMode   `json:"streaming"`
	SideEffectLevel SideEffectLevel `json:"sideEffectLevel"`
}

// Tool — интерфейс инструмента.
//
// Узлы вида tool и function выполняются инструментом, имя которого
// задано в config.toolName.
type Tool interface {
	Name() string
	Description() string
	Capabilities() Capabilities

	// Execute выполняет инструмент.
	// Инструмент должен проверять ctx.Done() в долгих операциях.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request — входные данные инструмента.
type Request struct {
	// Input — для узлов flow это {config, upstreamOutputs, context}.
	Input any

	// Context — контекст выполнения run (ExecutionContext.AsMap()).
	Context map[string]any
}

// Result — результат инструмента.
type Result struct {
	Output   any
	Metadata map[string]any
}

// ToolError — структурированная ошибка инструмента.
//
// Движок распознаёт её по методу ErrorCode() и сохраняет код,
// признак Recoverable и детали.
type ToolError struct {
	Code        string
	Message     string
	Recoverable bool
	Details     map[string]any
	Err         error
}

// Error реализует интерфейс error.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку.
func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) ErrorCode() string            { return e.Code }
func (e *ToolError) ErrorMessage() string         { return e.Message }
func (e *ToolError) IsRecoverable() bool          { return e.Recoverable }
func (e *ToolError) ErrorDetails() map[string]any { return e.Details }

// NewToolError создаёт ошибку инструмента.
func NewToolError(code, message string, recoverable bool) *ToolError {
	return &ToolError{Code: code, Message: message, Recoverable: recoverable}
}

// Arguments извлекает config.arguments из входа инструмента.
// Возвращает пустой map, если вход не от узла flow.
func Arguments(req *Request) map[string]any {
	input, ok := req.Input.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	config := GetMap(input, "config")
	if config == nil {
		return map[string]any{}
	}
	if args := GetMap(config, "arguments"); args != nil {
		return args
	}
	return map[string]any{}
}

// GetString извлекает строковое значение.
func GetString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt извлекает числовое значение.
func GetInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetMap извлекает вложенный map.
func GetMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if nested, ok := v.(map[string]any); ok {
			return nested
		}
	}
	return nil
}

// GetStringMap извлекает map[string]string.
func GetStringMap(m map[string]any, key string) map[string]string {
	if v, ok := m[key]; ok {
		switch nested := v.(type) {
		case map[string]string:
			return nested
		case map[string]any:
			result := make(map[string]string, len(nested))
			for k, val := range nested {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}
