package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"dario.cat/mergo"
)

// ToolNameTransform — имя встроенного инструмента трансформации.
const ToolNameTransform = "transform"

// TransformTool — инструмент сборки документа.
//
// Шаблоны в конфигурации узла уже отрендерены NodeExecutor'ом,
// поэтому mappings приходят готовыми строками. Каждое значение
// разбирается как JSON, если это возможно, и накладывается на base.
//
// Аргументы:
//
//	{
//	    "base": {"source": "crm"},
//	    "mappings": {
//	        "total": "{{ len .Upstream.fetch.items }}",
//	        "user":  "{{ json .Input.user }}"
//	    }
//	}
//
// Output: base, дополненный результатами mappings.
type TransformTool struct{}

// NewTransformTool создаёт TransformTool.
func NewTransformTool() *TransformTool {
	return &TransformTool{}
}

func (t *TransformTool) Name() string        { return ToolNameTransform }
func (t *TransformTool) Description() string { return "Builds a document from rendered mappings." }

func (t *TransformTool) Capabilities() Capabilities {
	return Capabilities{
		ExecutionMode:   ExecutionModeSync,
		Streaming:       StreamingNone,
		SideEffectLevel: SideEffectNone,
	}
}

// Execute выполняет трансформацию.
func (t *TransformTool) Execute(ctx context.Context, req *Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrToolCancelled, ctx.Err())
	default:
	}

	args := Arguments(req)

	mapped := make(map[string]any)
	for key, value := range GetStringMap(args, "mappings") {
		mapped[key] = parseValue(value)
	}

	// base копируется, чтобы не менять конфигурацию узла
	output := make(map[string]any)
	if base := GetMap(args, "base"); base != nil {
		if err := mergo.Merge(&output, base); err != nil {
			return nil, fmt.Errorf("%w: base: %v", ErrInvalidArguments, err)
		}
	}
	if err := mergo.Merge(&output, mapped, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("%w: mappings: %v", ErrInvalidArguments, err)
	}

	return &Result{Output: output}, nil
}

// parseValue пытается разобрать строку как JSON.
// Если не получается, возвращает строку как есть.
func parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	return value
}
