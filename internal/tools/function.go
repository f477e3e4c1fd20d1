package tools

import "context"

// HandlerFunc — локальная функция инструмента.
type HandlerFunc func(ctx context.Context, req *Request) (*Result, error)

// FunctionTool — инструмент поверх локальной функции.
// По умолчанию синхронный и без побочных эффектов.
type FunctionTool struct {
	name         string
	description  string
	capabilities Capabilities
	handler      HandlerFunc
}

// NewFunctionTool создаёт FunctionTool.
func NewFunctionTool(name, description string, handler HandlerFunc) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		handler:     handler,
		capabilities: Capabilities{
			ExecutionMode:   ExecutionModeSync,
			Streaming:       StreamingNone,
			SideEffectLevel: SideEffectNone,
		},
	}
}

// WithCapabilities переопределяет возможности инструмента.
func (t *FunctionTool) WithCapabilities(c Capabilities) *FunctionTool {
	t.capabilities = c
	return t
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Capabilities() Capabilities { return t.capabilities }

// Execute вызывает функцию.
func (t *FunctionTool) Execute(ctx context.Context, req *Request) (*Result, error) {
	return t.handler(ctx, req)
}
