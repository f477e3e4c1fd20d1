// Package tools содержит слой инструментов и исполнитель узлов flow.
//
// # Инструменты
//
// Инструмент — именованная операция с описанием возможностей:
//
//	type Tool interface {
//	    Name() string
//	    Description() string
//	    Capabilities() Capabilities
//	    Execute(ctx context.Context, req *Request) (*Result, error)
//	}
//
// Встроенные реализации:
//   - FunctionTool — локальная функция
//   - HTTPTool — отправляет вход как JSON на endpoint
//   - DelayTool — пауза (config.arguments.durationMs)
//   - TransformTool — сборка документа из отрендеренных mappings
//
// Executor находит инструмент в Registry и приводит ошибки к *ToolError
// (TOOL_NOT_FOUND, TOOL_EXECUTION_ERROR, TOOL_HTTP_ERROR).
//
// # NodeExecutor
//
// NodeExecutor реализует orchestrator.NodeExecutor:
//
//	registry := tools.DefaultRegistry()
//	registry.Register(tools.NewHTTPTool(tools.HTTPToolOptions{
//	    Name:     "crm.push",
//	    Endpoint: "https://crm.internal/api/leads",
//	}))
//	exec := tools.NewNodeExecutor(definitions, registry, logger)
//	eng := orchestrator.New(orchestrator.Config{Executor: exec})
//
// Узел с инструментом получает вход {config, upstreamOutputs, context};
// config дополнен значениями по умолчанию из ConfigSchema и отрендерен
// шаблонами engine.RenderConfig. Узлы ветвления вычисляют condition
// (JavaScript через otto) и возвращают {branch: "true"|"false"}.
package tools
