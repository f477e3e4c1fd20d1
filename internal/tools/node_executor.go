package tools

import (
	"context"
	"fmt"
	"log/slog"

	"dario.cat/mergo"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/orchestrator"
)

// configKeyToolName — ключ конфигурации с именем инструмента.
const configKeyToolName = "toolName"

// NodeExecutor — исполнитель узлов на основе реестров.
//
// Маршрутизация:
//   - узел вида tool или function, либо узел с config.toolName —
//     выполняется инструментом из реестра
//   - узел вида branch — вычисляет condition и отдаёт {branch}
//   - остальные узлы пропускают данные дальше
//
// Перед вызовом инструмента конфигурация дополняется значениями
// properties.*.default из ConfigSchema и рендерится шаблонами.
type NodeExecutor struct {
	definitions engine.DefinitionLookup
	tools       *Executor
	conditions  *ConditionEvaluator
	logger      *slog.Logger
}

var _ orchestrator.NodeExecutor = (*NodeExecutor)(nil)

// NewNodeExecutor создаёт NodeExecutor.
func NewNodeExecutor(definitions engine.DefinitionLookup, tools *Registry, logger *slog.Logger) *NodeExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeExecutor{
		definitions: definitions,
		tools:       NewExecutor(tools, logger),
		conditions:  NewConditionEvaluator(0),
		logger:      logger,
	}
}

// CanExecute возвращает false для узла с инструментом, но без toolName.
func (e *NodeExecutor) CanExecute(node *domain.FlowNode) bool {
	if e.isToolBacked(node) {
		_, ok := node.Config[configKeyToolName].(string)
		return ok
	}
	return true
}

// Execute выполняет узел.
func (e *NodeExecutor) Execute(ctx context.Context, req orchestrator.NodeRequest) (*orchestrator.NodeOutcome, error) {
	node := req.Node

	switch {
	case e.isToolBacked(node):
		return e.executeTool(ctx, req)
	case e.kind(node) == domain.RuntimeKindBranch:
		return e.evaluateBranch(req)
	default:
		return &orchestrator.NodeOutcome{Outputs: map[string]any{
			"nodeId":          node.ID,
			"passthrough":     true,
			"upstreamOutputs": req.UpstreamOutputs,
		}}, nil
	}
}

func (e *NodeExecutor) executeTool(ctx context.Context, req orchestrator.NodeRequest) (*orchestrator.NodeOutcome, error) {
	node := req.Node

	toolName, ok := node.Config[configKeyToolName].(string)
	if !ok {
		return nil, orchestrator.NewExecutionError(CodeInvalidToolReference,
			fmt.Sprintf("Node %s does not define a valid config.toolName.", node.ID), false)
	}

	config, err := e.prepareConfig(req)
	if err != nil {
		return nil, err
	}

	contextMap := req.Context.AsMap()
	result, err := e.tools.Execute(ctx, toolName, &Request{
		Input: map[string]any{
			"config":          config,
			"upstreamOutputs": req.UpstreamOutputs,
			"context":         contextMap,
		},
		Context: contextMap,
	})
	if err != nil {
		return nil, err
	}

	return &orchestrator.NodeOutcome{Outputs: toRecord(result.Output)}, nil
}

// prepareConfig дополняет конфигурацию значениями по умолчанию
// и рендерит шаблоны. Конфигурация узла не изменяется.
func (e *NodeExecutor) prepareConfig(req orchestrator.NodeRequest) (map[string]any, error) {
	node := req.Node

	config := make(map[string]any, len(node.Config))
	for k, v := range node.Config {
		config[k] = v
	}

	if def, ok := e.definitions.Definition(node.NodeType); ok {
		if defaults := schemaDefaults(def.ConfigSchema); len(defaults) > 0 {
			if err := mergo.Merge(&config, defaults); err != nil {
				return nil, orchestrator.NewExecutionError(orchestrator.CodeNodeExecution,
					fmt.Sprintf("apply defaults to node %s: %v", node.ID, err), false)
			}
		}
	}

	tmplCtx := engine.NewTemplateContext(req.Context, node.ID, req.UpstreamOutputs)
	rendered, err := engine.RenderConfig(config, tmplCtx)
	if err != nil {
		return nil, &orchestrator.ExecutionError{
			Code:    orchestrator.CodeNodeExecution,
			Message: fmt.Sprintf("render config of node %s: %v", node.ID, err),
			Err:     err,
		}
	}
	return rendered, nil
}

func (e *NodeExecutor) evaluateBranch(req orchestrator.NodeRequest) (*orchestrator.NodeOutcome, error) {
	node := req.Node

	expression := node.Condition
	if expression == "" {
		expression, _ = node.Config["expression"].(string)
	}

	// Без условия ветка "true"
	if expression == "" {
		return &orchestrator.NodeOutcome{Outputs: map[string]any{"branch": "true"}}, nil
	}

	scope := req.Context.AsMap()
	scope["upstream"] = req.UpstreamOutputs

	ok, err := e.conditions.Evaluate(expression, scope)
	if err != nil {
		return nil, &orchestrator.ExecutionError{
			Code:    CodeConditionEvaluation,
			Message: fmt.Sprintf("Condition of node %s could not be evaluated: %v", node.ID, err),
			Err:     err,
		}
	}

	branch := "false"
	if ok {
		branch = "true"
	}
	e.logger.Debug("branch evaluated", "node_id", node.ID, "branch", branch)

	return &orchestrator.NodeOutcome{Outputs: map[string]any{"branch": branch}}, nil
}

func (e *NodeExecutor) kind(node *domain.FlowNode) domain.RuntimeKind {
	if def, ok := e.definitions.Definition(node.NodeType); ok {
		return def.RuntimeKind
	}
	return ""
}

func (e *NodeExecutor) isToolBacked(node *domain.FlowNode) bool {
	switch e.kind(node) {
	case domain.RuntimeKindTool, domain.RuntimeKindFunction:
		return true
	}
	_, ok := node.Config[configKeyToolName].(string)
	return ok
}

// schemaDefaults собирает properties.*.default из JSON Schema.
func schemaDefaults(schema map[string]any) map[string]any {
	props := GetMap(schema, "properties")
	if props == nil {
		return nil
	}

	defaults := make(map[string]any)
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			defaults[name] = def
		}
	}
	return defaults
}

// toRecord оборачивает не-объектный результат в {value}.
func toRecord(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": value}
}
