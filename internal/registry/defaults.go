package registry

import "github.com/shaiso/flowgen/internal/domain"

// passthroughSchema — схема "любой объект".
func passthroughSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           map[string]any{},
	}
}

// toolConfigSchema — схема конфигурации узлов, выполняемых инструментом.
func toolConfigSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"required":             []any{"toolName"},
		"properties": map[string]any{
			"toolName":  map[string]any{"type": "string"},
			"arguments": map[string]any{"type": "object", "default": map[string]any{}},
		},
	}
}

// DefaultDefinitions возвращает стандартные определения узлов.
func DefaultDefinitions() []domain.NodeDefinition {
	in := []domain.PortDefinition{{Name: "in", DisplayName: "Input"}}
	next := []domain.PortDefinition{{Name: "next", DisplayName: "Next"}}

	return []domain.NodeDefinition{
		{
			Type:         "start",
			DisplayName:  "Start",
			Category:     "control",
			InputPorts:   []domain.PortDefinition{},
			OutputPorts:  next,
			ConfigSchema: passthroughSchema(),
			InputSchema:  map[string]any{"type": "null"},
			OutputSchema: passthroughSchema(),
			RuntimeKind:  domain.RuntimeKindTrigger,
			Version:      domain.DefaultNodeVersion,
		},
		{
			Type:         "action",
			DisplayName:  "Action",
			Category:     "task",
			InputPorts:   in,
			OutputPorts:  next,
			ConfigSchema: passthroughSchema(),
			InputSchema:  passthroughSchema(),
			OutputSchema: passthroughSchema(),
			RuntimeKind:  domain.RuntimeKindTask,
			Version:      domain.DefaultNodeVersion,
		},
		{
			Type:         "tool-node",
			DisplayName:  "Tool",
			Category:     "integration",
			InputPorts:   in,
			OutputPorts:  next,
			ConfigSchema: toolConfigSchema(),
			InputSchema:  passthroughSchema(),
			OutputSchema: passthroughSchema(),
			RuntimeKind:  domain.RuntimeKindTool,
			Version:      domain.DefaultNodeVersion,
		},
		{
			Type:         "function-node",
			DisplayName:  "Function",
			Category:     "integration",
			InputPorts:   in,
			OutputPorts:  next,
			ConfigSchema: toolConfigSchema(),
			InputSchema:  passthroughSchema(),
			OutputSchema: passthroughSchema(),
			RuntimeKind:  domain.RuntimeKindFunction,
			Version:      domain.DefaultNodeVersion,
		},
		{
			Type:        "decision",
			DisplayName: "Decision",
			Category:    "control",
			InputPorts:  in,
			OutputPorts: []domain.PortDefinition{
				{Name: "true", DisplayName: "True"},
				{Name: "false", DisplayName: "False"},
			},
			ConfigSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": true,
				"properties": map[string]any{
					"expression": map[string]any{"type": "string"},
				},
			},
			InputSchema: passthroughSchema(),
			OutputSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"branch": map[string]any{"type": "string"},
				},
			},
			RuntimeKind: domain.RuntimeKindBranch,
			Version:     domain.DefaultNodeVersion,
		},
		{
			Type:         "end",
			DisplayName:  "End",
			Category:     "control",
			InputPorts:   in,
			OutputPorts:  []domain.PortDefinition{},
			ConfigSchema: passthroughSchema(),
			InputSchema:  passthroughSchema(),
			OutputSchema: map[string]any{"type": "null"},
			RuntimeKind:  domain.RuntimeKindTerminal,
			Version:      domain.DefaultNodeVersion,
		},
	}
}
