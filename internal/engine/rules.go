package engine

import (
	"github.com/shaiso/flowgen/internal/domain"
)

// DefinitionLookup — поиск определения узла по типу.
//
// Реализуется registry.Registry.
type DefinitionLookup interface {
	Definition(nodeType string) (domain.NodeDefinition, bool)
}

// ConnectionRule — допустимые соединения узла.
//
// MinOutgoing/MaxOutgoing равны nil, если ограничения нет.
type ConnectionRule struct {
	CanHaveIncoming bool
	CanHaveOutgoing bool
	MinOutgoing     *int
	MaxOutgoing     *int
}

// Connections — число входящих и исходящих рёбер узла.
type Connections struct {
	Incoming int
	Outgoing int
}

// ConnectionRuleFor выводит правило соединений по виду узла.
//
//	trigger  — входящих нет, исходящее ровно одно
//	terminal — исходящих нет
//	branch   — исходящих столько же, сколько выходных портов
//	прочие   — по наличию входных/выходных портов, без ограничений
//
// Для незарегистрированного типа правило разрешающее: неизвестный
// тип узла не должен блокировать flow целиком.
func ConnectionRuleFor(node *domain.FlowNode, lookup DefinitionLookup) ConnectionRule {
	def, ok := lookup.Definition(node.NodeType)
	if !ok {
		return ConnectionRule{CanHaveIncoming: true, CanHaveOutgoing: true}
	}

	switch def.RuntimeKind {
	case domain.RuntimeKindTrigger:
		return ConnectionRule{
			CanHaveIncoming: false,
			CanHaveOutgoing: true,
			MinOutgoing:     intPtr(1),
			MaxOutgoing:     intPtr(1),
		}
	case domain.RuntimeKindTerminal:
		return ConnectionRule{
			CanHaveIncoming: true,
			CanHaveOutgoing: false,
			MaxOutgoing:     intPtr(0),
		}
	case domain.RuntimeKindBranch:
		ports := len(def.OutputPorts)
		return ConnectionRule{
			CanHaveIncoming: true,
			CanHaveOutgoing: true,
			MinOutgoing:     intPtr(ports),
			MaxOutgoing:     intPtr(ports),
		}
	default:
		return ConnectionRule{
			CanHaveIncoming: len(def.InputPorts) > 0,
			CanHaveOutgoing: len(def.OutputPorts) > 0,
		}
	}
}

// IsValidConnection проверяет ребро source → target.
// Допустимо, если source может иметь исходящие, а target — входящие рёбра.
func IsValidConnection(source, target *domain.FlowNode, lookup DefinitionLookup) bool {
	return ConnectionRuleFor(source, lookup).CanHaveOutgoing &&
		ConnectionRuleFor(target, lookup).CanHaveIncoming
}

// CountNodeConnections считает рёбра узла линейным проходом.
func CountNodeConnections(nodeID string, edges []domain.FlowEdge) Connections {
	var c Connections
	for _, e := range edges {
		if e.TargetNodeID == nodeID {
			c.Incoming++
		}
		if e.SourceNodeID == nodeID {
			c.Outgoing++
		}
	}
	return c
}

func intPtr(v int) *int {
	return &v
}
