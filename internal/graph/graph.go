// Package graph содержит операции редактирования flow.
//
// Все функции возвращают новый Flow и не меняют исходный:
// срезы узлов и рёбер копируются.
package graph

import (
	"github.com/google/uuid"

	"github.com/shaiso/flowgen/internal/domain"
)

// Сетка размещения новых узлов.
const (
	gridColumns = 5
	gridOriginX = 200
	gridOriginY = 120
	gridStepX   = 220
	gridStepY   = 140
)

// NewID генерирует идентификатор с префиксом: "edge-1b9d6bcd".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// ConnectNodes добавляет ребро source → target.
//
// Петля (source == target) и повтор уже существующей пары
// не добавляются: flow возвращается без изменений.
// Пустой edgeID заменяется сгенерированным.
func ConnectNodes(flow domain.Flow, edgeID, sourceNodeID, targetNodeID string) domain.Flow {
	if sourceNodeID == targetNodeID {
		return flow
	}
	for _, e := range flow.Edges {
		if e.SourceNodeID == sourceNodeID && e.TargetNodeID == targetNodeID {
			return flow
		}
	}

	if edgeID == "" {
		edgeID = NewID("edge")
	}

	out := clone(flow)
	out.Edges = append(out.Edges, domain.FlowEdge{
		ID:           edgeID,
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
	})
	return out
}

// ConnectBranch добавляет ребро ветки узла ветвления.
// Правила те же, что у ConnectNodes.
func ConnectBranch(flow domain.Flow, sourceNodeID, targetNodeID, branch string) domain.Flow {
	out := ConnectNodes(flow, "", sourceNodeID, targetNodeID)
	if len(out.Edges) == len(flow.Edges) {
		return flow
	}
	out.Edges[len(out.Edges)-1].Branch = branch
	return out
}

// DeleteNode удаляет узел вместе со всеми его рёбрами.
func DeleteNode(flow domain.Flow, nodeID string) domain.Flow {
	out := flow
	out.Nodes = make([]domain.FlowNode, 0, len(flow.Nodes))
	for _, n := range flow.Nodes {
		if n.ID != nodeID {
			out.Nodes = append(out.Nodes, n)
		}
	}

	out.Edges = make([]domain.FlowEdge, 0, len(flow.Edges))
	for _, e := range flow.Edges {
		if e.SourceNodeID != nodeID && e.TargetNodeID != nodeID {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// DeleteEdge удаляет ребро по ID.
func DeleteEdge(flow domain.Flow, edgeID string) domain.Flow {
	out := flow
	out.Edges = make([]domain.FlowEdge, 0, len(flow.Edges))
	for _, e := range flow.Edges {
		if e.ID != edgeID {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// NewNode создаёт узел с меткой по умолчанию.
// existing — количество узлов во flow, определяет позицию на сетке.
func NewNode(nodeType, nodeID string, existing int) domain.FlowNode {
	return domain.FlowNode{
		ID:       nodeID,
		Label:    DefaultLabel(nodeType),
		NodeType: nodeType,
		Version:  domain.DefaultNodeVersion,
		Config:   map[string]any{},
		Position: domain.Position{
			X: float64(gridOriginX + (existing%gridColumns)*gridStepX),
			Y: float64(gridOriginY + (existing/gridColumns)*gridStepY),
		},
		Metadata: map[string]string{},
	}
}

// CreateNode добавляет новый узел типа nodeType.
// Возвращает новый flow и ID узла.
func CreateNode(flow domain.Flow, nodeType string) (domain.Flow, string) {
	nodeID := NewID(nodeType)
	out := clone(flow)
	out.Nodes = append(out.Nodes, NewNode(nodeType, nodeID, len(flow.Nodes)))
	return out, nodeID
}

// DefaultLabel возвращает метку нового узла.
func DefaultLabel(nodeType string) string {
	switch nodeType {
	case "start":
		return "Start"
	case "decision":
		return "New decision"
	case "end":
		return "End"
	default:
		return "New action"
	}
}

func clone(flow domain.Flow) domain.Flow {
	out := flow
	out.Nodes = append([]domain.FlowNode(nil), flow.Nodes...)
	out.Edges = append([]domain.FlowEdge(nil), flow.Edges...)
	return out
}
