package graph

import "github.com/shaiso/flowgen/internal/domain"

// DefaultFlowID — ID примерного flow.
const DefaultFlowID = "flow-example"

// DefaultFlow возвращает примерный flow: проверка заявки с ветвлением.
//
//	start → action-1 → decision-1 ─true─→ end-ok
//	                              └false→ end-ko
func DefaultFlow() domain.Flow {
	node := func(id, label, nodeType string, i int) domain.FlowNode {
		n := NewNode(nodeType, id, i)
		n.Label = label
		return n
	}

	decision := node("decision-1", "Approved?", "decision", 2)
	decision.Condition = "context.input.approved === true"

	return domain.Flow{
		ID:            DefaultFlowID,
		Name:          "Example flow",
		SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{
			node("start", "Start", "start", 0),
			node("action-1", "Validate request", "action", 1),
			decision,
			node("end-ok", "Approved", "end", 3),
			node("end-ko", "Rejected", "end", 4),
		},
		Edges: []domain.FlowEdge{
			{ID: "edge-1", SourceNodeID: "start", TargetNodeID: "action-1"},
			{ID: "edge-2", SourceNodeID: "action-1", TargetNodeID: "decision-1"},
			{ID: "edge-3", SourceNodeID: "decision-1", TargetNodeID: "end-ok", Branch: "true"},
			{ID: "edge-4", SourceNodeID: "decision-1", TargetNodeID: "end-ko", Branch: "false"},
		},
	}
}
