package engine

import (
	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/registry"
)

// node создаёт узел заданного типа.
func node(id, nodeType string) domain.FlowNode {
	return domain.FlowNode{ID: id, Label: id, NodeType: nodeType, Version: "1.0.0"}
}

// edge создаёт ребро source → target.
func edge(id, source, target string) domain.FlowEdge {
	return domain.FlowEdge{ID: id, SourceNodeID: source, TargetNodeID: target}
}

func branchEdge(id, source, target, branch string) domain.FlowEdge {
	e := edge(id, source, target)
	e.Branch = branch
	return e
}

// approvalFlow — start → action → decision → end-ok / end-ko.
func approvalFlow() *domain.Flow {
	return &domain.Flow{
		ID:            "flow-example",
		Name:          "Example",
		SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{
			node("start", "start"),
			node("action-1", "action"),
			node("decision-1", "decision"),
			node("end-ok", "end"),
			node("end-ko", "end"),
		},
		Edges: []domain.FlowEdge{
			edge("edge-1", "start", "action-1"),
			edge("edge-2", "action-1", "decision-1"),
			branchEdge("edge-3", "decision-1", "end-ok", "true"),
			branchEdge("edge-4", "decision-1", "end-ko", "false"),
		},
	}
}

func testRegistry() *registry.Registry {
	return registry.NewDefault()
}

func codes(errs []ValidationError) []ValidationCode {
	out := make([]ValidationCode, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func hasCode(errs []ValidationError, code ValidationCode) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}
