package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/flowgen/internal/domain"
)

func TestValidateFlow_Valid(t *testing.T) {
	errs := ValidateFlow(approvalFlow(), testRegistry(), ValidateOptions{})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateFlow_UnknownEndpoints(t *testing.T) {
	flow := approvalFlow()
	flow.Edges = append(flow.Edges,
		edge("ghost-src", "ghost", "end-ok"),
		edge("ghost-dst", "action-1", "ghost"),
	)

	errs := ValidateFlow(flow, testRegistry(), ValidateOptions{})

	var src, dst *ValidationError
	for i := range errs {
		switch errs[i].Code {
		case CodeEdgeWithUnknownSource:
			src = &errs[i]
		case CodeEdgeWithUnknownTarget:
			dst = &errs[i]
		case CodeInvalidNodeConnection:
			t.Errorf("connection check must be skipped for unresolved edges: %v", errs[i])
		}
	}

	if src == nil || src.SubjectID != "ghost-src" {
		t.Errorf("expected EDGE_WITH_UNKNOWN_SOURCE for ghost-src, got %v", errs)
	}
	if dst == nil || dst.SubjectID != "ghost-dst" {
		t.Errorf("expected EDGE_WITH_UNKNOWN_TARGET for ghost-dst, got %v", errs)
	}
	if src != nil && src.Message != `Edge "ghost-src" references source node "ghost" that does not exist.` {
		t.Errorf("unexpected message: %s", src.Message)
	}
}

func TestValidateFlow_DuplicateNodeID(t *testing.T) {
	flow := approvalFlow()
	flow.Nodes = append(flow.Nodes, node("action-1", "action"))

	errs := ValidateFlow(flow, testRegistry(), ValidateOptions{})

	var dup *ValidationError
	for i := range errs {
		if errs[i].Code == CodeDuplicateNodeID {
			if dup != nil {
				t.Errorf("expected a single DUPLICATE_NODE_ID, got %v", errs)
			}
			dup = &errs[i]
		}
	}
	if dup == nil {
		t.Fatalf("expected DUPLICATE_NODE_ID, got %v", codes(errs))
	}
	if dup.SubjectID != "action-1" {
		t.Errorf("expected subject action-1, got %q", dup.SubjectID)
	}
	if dup.Message != `Node ID "action-1" is used by more than one node.` {
		t.Errorf("unexpected message: %s", dup.Message)
	}
}

func TestValidateFlow_InvalidConnection(t *testing.T) {
	flow := &domain.Flow{
		ID: "f", Name: "f", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{node("s", "start"), node("e", "end")},
		Edges: []domain.FlowEdge{edge("1", "s", "e"), edge("2", "e", "s")},
	}

	errs := ValidateFlow(flow, testRegistry(), ValidateOptions{AllowCycles: true})

	found := false
	for _, e := range errs {
		if e.Code == CodeInvalidNodeConnection && e.SubjectID == "2" {
			found = true
			if e.Message != `Invalid connection from "end" node "e" to "start" node "s".` {
				t.Errorf("unexpected message: %s", e.Message)
			}
		}
	}
	if !found {
		t.Errorf("expected INVALID_NODE_CONNECTION for edge 2, got %v", codes(errs))
	}
}

func TestValidateFlow_OutgoingCount(t *testing.T) {
	flow := &domain.Flow{
		ID: "f", Name: "f", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{node("s", "start"), node("a", "action"), node("b", "action")},
		Edges: []domain.FlowEdge{edge("1", "s", "a"), edge("2", "s", "b")},
	}

	errs := ValidateFlow(flow, testRegistry(), ValidateOptions{})
	if len(errs) != 1 || errs[0].Code != CodeInvalidOutgoingEdgeCount {
		t.Fatalf("expected single INVALID_OUTGOING_EDGE_COUNT, got %v", errs)
	}
	want := `Node "s" of type "start" has 2 outgoing edges and must satisfy min=1 max=1.`
	if errs[0].Message != want {
		t.Errorf("expected %q, got %q", want, errs[0].Message)
	}
}

func TestValidateFlow_IncompleteBranches(t *testing.T) {
	flow := approvalFlow()
	// Убираем ветку "false"
	flow.Nodes = flow.Nodes[:4]
	flow.Edges = flow.Edges[:3]

	errs := ValidateFlow(flow, testRegistry(), ValidateOptions{})

	if !hasCode(errs, CodeIncompleteDecisionBranches) {
		t.Fatalf("expected INCOMPLETE_DECISION_BRANCHES, got %v", codes(errs))
	}
	for _, e := range errs {
		if e.Code == CodeIncompleteDecisionBranches {
			if e.SubjectID != "decision-1" {
				t.Errorf("expected subject decision-1, got %s", e.SubjectID)
			}
			if !strings.Contains(e.Message, `"false"`) {
				t.Errorf("message should name the missing branch: %s", e.Message)
			}
		}
	}
}

func TestValidateFlow_Cycle(t *testing.T) {
	flow := &domain.Flow{
		ID: "f", Name: "f", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{node("A", "action"), node("B", "action")},
		Edges: []domain.FlowEdge{edge("1", "A", "B"), edge("2", "B", "A")},
	}

	errs := ValidateFlow(flow, testRegistry(), ValidateOptions{})
	if len(errs) != 1 || errs[0].Code != CodeCycleDetected {
		t.Fatalf("expected single CYCLE_DETECTED, got %v", errs)
	}
	if errs[0].SubjectID != "" {
		t.Errorf("CYCLE_DETECTED must have no subject, got %q", errs[0].SubjectID)
	}

	if errs := ValidateFlow(flow, testRegistry(), ValidateOptions{AllowCycles: true}); len(errs) != 0 {
		t.Errorf("expected no errors with AllowCycles, got %v", errs)
	}
}

func TestHasCycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  bool
	}{
		{"empty", nil, nil, false},
		{"single node", []string{"A"}, nil, false},
		{"self loop", []string{"A"}, [][2]string{{"A", "A"}}, true},
		{"self loop after chain", []string{"A", "B"}, [][2]string{{"A", "B"}, {"B", "B"}}, true},
		{"two node cycle", []string{"A", "B"}, [][2]string{{"A", "B"}, {"B", "A"}}, true},
		{
			"multi hop back edge",
			[]string{"A", "B", "C", "D"},
			[][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "B"}},
			true,
		},
		{
			"cycle reachable only from later node",
			[]string{"A", "B", "C"},
			[][2]string{{"B", "C"}, {"C", "B"}},
			true,
		},
		{
			"diamond is not a cycle",
			[]string{"A", "B", "C", "D"},
			[][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}},
			false,
		},
		{
			"cross edge into finished subtree",
			[]string{"A", "B", "C"},
			[][2]string{{"A", "B"}, {"C", "B"}, {"A", "C"}},
			false,
		},
		{"parallel edges", []string{"A", "B"}, [][2]string{{"A", "B"}, {"A", "B"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &domain.Flow{}
			for _, id := range tt.nodes {
				flow.Nodes = append(flow.Nodes, node(id, "action"))
			}
			for i, e := range tt.edges {
				flow.Edges = append(flow.Edges, edge(string(rune('a'+i)), e[0], e[1]))
			}

			if got := HasCycle(flow); got != tt.want {
				t.Errorf("HasCycle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate_ReturnsJoinedError(t *testing.T) {
	flow := approvalFlow()
	flow.Edges = append(flow.Edges, edge("x", "ghost", "end-ok"))

	err := Validate(flow, testRegistry(), ValidateOptions{})
	if !errors.Is(err, ErrFlowInvalid) {
		t.Fatalf("expected ErrFlowInvalid, got %v", err)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 {
		t.Fatalf("expected 1 validation error, got %v", err)
	}
}

func TestJoinMessages(t *testing.T) {
	got := JoinMessages([]ValidationError{{Message: "a"}, {Message: "b"}})
	if got != "a; b" {
		t.Errorf("expected %q, got %q", "a; b", got)
	}
}
