package registry

import (
	"errors"
	"testing"

	"github.com/shaiso/flowgen/internal/domain"
)

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := New()
	r.Register(domain.NodeDefinition{Type: "custom", RuntimeKind: domain.RuntimeKindTask, Version: "1.0.0"})
	r.Register(domain.NodeDefinition{Type: "custom", RuntimeKind: domain.RuntimeKindTerminal, Version: "2.0.0"})

	def, ok := r.Definition("custom")
	if !ok {
		t.Fatal("expected definition to be registered")
	}
	if def.RuntimeKind != domain.RuntimeKindTerminal || def.Version != "2.0.0" {
		t.Errorf("last registration should win, got %+v", def)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 definition, got %d", r.Count())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := New()

	_, err := r.Get("missing")
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}
	if r.Has("missing") {
		t.Error("Has should return false for unknown type")
	}
}

func TestNewDefault(t *testing.T) {
	r := NewDefault()

	want := []string{"action", "decision", "end", "function-node", "start", "tool-node"}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("expected %d types, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("types[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	decision, _ := r.Definition("decision")
	if decision.RuntimeKind != domain.RuntimeKindBranch {
		t.Errorf("decision should be branch kind, got %s", decision.RuntimeKind)
	}
	ports := decision.OutputPortNames()
	if len(ports) != 2 || ports[0] != "true" || ports[1] != "false" {
		t.Errorf("unexpected decision ports: %v", ports)
	}
}
