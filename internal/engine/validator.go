package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/flowgen/internal/domain"
)

// ValidateOptions — настройки валидации.
type ValidateOptions struct {
	// AllowCycles отключает поиск циклов.
	// Flow с циклом тогда упадёт уже на планировании (FLOW_SCHEDULING_ERROR).
	AllowCycles bool
}

// ValidateFlow выполняет структурную валидацию flow.
//
// Проверяет:
// - Уникальность ID узлов
// - Что концы каждого ребра существуют
// - Допустимость каждого соединения по правилам видов узлов
// - Количество исходящих рёбер (min/max)
// - Полноту веток у узлов вида branch
// - Отсутствие циклов (если не AllowCycles)
//
// Ошибки накапливаются, а не возвращаются по первой.
// Пустой результат означает валидный flow.
func ValidateFlow(flow *domain.Flow, lookup DefinitionLookup, opts ValidateOptions) []ValidationError {
	var errs []ValidationError

	// 0. Уникальность ID; при повторе учитывается первый узел
	nodes := make(map[string]*domain.FlowNode, len(flow.Nodes))
	for i := range flow.Nodes {
		id := flow.Nodes[i].ID
		if _, exists := nodes[id]; exists {
			errs = append(errs, ValidationError{
				Code:      CodeDuplicateNodeID,
				Message:   fmt.Sprintf("Node ID %q is used by more than one node.", id),
				SubjectID: id,
			})
			continue
		}
		nodes[id] = &flow.Nodes[i]
	}

	// 1–2. Рёбра: существование концов и допустимость соединения
	for _, edge := range flow.Edges {
		source, hasSource := nodes[edge.SourceNodeID]
		target, hasTarget := nodes[edge.TargetNodeID]

		if !hasSource {
			errs = append(errs, ValidationError{
				Code:      CodeEdgeWithUnknownSource,
				Message:   fmt.Sprintf("Edge %q references source node %q that does not exist.", edge.ID, edge.SourceNodeID),
				SubjectID: edge.ID,
			})
		}
		if !hasTarget {
			errs = append(errs, ValidationError{
				Code:      CodeEdgeWithUnknownTarget,
				Message:   fmt.Sprintf("Edge %q references target node %q that does not exist.", edge.ID, edge.TargetNodeID),
				SubjectID: edge.ID,
			})
		}
		if !hasSource || !hasTarget {
			continue
		}

		if !IsValidConnection(source, target, lookup) {
			errs = append(errs, ValidationError{
				Code: CodeInvalidNodeConnection,
				Message: fmt.Sprintf("Invalid connection from %q node %q to %q node %q.",
					source.NodeType, source.ID, target.NodeType, target.ID),
				SubjectID: edge.ID,
			})
		}
	}

	// 3. Количество исходящих рёбер
	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		rule := ConnectionRuleFor(node, lookup)
		outgoing := CountNodeConnections(node.ID, flow.Edges).Outgoing

		if violatesBounds(outgoing, rule) {
			errs = append(errs, ValidationError{
				Code: CodeInvalidOutgoingEdgeCount,
				Message: fmt.Sprintf("Node %q of type %q has %d outgoing edges and must satisfy min=%s max=%s.",
					node.ID, node.NodeType, outgoing, boundString(rule.MinOutgoing), boundString(rule.MaxOutgoing)),
				SubjectID: node.ID,
			})
		}
	}

	// 4. Полнота веток
	errs = append(errs, validateBranches(flow, lookup)...)

	// 5. Циклы
	if !opts.AllowCycles && HasCycle(flow) {
		errs = append(errs, ValidationError{
			Code:    CodeCycleDetected,
			Message: "The flow contains a cycle and cycles are not allowed.",
		})
	}

	return errs
}

// Validate — обёртка над ValidateFlow, возвращающая error.
// Возвращает ValidationErrors или nil.
func Validate(flow *domain.Flow, lookup DefinitionLookup, opts ValidateOptions) error {
	if errs := ValidateFlow(flow, lookup, opts); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

func validateBranches(flow *domain.Flow, lookup DefinitionLookup) []ValidationError {
	var errs []ValidationError

	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		def, ok := lookup.Definition(node.NodeType)
		if !ok || def.RuntimeKind != domain.RuntimeKindBranch {
			continue
		}

		present := make(map[string]bool)
		for _, edge := range flow.Edges {
			if edge.SourceNodeID == node.ID && edge.Branch != "" {
				present[edge.Branch] = true
			}
		}

		var missing []string
		for _, port := range def.OutputPortNames() {
			if !present[port] {
				missing = append(missing, strconv.Quote(port))
			}
		}
		if len(missing) == 0 {
			continue
		}

		errs = append(errs, ValidationError{
			Code: CodeIncompleteDecisionBranches,
			Message: fmt.Sprintf("Decision node %q must define outgoing edges for branches: %s.",
				node.ID, strings.Join(missing, ", ")),
			SubjectID: node.ID,
		})
	}

	return errs
}

// HasCycle ищет цикл обходом в глубину.
//
// Узел помечается "в стеке" при входе и снимается только при выходе
// из него самого. Соседа проверяем на нахождение в стеке до спуска
// в него: так обнаруживаются и петли A→A, и длинные обратные рёбра.
func HasCycle(flow *domain.Flow) bool {
	const (
		unvisited = iota
		onStack
		done
	)

	adjacency := make(map[string][]string, len(flow.Nodes))
	for _, edge := range flow.Edges {
		adjacency[edge.SourceNodeID] = append(adjacency[edge.SourceNodeID], edge.TargetNodeID)
	}

	state := make(map[string]int, len(flow.Nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = onStack
		for _, next := range adjacency[id] {
			switch state[next] {
			case onStack:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, node := range flow.Nodes {
		if state[node.ID] == unvisited && visit(node.ID) {
			return true
		}
	}
	return false
}

func violatesBounds(count int, rule ConnectionRule) bool {
	if rule.MinOutgoing != nil && count < *rule.MinOutgoing {
		return true
	}
	if rule.MaxOutgoing != nil && count > *rule.MaxOutgoing {
		return true
	}
	return false
}

func boundString(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
