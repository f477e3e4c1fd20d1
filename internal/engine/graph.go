package engine

import (
	"github.com/shaiso/flowgen/internal/domain"
)

// SchedulingGraph — граф для топологического выполнения.
//
// Строится из провалидированного flow и не меняется после построения:
// движок копирует IncomingCount перед обходом.
type SchedulingGraph struct {
	// NodesByID — узлы flow по ID.
	NodesByID map[string]*domain.FlowNode

	// IncomingCount — входящая степень каждого узла (0 для всех изначально).
	IncomingCount map[string]int

	// Dependents — прямые последователи узла.
	// Параллельные рёбра A→B дают B в списке дважды, как и в IncomingCount.
	Dependents map[string][]string

	// Order — ID узлов в порядке объявления во flow.
	Order []string
}

// BuildSchedulingGraph строит граф из рёбер flow.
//
// Рёбра с несуществующими концами и повторные ID узлов пропускаются
// (остаётся первый узел): такие flow отсекаются валидатором раньше.
func BuildSchedulingGraph(flow *domain.Flow) *SchedulingGraph {
	g := &SchedulingGraph{
		NodesByID:     make(map[string]*domain.FlowNode, len(flow.Nodes)),
		IncomingCount: make(map[string]int, len(flow.Nodes)),
		Dependents:    make(map[string][]string, len(flow.Nodes)),
		Order:         make([]string, 0, len(flow.Nodes)),
	}

	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		if _, exists := g.NodesByID[node.ID]; exists {
			continue
		}
		g.NodesByID[node.ID] = node
		g.IncomingCount[node.ID] = 0
		g.Order = append(g.Order, node.ID)
	}

	for _, edge := range flow.Edges {
		if _, ok := g.NodesByID[edge.SourceNodeID]; !ok {
			continue
		}
		if _, ok := g.NodesByID[edge.TargetNodeID]; !ok {
			continue
		}
		g.Dependents[edge.SourceNodeID] = append(g.Dependents[edge.SourceNodeID], edge.TargetNodeID)
		g.IncomingCount[edge.TargetNodeID]++
	}

	return g
}

// Roots возвращает узлы без входящих рёбер в порядке объявления.
func (g *SchedulingGraph) Roots() []string {
	roots := make([]string, 0)
	for _, id := range g.Order {
		if g.IncomingCount[id] == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Size возвращает количество узлов.
func (g *SchedulingGraph) Size() int {
	return len(g.Order)
}

// TopologicalOrder выполняет топологическую сортировку (алгоритм Кана, FIFO).
//
// Порядок совпадает с порядком, в котором движок запускает узлы.
// Второе значение false, если обработаны не все узлы (есть цикл).
func (g *SchedulingGraph) TopologicalOrder() ([]string, bool) {
	// Копируем входящие степени, чтобы не модифицировать граф
	inDegree := make(map[string]int, len(g.IncomingCount))
	for id, n := range g.IncomingCount {
		inDegree[id] = n
	}

	queue := g.Roots()
	order := make([]string, 0, g.Size())

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dep := range g.Dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	return order, len(order) == g.Size()
}

// Upstream возвращает ID источников всех рёбер, входящих в узел, в порядке рёбер.
func Upstream(flow *domain.Flow, nodeID string) []string {
	ids := make([]string, 0)
	for _, edge := range flow.Edges {
		if edge.TargetNodeID == nodeID {
			ids = append(ids, edge.SourceNodeID)
		}
	}
	return ids
}
