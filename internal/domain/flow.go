package domain

// FlowSchemaVersion — текущая версия формата хранения flow.
//
// Flow с другой версией сначала проходит через пайплайн миграций
// (engine.Pipeline), и только потом попадает в валидатор и движок.
const FlowSchemaVersion = "1.0.0"

// DefaultNodeVersion — версия узла по умолчанию.
const DefaultNodeVersion = "1.0.0"

// Ключи metadata узла, из которых выводится политика выполнения.
// Все значения — строки, числовые разбираются как десятичные.
const (
	MetaTimeoutMs      = "timeoutMs"
	MetaRetryMax       = "retryMax"
	MetaRetryBackoffMs = "retryBackoffMs"
	MetaIdempotencyKey = "idempotencyKey"
)

// Flow — описание процесса: типизированные узлы и направленные рёбра.
//
// Flow — это "программа" для flowgen. Движок получает flow только после
// миграции и успешной валидации.
//
// Инвариант: источник и цель каждого ребра ссылаются на узлы этого же flow.
type Flow struct {
	// ID — идентификатор flow (например, "order-approval").
	ID string `json:"id" yaml:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name" yaml:"name"`

	// SchemaVersion — версия формата (см. FlowSchemaVersion).
	SchemaVersion string `json:"schemaVersion" yaml:"schemaVersion"`

	// Nodes — упорядоченный список узлов. ID узлов уникальны.
	// Порядок важен: в нём засевается очередь готовых узлов.
	Nodes []FlowNode `json:"nodes" yaml:"nodes"`

	// Edges — направленные рёбра между узлами.
	Edges []FlowEdge `json:"edges" yaml:"edges"`
}

// FlowNode — узел flow.
type FlowNode struct {
	// ID — уникальный в рамках flow идентификатор.
	ID string `json:"id" yaml:"id"`

	// Label — подпись узла.
	Label string `json:"label" yaml:"label"`

	// NodeType — ссылка на NodeDefinition.Type ("start", "action", "decision", ...).
	NodeType string `json:"nodeType" yaml:"nodeType"`

	// Version — версия определения узла.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Config — открытый документ конфигурации узла.
	// Для tool-узлов содержит toolName и параметры инструмента.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// Position — координаты на холсте. На выполнение не влияют.
	Position Position `json:"position" yaml:"position"`

	// Condition — выражение для узлов вида branch.
	// Например: "context.input.amount > 100"
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Metadata — строковые подсказки политики выполнения:
	// timeoutMs, retryMax, retryBackoffMs, idempotencyKey.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Position — координаты узла на холсте.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// FlowEdge — направленное ребро.
type FlowEdge struct {
	ID           string `json:"id" yaml:"id"`
	SourceNodeID string `json:"sourceNodeId" yaml:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId" yaml:"targetNodeId"`

	// Branch — метка ветки ("true"/"false" или имя выходного порта).
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// Node возвращает узел по ID.
func (f *Flow) Node(id string) (*FlowNode, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Meta возвращает значение из metadata узла.
func (n *FlowNode) Meta(key string) (string, bool) {
	if n.Metadata == nil {
		return "", false
	}
	v, ok := n.Metadata[key]
	return v, ok
}
