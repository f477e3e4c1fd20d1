package domain

// RuntimeKind — категория типа узла.
//
// Вид определяет допустимое количество входящих и исходящих рёбер.
// Новые типы узлов добавляются только записью в реестре;
// набор видов закрыт, но неизвестный вид обрабатывается по портам.
type RuntimeKind string

const (
	// RuntimeKindTrigger — точка входа: нет входящих, ровно одно исходящее.
	RuntimeKindTrigger RuntimeKind = "trigger"

	// RuntimeKindTask — обычный шаг.
	RuntimeKindTask RuntimeKind = "task"

	// RuntimeKindBranch — ветвление: одно ребро на каждый выходной порт.
	RuntimeKindBranch RuntimeKind = "branch"

	// RuntimeKindTerminal — конец: исходящих рёбер нет.
	RuntimeKindTerminal RuntimeKind = "terminal"

	// RuntimeKindTool — узел, выполняемый инструментом из реестра tools.
	RuntimeKindTool RuntimeKind = "tool"

	// RuntimeKindFunction — узел, выполняемый локальной функцией.
	RuntimeKindFunction RuntimeKind = "function"
)

// PortDefinition — именованный порт узла.
type PortDefinition struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// NodeDefinition — описание типа узла в реестре.
//
// Регистрируется один раз при старте и дальше не меняется.
// Ключ — Type; повторная регистрация того же типа перезаписывает предыдущую.
type NodeDefinition struct {
	// Type — ключ типа ("start", "action", "tool-node", ...).
	Type string `json:"type" yaml:"type"`

	// DisplayName — имя для UI и CLI.
	DisplayName string `json:"displayName" yaml:"displayName"`

	// Category — группа ("control", "task", "integration").
	Category string `json:"category" yaml:"category"`

	// InputPorts / OutputPorts — упорядоченные порты.
	InputPorts  []PortDefinition `json:"inputPorts" yaml:"inputPorts"`
	OutputPorts []PortDefinition `json:"outputPorts" yaml:"outputPorts"`

	// ConfigSchema — JSON Schema конфигурации узла.
	// Значения properties.*.default подставляются в config перед выполнением.
	ConfigSchema map[string]any `json:"configSchema,omitempty" yaml:"configSchema,omitempty"`

	// InputSchema / OutputSchema — описательные схемы входа и выхода.
	InputSchema  map[string]any `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`

	// RuntimeKind — вид, управляющий правилами соединений.
	RuntimeKind RuntimeKind `json:"runtimeKind" yaml:"runtimeKind"`

	// Version — версия определения.
	Version string `json:"version" yaml:"version"`
}

// OutputPortNames возвращает имена выходных портов в порядке объявления.
func (d *NodeDefinition) OutputPortNames() []string {
	names := make([]string, 0, len(d.OutputPorts))
	for _, p := range d.OutputPorts {
		names = append(names, p.Name)
	}
	return names
}
