package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/flowgen/internal/domain"
)

// Registry — реестр определений узлов.
//
// Типизированная таблица поиска: ключ — NodeDefinition.Type.
// Содержимое схем не проверяется. Потокобезопасен.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]domain.NodeDefinition
}

// New создаёт пустой реестр.
func New() *Registry {
	return &Registry{
		definitions: make(map[string]domain.NodeDefinition),
	}
}

// NewDefault создаёт реестр со всеми стандартными определениями.
func NewDefault() *Registry {
	r := New()
	for _, def := range DefaultDefinitions() {
		r.Register(def)
	}
	return r
}

// Register регистрирует определение.
// Если тип уже зарегистрирован, он будет перезаписан.
func (r *Registry) Register(def domain.NodeDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.Type] = def
}

// Definition возвращает определение по типу.
func (r *Registry) Definition(nodeType string) (domain.NodeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[nodeType]
	return def, ok
}

// Get возвращает определение по типу или ErrUnknownNodeType.
func (r *Registry) Get(nodeType string) (domain.NodeDefinition, error) {
	def, ok := r.Definition(nodeType)
	if !ok {
		return domain.NodeDefinition{}, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}
	return def, nil
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(nodeType string) bool {
	_, ok := r.Definition(nodeType)
	return ok
}

// List возвращает все определения, отсортированные по типу.
func (r *Registry) List() []domain.NodeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.NodeDefinition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Type < defs[j].Type })
	return defs
}

// Types возвращает список зарегистрированных типов.
func (r *Registry) Types() []string {
	defs := r.List()
	types := make([]string, len(defs))
	for i, def := range defs {
		types[i] = def.Type
	}
	return types
}

// Count возвращает количество определений.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}
