package tools

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр инструментов по имени.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// DefaultRegistry создаёт реестр со встроенными инструментами:
// delay и transform. HTTP-инструменты привязаны к конкретному
// endpoint и регистрируются отдельно.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewDelayTool())
	r.Register(NewTransformTool())
	return r
}

// Register регистрирует инструмент.
// Инструмент с тем же именем перезаписывается.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get возвращает инструмент по имени.
// Возвращает ErrToolNotFound, если инструмента нет.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// Has проверяет, зарегистрирован ли инструмент.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tools[name]
	return exists
}

// List возвращает инструменты, отсортированные по имени.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Names возвращает имена инструментов.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.Name()
	}
	return names
}

// Count возвращает количество инструментов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Unregister удаляет инструмент.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}
