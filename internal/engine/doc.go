// Package engine содержит всё, что нужно понять о flow до его запуска.
//
// Включает:
//   - rules.go     — правила соединений по видам узлов
//   - validator.go — структурная валидация flow (включая поиск циклов)
//   - migration.go — пайплайн миграций схемы
//   - graph.go     — граф планирования (входящие степени, последователи)
//   - parser.go    — разбор JSON/YAML, миграция и проверка схемы
//   - template.go  — рендеринг конфигурации узлов ({{ .Input.x }})
//
// Выполнение узлов — в пакете orchestrator.
package engine
