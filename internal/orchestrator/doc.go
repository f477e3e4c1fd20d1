// Package orchestrator содержит движок выполнения flow.
//
// Engine — "мозг" flowgen: получает провалидированный flow и контекст,
// обходит граф алгоритмом Кана и выполняет узлы по одному через
// внешний NodeExecutor, применяя политику каждого узла:
//   - timeoutMs      — ограничение времени одной попытки
//   - retryMax       — число повторов для восстанавливаемых ошибок
//   - retryBackoffMs — фиксированная задержка между повторами
//   - idempotencyKey — повторное использование чекпоинта узла
//
// Каждый шаг пишется в журнал событий (RunRepository.AppendEvent),
// в конце сохраняется снимок FlowRun. Run всегда возвращает Result;
// ошибки выполнения — данные, а не error.
package orchestrator
