// Package cli реализует инструмент командной строки flowgen.
//
// # Обзор
//
// Команды делятся на две группы.
//
// Локальные работают с файлом flow без сервера и базы: разбор
// (JSON или YAML), миграция, валидация и выполнение движком
// в процессе CLI с журналом в памяти.
//
//	flowgen init                     пример flow в flow.json
//	flowgen validate flow.yaml       миграция, схема, структура
//	flowgen migrate old.json         документ на текущей версии схемы
//	flowgen export --format yaml     JSON ↔ YAML
//	flowgen plan                     порядок выполнения узлов
//	flowgen node add action --id notify
//	flowgen edge add start notify
//	flowgen clear                    удалить flow.json
//	flowgen run local --input approved=true --events
//
// Удалённые обращаются к flowgen API через Client:
//   - flow: list, import, show, delete, export, validate
//   - run: list, start, show, events
//   - schedule: list, create, show, update, delete, enable, disable
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Разбирает обёртки DataResponse, ListResponse
// и ErrorResponse; ошибка сервера возвращается как *APIError.
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения — в stderr:
// flowgen flow list --json | jq .
//
// ## Local
//
// Реестр определений, инструменты и движок для локальных команд.
//
// Группы команд создаются фабриками (NewFlowCmd, NewRunCmd, ...),
// принимающими замыкания clientFn, localFn и outputFn: они вызываются
// после разбора PersistentFlags.
package cli
