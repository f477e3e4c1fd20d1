// Package api содержит HTTP API flowgen.
//
// Структура:
//   - handler.go          — Handler с зависимостями, /healthz, /definitions
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — recovery, метрики, логирование
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - flow_handler.go     — CRUD, import/export, validate, migrate
//   - run_handler.go      — запуск (queued или inline), снимки, журнал
//   - schedule_handler.go — расписания
//
// Документы flow принимаются в JSON и YAML любой поддерживаемой версии
// схемы: перед сохранением они мигрируются и проходят проверку схемы.
package api
