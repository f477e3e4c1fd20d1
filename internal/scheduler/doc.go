// Package scheduler создаёт заявки на запуск flow по расписаниям.
//
// Каждый тик Scheduler выбирает созревшие расписания (enabled,
// nextDueAt <= now), создаёт для каждого RunRequest с ключом
// идемпотентности "{schedule_id}_{unix}", публикует заявку
// в flowgen.runs и сдвигает nextDueAt.
//
//   - scheduler.go — Tick, Run и обработка одного расписания
//   - cron.go      — cron-выражения и следующее время запуска
//
// Лидерство между экземплярами решает Leader
// (в сервисе — repo.AdvisoryLock поверх pg_try_advisory_lock).
package scheduler
