// Package worker выполняет заявки на запуск flow.
//
// # Обзор
//
// Worker — stateless процесс. Он берёт заявку (domain.RunRequest),
// загружает flow, прогоняет его через миграции и проверку схемы
// и выполняет движком orchestrator.Engine. Итог run хранится в
// RunRepository, заявка только переходит в DONE.
//
// Источники заявок:
//
//   - очередь runs.pending (сообщение run.requested)
//   - периодический опрос RequestStore.ListPending
//
// Опрос работает всегда, даже с брокером: он подбирает заявки,
// сообщения о которых потерялись или пришли пока воркер был выключен.
//
// # Пример
//
//	w := worker.New(worker.Config{
//	    Requests: requestRepo,
//	    Flows:    flowRepo,
//	    Runs:     runRepo,
//	    Engine:   eng,
//	    Conn:     mqConn,
//	    Logger:   logger,
//	})
//	w.Start(ctx)
//	defer w.Stop()
//
// # Конкурентность
//
// Заявку выполняет тот воркер, чей MarkRunning прошёл первым;
// остальные получают ErrRequestNotPending и пропускают её.
package worker
