// Package telemetry — логирование и метрики flowgen.
//
// logging.go настраивает slog (LOG_LEVEL, LOG_FORMAT) и переносит
// логгер через context: движок кладёт в ctx логгер с run_id, trace_id
// и node_id, инструменты достают его через FromContextOr.
//
// metrics.go описывает Prometheus-метрики. Registerer передаётся
// явно, поэтому тесты работают со своим prometheus.NewRegistry(),
// а сервисы отдают prometheus.DefaultRegisterer на /metrics.
package telemetry
