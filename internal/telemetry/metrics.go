package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — метрики flowgen.
//
// Все методы безопасны для nil-получателя: компоненты, собранные
// без метрик (тесты, CLI), просто ничего не пишут.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	nodeExecutions   prometheus.Counter
	nodeRetries      prometheus.Counter
	nodeTimeouts     prometheus.Counter
	nodeFailures     *prometheus.CounterVec
	repositoryErrors *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	requestsHandled  *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// В тестах передаётся prometheus.NewRegistry(), в сервисах — prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_runs_total",
			Help: "Total number of finished flow runs by status",
		}, []string{"status"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgen_run_duration_seconds",
			Help:    "Flow run wall-clock duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"status"}),
		nodeExecutions: f.NewCounter(prometheus.CounterOpts{
			Name: "flowgen_node_executions_total",
			Help: "Total number of successful node executions",
		}),
		nodeRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "flowgen_node_retries_total",
			Help: "Total number of node retry attempts",
		}),
		nodeTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "flowgen_node_timeouts_total",
			Help: "Total number of node executions that timed out",
		}),
		nodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_node_failures_total",
			Help: "Total number of failed nodes by error code",
		}, []string{"code"}),
		repositoryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_run_repository_errors_total",
			Help: "Run repository write failures by operation",
		}, []string{"operation"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "status"}),
		requestsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgen_run_requests_handled_total",
			Help: "Run requests processed by workers by result status",
		}, []string{"status"}),
	}
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// NodeSucceeded учитывает успешное выполнение узла и его повторы.
func (m *Metrics) NodeSucceeded(retries int) {
	if m == nil {
		return
	}
	m.nodeExecutions.Inc()
	m.nodeRetries.Add(float64(retries))
}

// NodeFailed учитывает упавший узел.
func (m *Metrics) NodeFailed(code string, retries int, timedOut bool) {
	if m == nil {
		return
	}
	m.nodeFailures.WithLabelValues(code).Inc()
	m.nodeRetries.Add(float64(retries))
	if timedOut {
		m.nodeTimeouts.Inc()
	}
}

// RepositoryError учитывает ошибку записи в хранилище run.
func (m *Metrics) RepositoryError(operation string) {
	if m == nil {
		return
	}
	m.repositoryErrors.WithLabelValues(operation).Inc()
}

// HTTPRequest учитывает HTTP-запрос.
func (m *Metrics) HTTPRequest(method, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// RequestHandled учитывает заявку, обработанную воркером.
func (m *Metrics) RequestHandled(status string) {
	if m == nil {
		return
	}
	m.requestsHandled.WithLabelValues(status).Inc()
}
