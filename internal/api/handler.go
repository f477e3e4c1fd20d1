package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/telemetry"
)

// RunPublisher уведомляет воркеров о заявке в режиме очереди.
type RunPublisher interface {
	PublishRunRequested(ctx context.Context, req *domain.RunRequest) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows       repo.FlowStore
	runs        orchestrator.RunRepository
	requests    repo.RequestStore
	schedules   repo.ScheduleStore
	publisher   RunPublisher
	engine      *orchestrator.Engine
	definitions *registry.Registry

	metrics        *telemetry.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Flows     repo.FlowStore
	Runs      orchestrator.RunRepository
	Requests  repo.RequestStore
	Schedules repo.ScheduleStore

	// Publisher — опционально; без него заявки подхватывает polling воркера.
	Publisher RunPublisher

	// Engine — движок для синхронных run (mode=inline).
	Engine *orchestrator.Engine

	// Definitions — реестр типов узлов (default: registry.NewDefault()).
	Definitions *registry.Registry

	Metrics *telemetry.Metrics

	// MetricsHandler отдаётся на /metrics (обычно promhttp.Handler()).
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	definitions := cfg.Definitions
	if definitions == nil {
		definitions = registry.NewDefault()
	}

	return &Handler{
		flows:          cfg.Flows,
		runs:           cfg.Runs,
		requests:       cfg.Requests,
		schedules:      cfg.Schedules,
		publisher:      cfg.Publisher,
		engine:         cfg.Engine,
		definitions:    definitions,
		metrics:        cfg.Metrics,
		metricsHandler: cfg.MetricsHandler,
		logger:         logger,
	}
}

// Healthz — проверка живости.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListDefinitions возвращает зарегистрированные типы узлов.
// GET /api/v1/definitions
func (h *Handler) ListDefinitions(w http.ResponseWriter, _ *http.Request) {
	defs := h.definitions.List()
	List(w, defs, len(defs))
}
