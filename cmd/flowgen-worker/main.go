// flowgen-worker — выполняет заявки на запуск flow.
//
// Worker:
//   - Получает run.requested из очереди runs.pending (если есть RabbitMQ)
//   - Периодически забирает PENDING-заявки из базы
//   - Выполняет flow движком и сохраняет журнал и снимок run
//
// Несколько воркеров безопасно работают параллельно: заявку
// забирает тот, кто первым перевёл её в RUNNING.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowgen/internal/mq"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/telemetry"
	"github.com/shaiso/flowgen/internal/tools"
	"github.com/shaiso/flowgen/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting flowgen-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	definitions := registry.NewDefault()

	var runs orchestrator.RunRepository = repo.NewRunRepo(pool)

	// RabbitMQ
	var conn *mq.Connection
	if amqpURL := mq.URLFromEnv(); amqpURL != "" {
		conn, err = mq.NewConnection(amqpURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
			conn = nil
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			runs = mq.NewEventFanout(runs, mq.NewPublisher(conn, logger), logger)
		}
	}

	allowCycles, _ := strconv.ParseBool(os.Getenv("FLOWGEN_ALLOW_CYCLES"))

	eng := orchestrator.New(orchestrator.Config{
		Definitions: definitions,
		Executor:    tools.NewNodeExecutor(definitions, tools.DefaultRegistry(), logger),
		Repository:  runs,
		AllowCycles: allowCycles,
		Metrics:     metrics,
		Logger:      logger,
	})

	var pollInterval time.Duration
	if v := os.Getenv("WORKER_POLL_INTERVAL"); v != "" {
		if pollInterval, err = time.ParseDuration(v); err != nil {
			logger.Warn("invalid WORKER_POLL_INTERVAL, using default", "value", v, "error", err)
		}
	}

	w := worker.New(worker.Config{
		Requests:     repo.NewRequestRepo(pool),
		Flows:        repo.NewFlowRepo(pool),
		Runs:         runs,
		Engine:       eng,
		Definitions:  definitions,
		Conn:         conn,
		PollInterval: pollInterval,
		Metrics:      metrics,
		Logger:       logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8082"
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	w.Stop()
	logger.Info("flowgen-worker stopped")
}
