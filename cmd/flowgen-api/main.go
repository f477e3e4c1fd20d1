// flowgen-api — HTTP API: flows, runs, schedules, определения узлов.
//
// Run по умолчанию ставится в очередь (RunRequest + сообщение в RabbitMQ),
// mode=inline выполняет flow прямо в процессе API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowgen/internal/api"
	"github.com/shaiso/flowgen/internal/mq"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/telemetry"
	"github.com/shaiso/flowgen/internal/tools"
)

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting flowgen-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
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
	logger.Info("connected to database")

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	definitions := registry.NewDefault()

	var runs orchestrator.RunRepository = repo.NewRunRepo(pool)

	cfg := api.Config{
		Flows:          repo.NewFlowRepo(pool),
		Requests:       repo.NewRequestRepo(pool),
		Schedules:      repo.NewScheduleRepo(pool),
		Definitions:    definitions,
		Metrics:        metrics,
		MetricsHandler: promhttp.Handler(),
		Logger:         logger,
	}

	// RabbitMQ опционален: без него заявки подхватывает polling воркера
	if amqpURL := mq.URLFromEnv(); amqpURL != "" {
		conn, err := mq.NewConnection(amqpURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, run requests will be polled", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			publisher := mq.NewPublisher(conn, logger)
			cfg.Publisher = publisher
			runs = mq.NewEventFanout(runs, publisher, logger)
		}
	}

	allowCycles, _ := strconv.ParseBool(os.Getenv("FLOWGEN_ALLOW_CYCLES"))

	cfg.Runs = runs
	cfg.Engine = orchestrator.New(orchestrator.Config{
		Definitions: definitions,
		Executor:    tools.NewNodeExecutor(definitions, tools.DefaultRegistry(), logger),
		Repository:  runs,
		AllowCycles: allowCycles,
		Metrics:     metrics,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	api.NewHandler(cfg).RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
