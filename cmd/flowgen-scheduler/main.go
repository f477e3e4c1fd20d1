// flowgen-scheduler — создаёт заявки на запуск по расписаниям.
//
// Тики выполняет только лидер: лидерство держится через
// pg_try_advisory_lock, остальные экземпляры ждут.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowgen/internal/mq"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/scheduler"
	"github.com/shaiso/flowgen/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting flowgen-scheduler")

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

	cfg := scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Requests:  repo.NewRequestRepo(pool),
		Flows:     repo.NewFlowRepo(pool),
		Leader:    repo.NewAdvisoryLock(pool, repo.SchedulerLockKey),
		Logger:    logger,
	}

	if amqpURL := mq.URLFromEnv(); amqpURL != "" {
		conn, err := mq.NewConnection(amqpURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, requests will be picked up by polling", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			cfg.Publisher = mq.NewPublisher(conn, logger)
		}
	}

	if v := os.Getenv("SCHEDULER_TICK"); v != "" {
		if cfg.Tick, err = time.ParseDuration(v); err != nil {
			logger.Warn("invalid SCHEDULER_TICK, using default", "value", v, "error", err)
		}
	}

	sched := scheduler.New(cfg)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8081"
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

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("flowgen-scheduler stopped")
}
