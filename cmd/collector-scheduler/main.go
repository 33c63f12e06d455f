// Collector Scheduler — диспетчер шагов взыскания.
//
// Scheduler:
//   - По расписанию cron (DISPATCH_CRON, DISPATCH_TIMEZONE) выполняет проход
//   - Выбирает шаги, время которых наступило
//   - Публикует step.due для workers или, без брокера, выполняет шаг сам
//
// Проход выполняет только лидер (pg_try_advisory_lock или ключ Redis,
// если задан REDIS_URL), поэтому экземпляров scheduler может быть несколько.
//
// HTTP: /healthz, /metrics и API оператора /api/v1.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Collector/internal/api"
	"github.com/shaiso/Collector/internal/app"
	"github.com/shaiso/Collector/internal/config"
	"github.com/shaiso/Collector/internal/scheduler"
	"github.com/shaiso/Collector/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting collector-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}
	schedule, err := scheduler.ParseSchedule(cfg.DispatchCron, loc)
	if err != nil {
		logger.Error("invalid dispatch schedule", "error", err)
		os.Exit(1)
	}

	svc, err := app.Open(ctx, cfg, logger, app.Options{Broker: true, Name: "collector-scheduler"})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	schedCfg := scheduler.Config{
		Steps:     svc.Steps,
		Performer: svc.Engine,
		Logger:    logger,
		BatchSize: cfg.DispatchBatchSize,
	}
	if svc.Publisher != nil {
		schedCfg.Publisher = svc.Publisher
	}

	var lock scheduler.Locker = scheduler.NewPgLeader(svc.Pool, scheduler.LockKey)
	if cfg.RedisURL != "" {
		rdb, err := scheduler.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		lock = scheduler.NewRedisLeader(rdb, scheduler.LeaderKey, cfg.LeaderTTL)
		logger.Info("leader election via redis", "key", scheduler.LeaderKey, "ttl", cfg.LeaderTTL)
	}

	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		Scheduler: scheduler.New(schedCfg),
		Schedule:  schedule,
		Lock:      lock,
		Logger:    logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatch runner stopped", "error", err)
			cancel()
		}
	}()

	// HTTP mux: /healthz + /metrics + API оператора
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	api.NewHandler(api.Config{
		Cases:     svc.Cases,
		Steps:     svc.Steps,
		Engine:    svc.Engine,
		Templates: svc.Catalog,
		Calendar:  svc.Calendar,
		Logger:    logger,
	}).RegisterRoutes(mux)

	serveHTTP(ctx, cancel, ":"+cfg.SchedPort, mux, logger)

	<-done
	logger.Info("collector-scheduler stopped")
}

// serveHTTP обслуживает mux до отмены ctx.
func serveHTTP(ctx context.Context, cancel context.CancelFunc, addr string, mux *http.ServeMux, logger *slog.Logger) {
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", "error", err)
		cancel()
	}
}
