// Collector Worker — выполняет шаги взыскания.
//
// Worker:
//   - Получает step.due из RabbitMQ
//   - Выполняет шаг через движок (действия, переходы, преемники)
//   - Без брокера сам опрашивает БД (polling)
//
// Workers масштабируются горизонтально.
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

	"github.com/shaiso/Collector/internal/app"
	"github.com/shaiso/Collector/internal/config"
	"github.com/shaiso/Collector/internal/telemetry"
	"github.com/shaiso/Collector/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting collector-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := app.Open(ctx, cfg, logger, app.Options{Broker: true, Name: "collector-worker"})
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	w := worker.New(worker.Config{
		Performer:    svc.Engine,
		Steps:        svc.Steps,
		Conn:         svc.Conn,
		PollInterval: cfg.WorkerPollInterval,
		BatchSize:    cfg.DispatchBatchSize,
		Prefetch:     cfg.WorkerPrefetch,
		Logger:       logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if svc.Conn != nil && !svc.Conn.IsConnected() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("rabbitmq disconnected"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":" + cfg.WorkerPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx)

	// Останавливаем worker
	w.Stop()
	logger.Info("collector-worker stopped")
}
