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

	"carprice/internal/config"
	"carprice/internal/handler"
	"carprice/internal/messaging"
	"carprice/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.ParseAuditor()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting prediction auditor")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	rmqCancel()
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()
	slog.Info("connected to rabbitmq")

	msgs, err := rmq.ConsumeAudit(cfg.Prefetch)
	if err != nil {
		slog.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics listening", slog.String("port", cfg.MetricsPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	logger := observability.FromContext(ctx)
	consumer := messaging.NewAuditConsumer(messaging.LogAuditor{Logger: logger}, logger)

	slog.Info("auditor is ready to process prediction events")
	if err := consumer.Run(ctx, msgs); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("consumer stopped", slog.String("error", err.Error()))
	}

	slog.Info("shutting down prediction auditor")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("prediction auditor stopped")
}
