package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carprice/internal/config"
	"carprice/internal/domain"
	"carprice/internal/handler"
	"carprice/internal/messaging"
	"carprice/internal/middleware"
	"carprice/internal/model"
	"carprice/internal/observability"
	"carprice/internal/repository/postgres"
	redisrepo "carprice/internal/repository/redis"
	"carprice/internal/security"
	"carprice/internal/service"
)

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting api server", slog.String("environment", cfg.Environment))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()
	slog.Info("connected to postgresql")

	if err := postgres.Migrate(connCtx, db); err != nil {
		fatal("failed to run migrations", err)
	}

	rdb, err := config.NewRedisClient(connCtx, cfg.RedisURL)
	if err != nil {
		fatal("failed to connect to redis", err)
	}
	defer rdb.Close()
	slog.Info("connected to redis")

	// The audit stream is optional: predictions are served without it.
	var (
		publisher domain.PredictionPublisher
		broker    handler.Broker
	)
	rmqCtx, rmqCancel := context.WithTimeout(ctx, 30*time.Second)
	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	rmqCancel()
	if err != nil {
		slog.Warn("rabbitmq unavailable, prediction events disabled", slog.String("error", err.Error()))
	} else {
		defer rmq.Close()
		publisher = rmq
		broker = rmq
		slog.Info("connected to rabbitmq")
	}

	userRepo, err := postgres.NewUserRepository(db)
	if err != nil {
		fatal("failed to prepare user repository", err)
	}
	predictionRepo, err := postgres.NewPredictionRepository(db)
	if err != nil {
		fatal("failed to prepare prediction repository", err)
	}

	tokens, err := security.NewTokenManager(security.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		fatal("failed to create token manager", err)
	}

	authService := service.NewAuthService(userRepo, tokens, redisrepo.NewRevocationStore(rdb, ""))
	predictionService := service.NewPredictionService(
		predictionRepo,
		model.NewClient(cfg.ModelURL, cfg.ModelTimeout),
		publisher,
	)
	catalogService := service.NewCatalogService(cfg.DataPath, redisrepo.NewCache(rdb, ""))

	router := handler.NewRouter(handler.RouterConfig{
		Auth:           handler.NewAuthHandler(authService, cfg.IsProduction()),
		Predictions:    handler.NewPredictionHandler(predictionService),
		Catalog:        handler.NewCatalogHandler(catalogService),
		Tokens:         tokens,
		DB:             db,
		Redis:          rdb,
		Broker:         broker,
		AllowedOrigins: middleware.ParseOrigins(cfg.AllowedOrigins),
		SecureCookies:  cfg.IsProduction(),
		OpenAPI:        middleware.NewOpenAPIValidatorConfig(cfg.OpenAPISpecPath, cfg.ValidateRequests),
		AuthLimiter:    middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, cfg.AuthRateBurst),
		APILimiter:     middleware.NewRateLimiter(ctx, cfg.APIRateLimit, cfg.APIRateBurst),
	})

	go recordDBStats(ctx, db)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ModelTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("server error", slog.String("error", err.Error()))
	}

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("server stopped gracefully")
}

// recordDBStats exports connection pool gauges every 15s.
func recordDBStats(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RecordDBStats(db.Stats())
		}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
