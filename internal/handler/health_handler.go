package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"carprice/internal/api"
	"carprice/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Health returns basic health check
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Root describes the API.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.RootResponse{
		Status:  "ok",
		Message: "Car price prediction API",
		Endpoints: map[string]string{
			"csrf":                "/api/csrf/",
			"register":            "/api/register/",
			"login":               "/api/login/",
			"logout":              "/api/logout/",
			"token_refresh":       "/api/token/refresh/",
			"current_user":        "/api/users/me/",
			"predict":             "/api/predict/",
			"predict_guest":       "/api/predict/guest/",
			"predictions":         "/api/predictions/",
			"dropdown_options":    "/api/dropdown_options/",
			"brand_model_mapping": "/api/brand_model_mapping/",
		},
	})
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string         `json:"status"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Broker reports whether the message broker connection is usable.
type Broker interface {
	IsClosed() bool
}

// Ready returns readiness check with dependencies. A nil rmq is reported as
// disabled and does not affect readiness.
func Ready(db *sql.DB, rdb redis.UniversalClient, rmq Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// Check dependencies in parallel
		dbResult := make(chan HealthCheckResult, 1)
		redisResult := make(chan HealthCheckResult, 1)

		go func() {
			dbResult <- checkDatabase(ctx, db)
		}()

		go func() {
			redisResult <- checkRedis(ctx, rdb)
		}()

		dbCheck := <-dbResult
		redisCheck := <-redisResult
		rmqCheck := checkRabbitMQ(rmq)

		response := map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
			"checks": map[string]HealthCheckResult{
				"database": dbCheck,
				"redis":    redisCheck,
				"rabbitmq": rmqCheck,
			},
		}

		allHealthy := dbCheck.Status == "up" && redisCheck.Status == "up" && rmqCheck.Status != "down"

		status := http.StatusOK
		if allHealthy {
			response["status"] = "ready"
		} else {
			response["status"] = "not_ready"
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, response)
	}
}

// checkDatabase verifies database connectivity
func checkDatabase(ctx context.Context, db *sql.DB) HealthCheckResult {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	stats := db.Stats()
	observability.RecordDBStats(stats)

	if err != nil {
		return HealthCheckResult{
			Status:    "down",
			LatencyMs: latency.Milliseconds(),
			Error:     err.Error(),
		}
	}

	return HealthCheckResult{
		Status:    "up",
		LatencyMs: latency.Milliseconds(),
		Metadata: map[string]any{
			"connections_open":   stats.OpenConnections,
			"connections_in_use": stats.InUse,
			"connections_idle":   stats.Idle,
			"max_open":           stats.MaxOpenConnections,
		},
	}
}

// checkRedis verifies Redis connectivity
func checkRedis(ctx context.Context, rdb redis.UniversalClient) HealthCheckResult {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	if err != nil {
		return HealthCheckResult{
			Status:    "down",
			LatencyMs: latency.Milliseconds(),
			Error:     err.Error(),
		}
	}
	return HealthCheckResult{
		Status:    "up",
		LatencyMs: latency.Milliseconds(),
	}
}

// checkRabbitMQ verifies RabbitMQ connectivity
func checkRabbitMQ(rmq Broker) HealthCheckResult {
	if rmq == nil {
		return HealthCheckResult{Status: "disabled"}
	}
	if rmq.IsClosed() {
		return HealthCheckResult{
			Status: "down",
			Error:  "connection closed",
		}
	}
	return HealthCheckResult{Status: "up"}
}
