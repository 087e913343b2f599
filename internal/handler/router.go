package handler

import (
	"database/sql"
	"net/http"

	"carprice/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// RouterConfig carries everything the API router is built from. DB, Redis
// and Broker feed the readiness check only; a nil limiter disables rate
// limiting for its route group.
type RouterConfig struct {
	Auth        *AuthHandler
	Predictions *PredictionHandler
	Catalog     *CatalogHandler
	Tokens      middleware.TokenVerifier

	DB     *sql.DB
	Redis  redis.UniversalClient
	Broker Broker

	AllowedOrigins []string
	SecureCookies  bool
	OpenAPI        *middleware.OpenAPIValidatorConfig

	AuthLimiter *middleware.RateLimiter
	APILimiter  *middleware.RateLimiter
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Metrics())

	r.Get("/health", Health)
	if cfg.DB != nil && cfg.Redis != nil {
		r.Get("/health/ready", Ready(cfg.DB, cfg.Redis, cfg.Broker))
	}
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CSRF(cfg.SecureCookies))
		r.Use(middleware.OpenAPIValidator(cfg.OpenAPI))

		r.Get("/", Root)
		r.Get("/csrf/", cfg.Auth.CSRF)
		r.Get("/dropdown_options/", cfg.Catalog.DropdownOptions)
		r.Get("/brand_model_mapping/", cfg.Catalog.BrandModelMapping)

		r.Group(func(r chi.Router) {
			limit(r, cfg.AuthLimiter)
			r.Post("/register/", cfg.Auth.Register)
			r.Post("/login/", cfg.Auth.Login)
			r.Post("/token/refresh/", cfg.Auth.Refresh)
			r.Post("/logout/", cfg.Auth.Logout)
		})

		r.Group(func(r chi.Router) {
			limit(r, cfg.APILimiter)
			r.With(middleware.OptionalAuth(cfg.Tokens)).Post("/predict/", cfg.Predictions.Predict)
			r.Post("/predict/guest/", cfg.Predictions.PredictGuest)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.Tokens))
				r.Get("/users/me/", cfg.Auth.Me)
				r.Get("/predictions/", cfg.Predictions.History)
			})
		})
	})

	return r
}

func limit(r chi.Router, rl *middleware.RateLimiter) {
	if rl != nil {
		r.Use(rl.Middleware())
	}
}
